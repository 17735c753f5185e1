/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package core

import (
	"fmt"
	"os"

	"github.com/named-data/ndnd/std/log"
)

var Log = log.Default()
var logFileObj *os.File

// OpenLogger initializes the logger from C.Core.
func OpenLogger() error {
	// open file if filename is not empty
	if C.Core.LogFile == "" {
		logFileObj = os.Stderr
	} else {
		var err error
		logFileObj, err = os.Create(C.ResolveRelPath(C.Core.LogFile))
		if err != nil {
			return fmt.Errorf("unable to open log file: %w", err)
		}
	}

	level, err := log.ParseLevel(C.Core.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %s", err, C.Core.LogLevel)
	}

	Log = log.NewText(logFileObj)
	Log.SetLevel(level)
	return nil
}

// CloseLogger closes the log file, if any.
func CloseLogger() {
	if logFileObj != nil && logFileObj != os.Stderr {
		logFileObj.Close()
	}
	logFileObj = nil
}
