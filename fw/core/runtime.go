/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package core

import (
	"sync/atomic"
	"time"
)

// Version of the firewall, set at link time.
var Version = "unknown"

// StartTimestamp is the time the firewall was started.
var StartTimestamp time.Time

// shouldQuit indicates whether accept loops should quit.
var shouldQuit atomic.Bool

// ShouldQuit reports whether the process is shutting down.
func ShouldQuit() bool {
	return shouldQuit.Load()
}

// SetShouldQuit marks the process as shutting down.
func SetShouldQuit(v bool) {
	shouldQuit.Store(v)
}
