package main

import (
	"os"

	"github.com/named-data/ndnfw/cmd"
)

func main() {
	if err := cmd.CmdNdnFw.Execute(); err != nil {
		os.Exit(1)
	}
}
