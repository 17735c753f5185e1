package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goccy/go-yaml"
	"github.com/named-data/ndnfw/fw/core"
	"github.com/spf13/cobra"
)

var config = core.DefaultConfig()

var CmdFw = &cobra.Command{
	Use:     "run CONFIG-FILE",
	Short:   "Start the NDN firewall",
	GroupID: "run",
	Version: core.Version,
	Args:    cobra.ExactArgs(1),
	Run:     run,
}

func init() {
	CmdFw.Flags().StringVar(&config.Core.CpuProfile, "cpu-profile", "", "Write CPU profile to file")
	CmdFw.Flags().StringVar(&config.Core.MemProfile, "mem-profile", "", "Write memory profile to file")
	CmdFw.Flags().StringVar(&config.Core.BlockProfile, "block-profile", "", "Write block profile to file")
}

func run(cmd *cobra.Command, args []string) {
	configfile := args[0]
	config.Core.BaseDir = filepath.Dir(configfile)

	if err := ReadConfig(config, configfile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}

	daemon, err := NewDaemon(config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := daemon.Start(); err != nil {
		core.Log.Error(daemon, "Unable to start firewall", "err", err)
		daemon.Stop()
		os.Exit(2)
	}

	// set up signal handler channel and wait for interrupt
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM)
	receivedSig := <-sigChannel
	core.Log.Info(daemon, "Received signal - exit", "signal", receivedSig)

	if err := daemon.Stop(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ReadConfig reads a YAML configuration file over the defaults in dest.
// Unknown keys are rejected.
func ReadConfig(dest *core.Config, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("unable to open configuration file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f, yaml.Strict())
	if err = dec.Decode(dest); err != nil {
		return fmt.Errorf("unable to parse configuration file: %w", err)
	}
	return nil
}
