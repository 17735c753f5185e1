package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/named-data/ndnfw/fw/core"
	"go.uber.org/multierr"
)

// Profiler writes the CPU, block and memory profiles requested on the command line.
type Profiler struct {
	config  *core.Config
	cpuFile *os.File
	block   *pprof.Profile
}

func NewProfiler(config *core.Config) *Profiler {
	return &Profiler{config: config}
}

func (p *Profiler) String() string {
	return "profiler"
}

func (p *Profiler) Start() (err error) {
	if p.config.Core.CpuProfile != "" {
		p.cpuFile, err = os.Create(p.config.Core.CpuProfile)
		if err != nil {
			return fmt.Errorf("unable to open output file for CPU profile: %w", err)
		}

		core.Log.Info(p, "Profiling CPU", "out", p.config.Core.CpuProfile)
		if err = pprof.StartCPUProfile(p.cpuFile); err != nil {
			return err
		}
	}

	if p.config.Core.BlockProfile != "" {
		core.Log.Info(p, "Profiling blocking operations", "out", p.config.Core.BlockProfile)
		runtime.SetBlockProfileRate(1)
		p.block = pprof.Lookup("block")
	}

	return nil
}

// Stop writes the block and memory profiles and ends CPU profiling.
func (p *Profiler) Stop() (err error) {
	if p.block != nil {
		err = multierr.Append(err, writeProfile(p.config.Core.BlockProfile, func(f io.Writer) error {
			return p.block.WriteTo(f, 0)
		}))
	}

	if p.config.Core.MemProfile != "" {
		core.Log.Info(p, "Profiling memory", "out", p.config.Core.MemProfile)
		runtime.GC()
		err = multierr.Append(err, writeProfile(p.config.Core.MemProfile, pprof.WriteHeapProfile))
	}

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		err = multierr.Append(err, p.cpuFile.Close())
	}
	return err
}

func writeProfile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to open output file for profile: %w", err)
	}
	defer f.Close()
	return write(f)
}
