package cmd

import (
	"fmt"
	"time"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/filter"
	"github.com/named-data/ndnfw/fw/firewall"
	"github.com/named-data/ndnfw/fw/metrics"
	"go.uber.org/multierr"
)

// Daemon wires the firewall to its rule store, metrics and profiler.
// Only one Daemon should be created per process.
type Daemon struct {
	config   *core.Config
	profiler *Profiler
	store    filter.Store
	fw       *firewall.Firewall
	metrics  *metrics.Server
}

// NewDaemon creates a Daemon and installs config as the global configuration.
func NewDaemon(config *core.Config) (*Daemon, error) {
	core.C = config
	core.StartTimestamp = time.Now()
	core.SetShouldQuit(false)

	if err := core.OpenLogger(); err != nil {
		return nil, err
	}

	return &Daemon{
		config:   config,
		profiler: NewProfiler(config),
	}, nil
}

func (d *Daemon) String() string {
	return "ndnfw"
}

// Start opens the rule store and starts the firewall. It does not block.
func (d *Daemon) Start() (err error) {
	core.Log.Info(d, "Starting NDN firewall", "version", core.Version, "name", d.config.Firewall.Name)

	if err = d.profiler.Start(); err != nil {
		return err
	}

	if path := d.config.ResolveRelPath(d.config.Firewall.RulesDb); path != "" {
		if d.store, err = filter.NewBadgerStore(path); err != nil {
			return fmt.Errorf("unable to open rule database: %w", err)
		}
	} else {
		d.store = filter.NewMemoryStore()
	}

	rules, err := filter.NewRuleFilter(d.store)
	if err != nil {
		return err
	}
	if path := d.config.ResolveRelPath(d.config.Firewall.RulesFile); path != "" {
		initial, err := filter.LoadRuleFile(path)
		if err != nil {
			return err
		}
		if err = rules.AddRules(initial); err != nil {
			return err
		}
	}
	core.Log.Info(d, "Loaded rules", "count", len(rules.Rules()))

	policy, err := filter.ParsePolicy(d.config.Firewall.EgressPolicy)
	if err != nil {
		return err
	}

	if d.fw, err = firewall.NewFirewall(firewall.MakeConfig(d.config), rules, policy); err != nil {
		return err
	}
	if err = d.fw.Start(); err != nil {
		return err
	}

	if d.config.Metrics.Enabled {
		d.metrics = metrics.Serve(d.config.Metrics.Bind)
	}
	return nil
}

// Stop shuts the firewall down and releases the rule store.
func (d *Daemon) Stop() (err error) {
	// Close log file last
	defer core.CloseLogger()

	core.Log.Info(d, "Stopping NDN firewall")
	defer core.Log.Info(d, "Stopped NDN firewall")

	// Break all loops
	core.SetShouldQuit(true)

	if d.metrics != nil {
		err = multierr.Append(err, d.metrics.Close())
	}
	if d.fw != nil {
		err = multierr.Append(err, d.fw.Stop())
	}
	if d.store != nil {
		err = multierr.Append(err, d.store.Close())
	}
	err = multierr.Append(err, d.profiler.Stop())
	return err
}
