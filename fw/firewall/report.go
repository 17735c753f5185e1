package firewall

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
)

// Report is the datagram pushed to the manager.
type Report struct {
	Name          string `json:"name"`
	InterestDrops uint64 `json:"interest_drops"`
	DataDrops     uint64 `json:"data_drops"`
	TimestampMs   int64  `json:"timestamp_ms"`
}

// maxReportInterval bounds the report interval to one day.
const maxReportInterval = 24 * time.Hour

// reportInterval converts an interval in milliseconds. Values above
// maxReportInterval saturate just past it, so validation rejects them
// instead of seeing an overflowed duration.
func reportInterval(ms uint64) time.Duration {
	if ms > uint64(maxReportInterval/time.Millisecond) {
		return maxReportInterval + time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func (fw *Firewall) resolveReport(cfg ReportConfig) (*net.UDPAddr, error) {
	if cfg.Interval <= 0 || cfg.Interval > maxReportInterval {
		return nil, fmt.Errorf("%w: report interval %v", defn.ErrBadConfig, cfg.Interval)
	}
	uri, err := parseManager(cfg.Manager)
	if err != nil {
		return nil, err
	}
	return uri.UDPAddr(), nil
}

// setReport applies a report configuration. The timer restarts from zero
// when reporting gets enabled or its destination or interval changes.
// Must run on the strand.
func (fw *Firewall) setReport(next ReportConfig, force bool) {
	prev := fw.report
	fw.report = next

	if !next.Enabled {
		fw.cancelReport()
		return
	}

	if force || !prev.Enabled || prev.Manager != next.Manager || prev.Interval != next.Interval || fw.reportTimer == nil {
		manager, err := fw.resolveReport(next)
		if err != nil {
			core.Log.Warn(fw, "Invalid report configuration - reporting disabled", "err", err)
			fw.report.Enabled = false
			fw.cancelReport()
			return
		}
		fw.manager = manager
		fw.armReport()
	}
}

// armReport starts a new report period. A fire from an older period is ignored.
func (fw *Firewall) armReport() {
	fw.cancelReport()
	gen := fw.reportGen
	fw.reportTimer = time.AfterFunc(fw.report.Interval, func() {
		fw.strand.Post(func() {
			if gen != fw.reportGen || !fw.report.Enabled {
				return
			}
			fw.sendReport()
			fw.armReport()
		})
	})
}

func (fw *Firewall) cancelReport() {
	fw.reportGen++
	if fw.reportTimer != nil {
		fw.reportTimer.Stop()
		fw.reportTimer = nil
	}
}

// sendReport pushes the drop counters to the manager and resets them.
func (fw *Firewall) sendReport() {
	report := Report{
		Name:          fw.cfg.Name,
		InterestDrops: fw.counters.NInterestDrops,
		DataDrops:     fw.counters.NDataDrops,
		TimestampMs:   time.Now().UnixMilli(),
	}
	fw.counters.NInterestDrops = 0
	fw.counters.NDataDrops = 0

	wire, err := json.Marshal(report)
	if err != nil {
		core.Log.Error(fw, "Unable to encode report", "err", err)
		return
	}
	if _, err := fw.cmdConn.WriteToUDP(wire, fw.manager); err != nil {
		core.Log.Warn(fw, "Unable to send report", "manager", fw.manager, "err", err)
		return
	}
	fw.metrics.ReportsSent.Inc()
	core.Log.Debug(fw, "Sent report", "manager", fw.manager,
		"interest_drops", report.InterestDrops, "data_drops", report.DataDrops)
}
