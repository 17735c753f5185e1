package firewall

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/filter"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed command.schema.json
var commandSchemaJSON []byte

var commandSchema = func() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(commandSchemaJSON))
	if err != nil {
		panic(err)
	}
	return schema
}()

// Command tags
const (
	CmdEditConfig = "edit-config"
	CmdAddFace    = "add-face"
	CmdDelFace    = "del-face"
	CmdAddRules   = "add-rules"
	CmdDelRules   = "del-rules"
	CmdList       = "list"
)

// Command is one command channel request.
type Command struct {
	Command string `json:"command"`

	// edit-config
	DropInterest *bool       `json:"drop_interest,omitempty"`
	DropData     *bool       `json:"drop_data,omitempty"`
	Report       *ReportEdit `json:"report,omitempty"`

	// add-face, del-face
	Face string `json:"face,omitempty"`

	// add-rules, del-rules
	Rules []filter.Rule `json:"rules,omitempty"`

	// list: faces, rules, config, counters
	What []string `json:"what,omitempty"`
}

// ReportEdit changes the report configuration. Absent fields are unchanged.
type ReportEdit struct {
	Enable     *bool   `json:"enable,omitempty"`
	Manager    *string `json:"manager,omitempty"`
	IntervalMs *uint64 `json:"interval_ms,omitempty"`
}

// ListReply is the reply to a list command.
type ListReply struct {
	EgressFaces  []string               `json:"egress_faces,omitempty"`
	IngressFaces []string               `json:"ingress_faces,omitempty"`
	Rules        []filter.Rule          `json:"rules,omitempty"`
	Config       *ConfigInfo            `json:"config,omitempty"`
	Counters     *defn.FirewallCounters `json:"counters,omitempty"`
}

// ConfigInfo is the runtime configuration reported by list.
type ConfigInfo struct {
	DropInterest bool   `json:"drop_interest"`
	DropData     bool   `json:"drop_data"`
	ReportEnable bool   `json:"report_enable"`
	Manager      string `json:"manager,omitempty"`
	IntervalMs   int64  `json:"interval_ms"`
}

// ParseCommand validates and decodes a command document.
func ParseCommand(doc []byte) (*Command, error) {
	result, err := commandSchema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("malformed command: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid command: %s", strings.Join(msgs, "; "))
	}

	cmd := &Command{}
	if err := json.Unmarshal(doc, cmd); err != nil {
		return nil, fmt.Errorf("malformed command: %w", err)
	}
	return cmd, nil
}

// runCommands serves the command channel until its socket is closed.
// A bad request never stops the loop.
func (fw *Firewall) runCommands() {
	defer close(fw.cmdDone)

	buf := make([]byte, defn.MaxRecvSize)
	for {
		n, from, err := fw.cmdConn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			core.Log.Warn(fw, "Unable to read from command channel", "err", err)
			continue
		}

		if !fw.isAllowed(from) {
			core.Log.Debug(fw, "Unauthorized request - DROP", "from", from)
			fw.metrics.RecordCommand("unauthorized", errUnauthorized)
			continue
		}

		cmd, err := ParseCommand(buf[:n])
		if err != nil {
			core.Log.Debug(fw, "Bad request - DROP", "from", from, "err", err)
			fw.metrics.RecordCommand("invalid", err)
			continue
		}

		err = fw.execute(cmd, from)
		fw.metrics.RecordCommand(cmd.Command, err)
		if err != nil {
			core.Log.Debug(fw, "Command failed", "command", cmd.Command, "from", from, "err", err)
		}
	}
}

func (fw *Firewall) isAllowed(from *net.UDPAddr) bool {
	if len(fw.allow) == 0 {
		return true
	}
	addr, ok := netip.AddrFromSlice(from.IP)
	return ok && slices.Contains(fw.allow, addr.Unmap())
}

// execute applies one command. Only list sends a reply, to the source.
func (fw *Firewall) execute(cmd *Command, from *net.UDPAddr) error {
	switch cmd.Command {
	case CmdEditConfig:
		return fw.editConfig(cmd)
	case CmdAddFace:
		return fw.AddEgressFace(cmd.Face)
	case CmdDelFace:
		return fw.DelEgressFace(cmd.Face)
	case CmdAddRules:
		return fw.syncErr(func() error { return fw.filter.AddRules(cmd.Rules) })
	case CmdDelRules:
		return fw.syncErr(func() error { return fw.filter.DelRules(cmd.Rules) })
	case CmdList:
		reply, err := fw.List(cmd.What)
		if err != nil {
			return err
		}
		wire, err := json.Marshal(reply)
		if err != nil {
			return err
		}
		_, err = fw.cmdConn.WriteToUDP(wire, from)
		return err
	default:
		return fmt.Errorf("%w: %s", defn.ErrUnknownCommand, cmd.Command)
	}
}

// syncErr runs fn on the strand and returns its error.
func (fw *Firewall) syncErr(fn func() error) (err error) {
	if !fw.strand.Sync(func() { err = fn() }) {
		return errStopped
	}
	return
}

// editConfig applies kill-switch and report changes in one step.
func (fw *Firewall) editConfig(cmd *Command) error {
	return fw.syncErr(func() error {
		next := fw.report
		if e := cmd.Report; e != nil {
			if e.Enable != nil {
				next.Enabled = *e.Enable
			}
			if e.Manager != nil {
				uri, err := parseManager(*e.Manager)
				if err != nil {
					return err
				}
				next.Manager = uri.String()
			}
			if e.IntervalMs != nil {
				next.Interval = reportInterval(*e.IntervalMs)
			}
			if next.Enabled {
				if _, err := fw.resolveReport(next); err != nil {
					return err
				}
			}
		}

		if cmd.DropInterest != nil {
			fw.dropInterest = *cmd.DropInterest
		}
		if cmd.DropData != nil {
			fw.dropData = *cmd.DropData
		}
		fw.setReport(next, false)
		core.Log.Info(fw, "Configuration changed", "drop_interest", fw.dropInterest,
			"drop_data", fw.dropData, "report", fw.report.Enabled)
		return nil
	})
}

// List returns the requested parts of the firewall state.
// An empty selection lists faces and rules.
func (fw *Firewall) List(what []string) (*ListReply, error) {
	if len(what) == 0 {
		what = []string{"faces", "rules"}
	}

	reply := &ListReply{}
	ok := fw.strand.Sync(func() {
		for _, w := range what {
			switch w {
			case "faces":
				reply.EgressFaces = fw.egress.Endpoints()
				reply.IngressFaces = fw.ingress.Endpoints()
			case "rules":
				reply.Rules = fw.filter.Rules()
			case "config":
				reply.Config = &ConfigInfo{
					DropInterest: fw.dropInterest,
					DropData:     fw.dropData,
					ReportEnable: fw.report.Enabled,
					Manager:      fw.report.Manager,
					IntervalMs:   fw.report.Interval.Milliseconds(),
				}
			case "counters":
				counters := fw.counters
				reply.Counters = &counters
			}
		}
	})
	if !ok {
		return nil, errStopped
	}
	return reply, nil
}
