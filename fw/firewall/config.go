package firewall

import (
	"fmt"
	"time"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face"
)

// Config is the startup configuration of a Firewall.
type Config struct {
	Name string
	// Local host of the ingress master faces and the command channel
	Bind         string
	IngressPort  uint16
	CommandPort  uint16
	CommandAllow []string

	EnableUDP       bool
	EnableTCP       bool
	EnableWebSocket bool
	WebSocket       face.WebSocketListenerConfig

	EgressFaces  []string
	IngressFaces []string

	DropInterest bool
	DropData     bool
	Report       ReportConfig
}

// ReportConfig controls the periodic report to the manager.
type ReportConfig struct {
	Enabled bool
	// Canonical UDP endpoint of the manager
	Manager  string
	Interval time.Duration
}

// MakeConfig builds the firewall configuration from the global configuration.
func MakeConfig(c *core.Config) Config {
	return Config{
		Name:            c.Firewall.Name,
		Bind:            c.Firewall.Bind,
		IngressPort:     c.Firewall.IngressPort,
		CommandPort:     c.Firewall.CommandPort,
		CommandAllow:    c.Firewall.CommandAllow,
		EnableUDP:       c.Faces.Udp.Enabled,
		EnableTCP:       c.Faces.Tcp.Enabled,
		EnableWebSocket: c.Faces.WebSocket.Enabled,
		WebSocket: face.WebSocketListenerConfig{
			Bind: c.Faces.WebSocket.Bind,
			Port: c.Faces.WebSocket.Port,
		},
		EgressFaces:  c.Firewall.EgressFaces,
		IngressFaces: c.Firewall.IngressFaces,
		DropInterest: c.Firewall.DropInterest,
		DropData:     c.Firewall.DropData,
		Report: ReportConfig{
			Enabled:  c.Firewall.Report.Enabled,
			Manager:  c.Firewall.Report.Manager,
			Interval: reportInterval(c.Firewall.Report.IntervalMs),
		},
	}
}

// parseManager resolves the manager endpoint of a report configuration.
func parseManager(s string) (*defn.URI, error) {
	uri := defn.DecodeURIString(s)
	if err := uri.Canonize(); err != nil || !uri.IsUDP() || uri.Port() == 0 {
		return nil, fmt.Errorf("%w: manager %q", defn.ErrNotCanonical, s)
	}
	return uri, nil
}
