/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package core

import (
	"path/filepath"
)

// Global initial configuration of the firewall.
// This configuration is IMMUTABLE. Runtime changes go through the command channel.
var C = DefaultConfig()

// Config represents the configuration of the firewall.
type Config struct {
	Core struct {
		// Logging level
		LogLevel string `json:"log_level"`
		// Output log to file
		LogFile string `json:"log_file"`

		// Config file base dir
		BaseDir string `json:"-"`
		// Enable CPU profiling
		CpuProfile string `json:"-"`
		// Enable memory profiling
		MemProfile string `json:"-"`
		// Enable block profiling
		BlockProfile string `json:"-"`
	} `json:"core"`

	Firewall struct {
		// Name of this firewall instance, included in reports
		Name string `json:"name"`
		// Local host of the ingress master faces and the command channel
		Bind string `json:"bind"`
		// Local port of the UDP and TCP ingress master faces
		IngressPort uint16 `json:"ingress_port"`
		// Local port of the command channel
		CommandPort uint16 `json:"command_port"`
		// Source addresses allowed on the command channel (empty allows all)
		CommandAllow []string `json:"command_allow"`
		// Remote URIs of egress faces created at startup
		EgressFaces []string `json:"egress_faces"`
		// Remote URIs of client-mode ingress faces created at startup
		IngressFaces []string `json:"ingress_faces"`
		// Egress selection policy: broadcast, round-robin, name-hash
		EgressPolicy string `json:"egress_policy"`
		// Drop every Interest without consulting the filter
		DropInterest bool `json:"drop_interest"`
		// Drop every Data without consulting the filter
		DropData bool `json:"drop_data"`
		// YAML file with the initial rule set (relative to the config file)
		RulesFile string `json:"rules_file"`
		// Badger directory for persisted rules (relative to the config file)
		RulesDb string `json:"rules_db"`

		Report struct {
			// Whether reports are pushed to the manager
			Enabled bool `json:"enabled"`
			// Manager endpoint URI
			Manager string `json:"manager"`
			// Interval between reports (milliseconds)
			IntervalMs uint64 `json:"interval_ms"`
		} `json:"report"`
	} `json:"firewall"`

	Faces struct {
		// Maximum size of a received datagram or frame
		RecvBufferSize int `json:"recv_buffer_size"`

		Udp struct {
			// Whether to enable the UDP ingress master face
			Enabled bool `json:"enabled"`
			// Lifetime of idle listener-spawned faces (in seconds)
			Lifetime uint64 `json:"lifetime"`
		} `json:"udp"`

		Tcp struct {
			// Whether to enable the TCP ingress master face
			Enabled bool `json:"enabled"`
		} `json:"tcp"`

		WebSocket struct {
			// Whether to enable the WebSocket ingress master face
			Enabled bool `json:"enabled"`
			// Bind address for WebSocket listener
			Bind string `json:"bind"`
			// Port for WebSocket listener
			Port uint16 `json:"port"`
		} `json:"websocket"`
	} `json:"faces"`

	Metrics struct {
		// Whether to expose Prometheus metrics
		Enabled bool `json:"enabled"`
		// Listen address of the metrics endpoint
		Bind string `json:"bind"`
	} `json:"metrics"`
}

// DefaultConfig returns the configuration used when the file leaves a field unset.
func DefaultConfig() *Config {
	c := &Config{}
	c.Core.LogLevel = "INFO"
	c.Core.LogFile = ""

	c.Firewall.Name = "ndnfw"
	c.Firewall.Bind = "0.0.0.0"
	c.Firewall.IngressPort = 6363
	c.Firewall.CommandPort = 6464
	c.Firewall.CommandAllow = []string{}
	c.Firewall.EgressFaces = []string{}
	c.Firewall.IngressFaces = []string{}
	c.Firewall.EgressPolicy = "broadcast"
	c.Firewall.DropInterest = false
	c.Firewall.DropData = false
	c.Firewall.RulesFile = ""
	c.Firewall.RulesDb = ""
	c.Firewall.Report.Enabled = false
	c.Firewall.Report.Manager = ""
	c.Firewall.Report.IntervalMs = 1000

	c.Faces.RecvBufferSize = 1 << 16
	c.Faces.Udp.Enabled = true
	c.Faces.Udp.Lifetime = 600
	c.Faces.Tcp.Enabled = true
	c.Faces.WebSocket.Enabled = false
	c.Faces.WebSocket.Bind = ""
	c.Faces.WebSocket.Port = 9696

	c.Metrics.Enabled = false
	c.Metrics.Bind = "127.0.0.1:9464"

	return c
}

// ResolveRelPath resolves a possibly relative path based on config file path.
func (c *Config) ResolveRelPath(target string) string {
	if target == "" || filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(c.Core.BaseDir, target)
}
