/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package firewall

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face"
	"github.com/named-data/ndnfw/fw/filter"
	"github.com/named-data/ndnfw/fw/metrics"
	"go.uber.org/multierr"
)

var (
	errStopped      = errors.New("firewall stopped")
	errUnauthorized = errors.New("unauthorized request")
)

// Firewall passes packets between untrusted ingress faces and trusted egress
// faces, subject to kill-switches and a filter.
//
// All mutable state below the strand field is owned by the strand. Face
// callbacks, commands, lifecycle events and report timer fires are posted
// onto it and never run concurrently.
type Firewall struct {
	cfg     Config
	filter  filter.Filter
	policy  filter.Policy
	metrics *metrics.Registry
	allow   []netip.Addr

	masters []face.MasterFace
	cmdConn *net.UDPConn
	cmdDone chan struct{}

	strand *face.Strand

	dropInterest bool
	dropData     bool

	report      ReportConfig
	manager     *net.UDPAddr
	reportTimer *time.Timer
	reportGen   uint64

	counters defn.FirewallCounters

	egress  *face.Table
	ingress *face.Table
}

// NewFirewall creates a firewall. It does not open any socket until Start.
func NewFirewall(cfg Config, f filter.Filter, policy filter.Policy) (*Firewall, error) {
	fw := &Firewall{
		cfg:          cfg,
		filter:       f,
		policy:       policy,
		metrics:      metrics.Get(),
		cmdDone:      make(chan struct{}),
		dropInterest: cfg.DropInterest,
		dropData:     cfg.DropData,
		egress:       face.MakeTable("egress-faces"),
		ingress:      face.MakeTable("ingress-faces"),
	}

	for _, s := range cfg.CommandAllow {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid command_allow entry %q: %w", s, err)
		}
		fw.allow = append(fw.allow, addr.Unmap())
	}

	fw.report = cfg.Report
	if fw.report.Manager != "" {
		uri, err := parseManager(fw.report.Manager)
		if err != nil {
			return nil, err
		}
		fw.report.Manager = uri.String()
	}
	if fw.report.Enabled {
		if _, err := fw.resolveReport(fw.report); err != nil {
			return nil, err
		}
	}

	return fw, nil
}

func (fw *Firewall) String() string {
	return fmt.Sprintf("firewall (%s)", fw.cfg.Name)
}

// Start opens the command channel, the master faces and the configured faces.
func (fw *Firewall) Start() error {
	fw.strand = face.NewStrand()

	cmdAddr := &net.UDPAddr{IP: net.ParseIP(fw.cfg.Bind), Port: int(fw.cfg.CommandPort)}
	conn, err := net.ListenUDP("udp", cmdAddr)
	if err != nil {
		fw.strand.Stop()
		<-fw.strand.Done()
		return fmt.Errorf("unable to open command channel: %w", err)
	}
	fw.cmdConn = conn
	go fw.runCommands()

	if err := fw.startMasters(); err != nil {
		return multierr.Append(err, fw.Stop())
	}

	for _, s := range fw.cfg.EgressFaces {
		if err := fw.AddEgressFace(s); err != nil {
			core.Log.Error(fw, "Unable to create egress face", "face", s, "err", err)
		}
	}
	for _, s := range fw.cfg.IngressFaces {
		f, err := face.MakeFace(defn.DecodeURIString(s))
		if err != nil {
			core.Log.Error(fw, "Unable to create ingress face", "face", s, "err", err)
			continue
		}
		fw.AddIngressFace(f)
	}

	if fw.report.Enabled {
		fw.strand.Post(func() { fw.setReport(fw.report, true) })
	}

	core.Log.Info(fw, "Firewall started", "command", fw.cmdConn.LocalAddr())
	return nil
}

func (fw *Firewall) startMasters() error {
	var masters []face.MasterFace
	if fw.cfg.EnableUDP {
		l, err := face.MakeUDPListener(defn.MakeUDPFaceURI(4, fw.cfg.Bind, fw.cfg.IngressPort))
		if err != nil {
			return err
		}
		masters = append(masters, l)
	}
	if fw.cfg.EnableTCP {
		l, err := face.MakeTCPListener(defn.MakeTCPFaceURI(4, fw.cfg.Bind, fw.cfg.IngressPort))
		if err != nil {
			return err
		}
		masters = append(masters, l)
	}
	if fw.cfg.EnableWebSocket {
		masters = append(masters, face.NewWebSocketListener(fw.cfg.WebSocket))
	}

	for _, m := range masters {
		m.OnFace(fw.onMasterFaceNotification)
		m.OnFaceError(fw.onMasterFaceError)
		if err := m.Run(); err != nil {
			return err
		}
		fw.masters = append(fw.masters, m)
		core.Log.Info(fw, "Started master face", "master", m, "local", m.LocalURI())
	}
	return nil
}

// Stop closes every socket and face. The firewall cannot be restarted.
// Stopping a stopped firewall does nothing.
func (fw *Firewall) Stop() error {
	if fw.strand == nil {
		return nil
	}
	select {
	case <-fw.strand.Done():
		return nil
	default:
	}

	var err error
	if fw.cmdConn != nil {
		err = multierr.Append(err, fw.cmdConn.Close())
		<-fw.cmdDone
	}

	for _, m := range fw.masters {
		m.Close()
	}
	fw.masters = nil

	if !fw.strand.Sync(func() {
		fw.cancelReport()
		for _, f := range fw.egress.GetAll() {
			fw.egress.Remove(f.FaceID())
			f.Close()
		}
		for _, f := range fw.ingress.GetAll() {
			fw.ingress.Remove(f.FaceID())
			f.Close()
		}
	}) {
		err = multierr.Append(err, errStopped)
	}
	fw.strand.Stop()
	<-fw.strand.Done()

	core.Log.Info(fw, "Firewall stopped")
	return err
}

// CommandAddr returns the local address of the command channel.
func (fw *Firewall) CommandAddr() *net.UDPAddr {
	return fw.cmdConn.LocalAddr().(*net.UDPAddr)
}

// MasterFaces returns the running master faces.
func (fw *Firewall) MasterFaces() []face.MasterFace {
	return fw.masters
}

// EgressFaces returns the endpoints of the egress faces in insertion order.
func (fw *Firewall) EgressFaces() (endpoints []string) {
	fw.strand.Sync(func() { endpoints = fw.egress.Endpoints() })
	return
}

// IngressFaces returns the endpoints of the live ingress faces.
func (fw *Firewall) IngressFaces() (endpoints []string) {
	fw.strand.Sync(func() { endpoints = fw.ingress.Endpoints() })
	return
}

// Counters returns a snapshot of the packet counters.
func (fw *Firewall) Counters() (c defn.FirewallCounters) {
	fw.strand.Sync(func() { c = fw.counters })
	return
}

// AddEgressFace creates a face to endpoint and includes it in the egress set.
// An endpoint already present is left untouched.
func (fw *Firewall) AddEgressFace(endpoint string) error {
	uri := defn.DecodeURIString(endpoint)
	if err := uri.Canonize(); err != nil {
		return err
	}

	exists := false
	if !fw.strand.Sync(func() { exists = fw.egress.GetByEndpoint(uri.String()) != nil }) {
		return errStopped
	}
	if exists {
		return nil
	}

	f, err := face.MakeFace(uri)
	if err != nil {
		return err
	}

	if !fw.strand.Post(func() {
		if fw.egress.GetByEndpoint(f.Endpoint()) != nil {
			f.Close()
			return
		}
		fw.egress.Add(f)
		fw.metrics.SetFaces("egress", fw.egress.Len())
		f.Open(fw.onEgressInterest, fw.onEgressData, fw.onFaceError)
	}) {
		f.Close()
		return errStopped
	}
	return nil
}

// DelEgressFace closes and removes the egress face to endpoint, if any.
func (fw *Firewall) DelEgressFace(endpoint string) error {
	uri := defn.DecodeURIString(endpoint)
	if err := uri.Canonize(); err != nil {
		return err
	}

	if !fw.strand.Post(func() {
		f := fw.egress.GetByEndpoint(uri.String())
		if f == nil {
			return
		}
		fw.egress.Remove(f.FaceID())
		fw.metrics.SetFaces("egress", fw.egress.Len())
		f.Close()
	}) {
		return errStopped
	}
	return nil
}

// AddIngressFace registers a standalone ingress face and opens it.
func (fw *Firewall) AddIngressFace(f face.Face) {
	if !fw.strand.Post(func() {
		fw.ingress.Add(f)
		fw.metrics.SetFaces("ingress", fw.ingress.Len())
		f.Open(fw.onIngressInterest, fw.onIngressData, fw.onFaceError)
	}) {
		f.Close()
	}
}

// onMasterFaceNotification runs on the accept goroutine of a master face.
// The table insertion is posted before Open, so it precedes every packet
// callback of the face.
func (fw *Firewall) onMasterFaceNotification(m face.MasterFace, f face.Face) {
	if !fw.strand.Post(func() {
		fw.ingress.Add(f)
		fw.metrics.SetFaces("ingress", fw.ingress.Len())
	}) {
		f.Close()
		return
	}
	f.Open(fw.onIngressInterest, fw.onIngressData, fw.onFaceError)
}

func (fw *Firewall) onMasterFaceError(m face.MasterFace, f face.Face) {
	core.Log.Info(fw, "Master face reported face error", "master", m, "face", f)
	fw.strand.Post(func() { fw.retire(f) })
}

func (fw *Firewall) onFaceError(f face.Face) {
	core.Log.Info(fw, "Face error", "face", f)
	fw.strand.Post(func() { fw.retire(f) })
}

// retire removes a dead face from whichever set holds it.
func (fw *Firewall) retire(f face.Face) {
	if fw.egress.Remove(f.FaceID()) != nil {
		fw.metrics.SetFaces("egress", fw.egress.Len())
	}
	if fw.ingress.Remove(f.FaceID()) != nil {
		fw.metrics.SetFaces("ingress", fw.ingress.Len())
	}
	f.Close()
}
