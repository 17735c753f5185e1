package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all firewall metrics.
type Registry struct {
	// Data plane
	PacketsDropped   *prometheus.CounterVec
	PacketsForwarded *prometheus.CounterVec

	// Topology
	Faces *prometheus.GaugeVec

	// Control plane
	Commands    *prometheus.CounterVec
	ReportsSent prometheus.Counter
	Uptime      prometheus.GaugeFunc
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ndnfw_packets_dropped_total",
		Help: "Packets dropped by a kill-switch or the filter",
	}, []string{"kind", "reason"})

	r.PacketsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ndnfw_packets_forwarded_total",
		Help: "Packets that passed the filter, by the side they arrived on",
	}, []string{"kind", "direction"})

	r.Faces = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ndnfw_faces",
		Help: "Number of live faces",
	}, []string{"role"})

	r.Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ndnfw_commands_total",
		Help: "Command channel requests",
	}, []string{"command", "result"})

	r.ReportsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ndnfw_reports_sent_total",
		Help: "Reports pushed to the manager",
	})

	r.Uptime = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ndnfw_uptime_seconds",
		Help: "Seconds since the firewall started",
	}, func() float64 {
		return time.Since(core.StartTimestamp).Seconds()
	})

	return r
}

// RecordDrop counts a dropped packet. reason is "killswitch" or "filter".
func (r *Registry) RecordDrop(kind, reason string) {
	r.PacketsDropped.WithLabelValues(kind, reason).Inc()
}

// RecordForward counts a packet that passed the filter.
func (r *Registry) RecordForward(kind, direction string) {
	r.PacketsForwarded.WithLabelValues(kind, direction).Inc()
}

// RecordCommand counts a command channel request.
func (r *Registry) RecordCommand(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Commands.WithLabelValues(command, result).Inc()
}

// SetFaces updates the number of live faces of a role ("ingress" or "egress").
func (r *Registry) SetFaces(role string, n int) {
	r.Faces.WithLabelValues(role).Set(float64(n))
}

// Server exposes the default registry over HTTP.
type Server struct {
	server http.Server
}

func (s *Server) String() string {
	return "metrics-server"
}

// Serve starts an HTTP server exposing /metrics on bind.
func Serve(bind string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s := &Server{server: http.Server{Addr: bind, Handler: mux}}
	go func() {
		err := s.server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			core.Log.Error(s, "Metrics server stopped", "err", err)
		}
	}()
	core.Log.Info(s, "Serving metrics", "bind", bind)
	return s
}

// Close stops the metrics server.
func (s *Server) Close() error {
	return s.server.Close()
}
