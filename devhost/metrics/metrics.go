package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LaunchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xcmdev_launches_total",
			Help: "Launch attempts by result",
		},
		[]string{"result"},
	)

	PortProbesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xcmdev_port_probes_total",
			Help: "Ports bound while scanning for a free port",
		},
	)

	ReadinessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xcmdev_readiness_seconds",
			Help:    "Time until the served process claimed its port",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"state"},
	)

	RelayLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xcmdev_relay_lines_total",
			Help: "Lines relayed from the served process",
		},
		[]string{"stream"},
	)

	BrowserOpensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xcmdev_browser_opens_total",
			Help: "Browser open requests by result",
		},
		[]string{"result"},
	)

	ServedExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xcmdev_served_exits_total",
			Help: "Served process exits by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		LaunchesTotal,
		PortProbesTotal,
		ReadinessDuration,
		RelayLinesTotal,
		BrowserOpensTotal,
		ServedExitsTotal,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server is a standalone /metrics listener.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// StartServer serves /metrics on addr in the background.
func StartServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	s := &Server{
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger.With("component", "Metrics"),
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Metrics are optional; the launch carries on without them.
			s.logger.Warn("Metrics listener stopped", "addr", addr, "error", err)
		}
	}()
	return s
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
