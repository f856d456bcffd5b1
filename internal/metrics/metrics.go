// Package metrics exports job controller activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/jobdeck/internal/job"
)

// Collector records job events. It implements job.Observer.
type Collector struct {
	registry     *prometheus.Registry
	Running      *prometheus.GaugeVec
	Submissions  *prometheus.CounterVec
	Runs         *prometheus.CounterVec
	Polls        *prometheus.CounterVec
	PollFailures *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	Processed    *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		Running: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobdeck_job_running",
			Help: "Whether a job of the kind currently owns its backend slot (1) or not (0).",
		}, []string{"kind"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdeck_job_submissions_total",
			Help: "Job submissions by kind and outcome (accepted or refused).",
		}, []string{"kind", "outcome"}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdeck_job_runs_total",
			Help: "Finished job runs by kind and terminal status.",
		}, []string{"kind", "status"}),
		Polls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdeck_job_polls_total",
			Help: "Successful status polls by kind.",
		}, []string{"kind"}),
		PollFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdeck_job_poll_failures_total",
			Help: "Failed status polls by kind.",
		}, []string{"kind"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobdeck_job_run_duration_seconds",
			Help:    "Wall-clock duration of finished runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"kind"}),
		Processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobdeck_job_entities_total",
			Help: "Entities processed by finished runs, by kind and result.",
		}, []string{"kind", "result"}),
	}
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// OnJobEvent implements job.Observer.
func (c *Collector) OnJobEvent(ev job.Event) {
	kind := string(ev.Kind)
	switch ev.Type {
	case job.EventPoll:
		c.Polls.WithLabelValues(kind).Inc()
		return
	case job.EventPollFailure:
		c.PollFailures.WithLabelValues(kind).Inc()
		return
	}

	if ev.To.Busy() {
		c.Running.WithLabelValues(kind).Set(1)
	} else {
		c.Running.WithLabelValues(kind).Set(0)
	}

	switch {
	case ev.From == job.StateSubmitting && ev.To == job.StateRunning:
		c.Submissions.WithLabelValues(kind, "accepted").Inc()
	case ev.From == job.StateSubmitting && ev.To == job.StateIdle:
		c.Submissions.WithLabelValues(kind, "refused").Inc()
	}

	if ev.Summary != nil {
		s := ev.Summary
		c.Runs.WithLabelValues(kind, string(s.Status)).Inc()
		c.RunDuration.WithLabelValues(kind).Observe(s.Duration().Seconds())
		c.Processed.WithLabelValues(kind, "successful").Add(float64(s.Successful))
		c.Processed.WithLabelValues(kind, "failed").Add(float64(s.Failed))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Server exposes /metrics on an address.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// NewServer binds addr and prepares the metrics endpoint.
func NewServer(addr string, c *Collector) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", c.Handler())
	return &Server{
		ln:  ln,
		srv: &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second},
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Run serves until Stop is called.
func (s *Server) Run() error {
	slog.Info("Serving metrics", "addr", s.Addr())
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		slog.Debug("Metrics server shutdown", "error", err)
	}
}
