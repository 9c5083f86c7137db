// Package metrics exposes boss activity as Prometheus metrics.
//
// Counters are labelled by queue:
//   - boss_jobs_published_total, boss_jobs_claimed_total
//   - boss_jobs_completed_total, boss_jobs_failed_total
//   - boss_notifications_total{outcome}
//   - boss_jobs_archived_total
//
// boss_handler_duration_seconds observes subscription handler latency and
// boss_jobs_in_flight tracks handlers currently running. boss_build_info is
// always 1 and carries the version and commit as labels. When a DepthFunc is
// registered, boss_queue_jobs{queue,state} reports store counts at scrape time.
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/internal/version"
)

const namespace = "boss"

// Collector holds boss metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	published     *prometheus.CounterVec
	claimed       *prometheus.CounterVec
	completed     *prometheus.CounterVec
	failed        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	archived      prometheus.Counter
	storeErrors   *prometheus.CounterVec

	handlerDuration *prometheus.HistogramVec
	inFlight        *prometheus.GaugeVec
}

// NewCollector creates a collector with a fresh registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_published_total",
			Help:      "Total number of jobs published",
		}, []string{"queue"}),
		claimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_claimed_total",
			Help:      "Total number of jobs moved from created to active",
		}, []string{"queue"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs resolved as completed",
		}, []string{"queue"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs resolved as failed",
		}, []string{"queue"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Completion notifications by outcome (delivered, released)",
		}, []string{"queue", "outcome"}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_archived_total",
			Help:      "Total number of terminal jobs moved to the archive",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store errors observed by engine loops",
		}, []string{"operation"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Subscription handler latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue", "state"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Subscription handlers currently running",
		}, []string{"queue"}),
	}

	build := version.Get()
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Version of the running boss binary",
		ConstLabels: prometheus.Labels{"version": build.Version, "commit": build.Short()},
	})
	buildInfo.Set(1)

	c.registry.MustRegister(
		buildInfo,
		c.published,
		c.claimed,
		c.completed,
		c.failed,
		c.notifications,
		c.archived,
		c.storeErrors,
		c.handlerDuration,
		c.inFlight,
	)
	return c
}

// Registry returns the registry the collector writes to
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordPublish counts a published job
func (c *Collector) RecordPublish(queue string) {
	if c == nil {
		return
	}
	c.published.WithLabelValues(queue).Inc()
}

// RecordClaim counts n jobs claimed from queue
func (c *Collector) RecordClaim(queue string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.claimed.WithLabelValues(queue).Add(float64(n))
}

// RecordResolve counts a job reaching a terminal state
func (c *Collector) RecordResolve(queue string, completed bool) {
	if c == nil {
		return
	}
	if completed {
		c.completed.WithLabelValues(queue).Inc()
	} else {
		c.failed.WithLabelValues(queue).Inc()
	}
}

// RecordNotification counts a completion notification outcome
func (c *Collector) RecordNotification(queue string, delivered bool) {
	if c == nil {
		return
	}
	outcome := "released"
	if delivered {
		outcome = "delivered"
	}
	c.notifications.WithLabelValues(queue, outcome).Inc()
}

// RecordArchive counts archived jobs
func (c *Collector) RecordArchive(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.archived.Add(float64(n))
}

// RecordStoreError counts a store error seen by an engine loop
func (c *Collector) RecordStoreError(operation string) {
	if c == nil {
		return
	}
	c.storeErrors.WithLabelValues(operation).Inc()
}

// HandlerStarted marks a handler as running and returns a func that
// records its duration and terminal state when called.
func (c *Collector) HandlerStarted(queue string) func(state string) {
	if c == nil {
		return func(string) {}
	}
	start := time.Now()
	gauge := c.inFlight.WithLabelValues(queue)
	gauge.Inc()
	return func(state string) {
		gauge.Dec()
		c.handlerDuration.WithLabelValues(queue, state).Observe(time.Since(start).Seconds())
	}
}

// Handler returns an HTTP handler serving the collector's registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "metrics server on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown metrics server")
	}
}
