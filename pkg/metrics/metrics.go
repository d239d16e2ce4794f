// Package metrics implements the observability surface required by the
// server: per-tier access counters, per-transition migration counters, and
// an access-latency histogram, all exposed through a prometheus.Registry
// holding a fixed set of collectors rather than a dynamically registered
// set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tieredmem/tmsim/pkg/tiermem"
)

const namespace = "tmsim"

// Collectors bundles every counter and histogram the server updates while
// serving accesses and migrations.
type Collectors struct {
	registry *prometheus.Registry

	AccessesByTier   *prometheus.CounterVec
	Migrations       *prometheus.CounterVec
	AccessLatencySec prometheus.Histogram
	MigrationErrors  prometheus.Counter
}

// New creates a fresh, independently registered set of collectors so tests
// can create as many instances as they need without touching the global
// prometheus registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		registry: reg,
		AccessesByTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accesses_total",
			Help:      "Number of client accesses served, by backing tier.",
		}, []string{"tier"}),
		Migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Number of page migrations executed, by transition.",
		}, []string{"transition"}),
		AccessLatencySec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "access_latency_seconds",
			Help:      "Observed latency of a single timed memory touch.",
			Buckets:   prometheus.ExponentialBuckets(1e-9, 4, 16),
		}),
		MigrationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_errors_total",
			Help:      "Number of move_pages(2) failures encountered by the migration worker.",
		}),
	}

	reg.MustRegister(c.AccessesByTier, c.Migrations, c.AccessLatencySec, c.MigrationErrors)
	return c
}

// IncAccess records one access served from the given tier.
func (c *Collectors) IncAccess(tier tiermem.Tier) {
	c.AccessesByTier.WithLabelValues(tier.String()).Inc()
}

// IncMigration records one successful migration between two tiers.
func (c *Collectors) IncMigration(from, to tiermem.Tier) {
	c.Migrations.WithLabelValues(from.String() + "->" + to.String()).Inc()
}

// ObserveLatency records the duration of one timed memory touch.
func (c *Collectors) ObserveLatency(seconds float64) {
	c.AccessLatencySec.Observe(seconds)
}

// Handler returns the http.Handler serving this collector set's /metrics.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing the metrics endpoint at addr and
// returns immediately; the caller is responsible for shutting the returned
// server down.
func (c *Collectors) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()
	return srv
}
