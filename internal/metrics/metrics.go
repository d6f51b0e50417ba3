// Package metrics exports engine activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the status label.
const (
	StatusOK       = "ok"
	StatusCanceled = "canceled"
	StatusError    = "error"
)

// Collector records engine events on its own registry. It implements
// engine.Metrics.
type Collector struct {
	registry *prometheus.Registry

	queriesPrepared  *prometheus.CounterVec
	batchesStarted   prometheus.Counter
	sourcesOpened    prometheus.Counter
	sourcesFailed    prometheus.Counter
	entitiesRejected prometheus.Counter
	entitiesReturned prometheus.Counter
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
}

// New creates a Collector with a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		queriesPrepared: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsquery_queries_prepared_total",
				Help: "Total number of prepared queries",
			},
			[]string{"components", "concurrent"},
		),
		batchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dsquery_batches_started_total",
			Help: "Total number of native query batches started",
		}),
		sourcesOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "dsquery_native_sources_total",
			Help: "Total number of native queries executed",
		}),
		sourcesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dsquery_native_source_failures_total",
			Help: "Total number of native queries that failed",
		}),
		entitiesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "dsquery_entities_rejected_total",
			Help: "Entities dropped by acceptors (duplicates and excluded values)",
		}),
		entitiesReturned: factory.NewCounter(prometheus.CounterOpts{
			Name: "dsquery_entities_returned_total",
			Help: "Entities delivered to callers",
		}),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsquery_runs_total",
				Help: "Total number of query runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsquery_run_duration_seconds",
			Help:    "Query run latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// QueryPrepared is labeled by component count and whether any component
// merges in memory.
func (c *Collector) QueryPrepared(components int, concurrent bool) {
	c.queriesPrepared.WithLabelValues(strconv.Itoa(components), strconv.FormatBool(concurrent)).Inc()
}

func (c *Collector) BatchStarted(sources int) {
	c.batchesStarted.Inc()
	c.sourcesOpened.Add(float64(sources))
}

func (c *Collector) SourceFailed() {
	c.sourcesFailed.Inc()
}

func (c *Collector) EntityRejected() {
	c.entitiesRejected.Inc()
}

func (c *Collector) RunFinished(elapsed time.Duration, delivered int, err error) {
	c.runDuration.Observe(elapsed.Seconds())
	c.entitiesReturned.Add(float64(delivered))
	c.runsTotal.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusError
	}
}
