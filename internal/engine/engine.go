package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/dsquery/internal/indexshape"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/planner"
	"github.com/roach88/dsquery/internal/queryir"
)

// DefaultChunkSize is the batching hint sent to native sources when the
// caller gives none.
const DefaultChunkSize = 100

// Metrics receives engine events. The metrics package provides a Prometheus
// implementation; the default discards everything.
type Metrics interface {
	QueryPrepared(components int, concurrent bool)
	BatchStarted(sources int)
	SourceFailed()
	EntityRejected()
	RunFinished(elapsed time.Duration, delivered int, err error)
}

type noopMetrics struct{}

func (noopMetrics) QueryPrepared(int, bool) {}
func (noopMetrics) BatchStarted(int) {}
func (noopMetrics) SourceFailed() {}
func (noopMetrics) EntityRejected() {}
func (noopMetrics) RunFinished(time.Duration, int, error) {}

// Engine prepares logical queries and runs them against a native executor.
//
// Thread-safety model:
//   - Prepare(): safe from any goroutine
//   - PreparedQuery: safe to run concurrently; every run has its own state
//   - Iterator: owned by one goroutine
//
// Merge sources of one batch are primed on a shared worker pool, so the
// number of native queries opening at once is bounded engine-wide.
type Engine struct {
	executor  native.Executor
	logger    *slog.Logger
	runIDs    RunIDGenerator
	metrics   Metrics
	pool      *ants.Pool
	poolSize  int
	chunkSize int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithMetrics installs a metrics sink.
func WithMetrics(m Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMaxConcurrentSources bounds how many native queries are opened in
// parallel across all runs.
//
// Default: planner.MaxConcurrentAlternatives, enough to prime the widest
// legal batch at once.
func WithMaxConcurrentSources(n int) EngineOption {
	return func(e *Engine) {
		e.poolSize = n
	}
}

// WithChunkSize sets the default batching hint for native sources.
func WithChunkSize(n int) EngineOption {
	return func(e *Engine) {
		e.chunkSize = n
	}
}

// New creates an Engine over executor. Close releases its worker pool.
func New(executor native.Executor, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		executor:  executor,
		logger:    slog.Default(),
		runIDs:    UUIDv7Generator{},
		metrics:   noopMetrics{},
		poolSize:  planner.MaxConcurrentAlternatives,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.poolSize <= 0 {
		return nil, fmt.Errorf("max concurrent sources must be positive, got %d", e.poolSize)
	}
	if e.chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", e.chunkSize)
	}

	pool, err := ants.NewPool(e.poolSize, ants.WithPanicHandler(func(v any) {
		e.logger.Error("source worker panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("create source pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Close releases the worker pool, waiting briefly for in-flight sources.
func (e *Engine) Close() error {
	return e.pool.ReleaseTimeout(3 * time.Second)
}

// Prepare validates and plans q. Shape and fan-out errors surface here,
// before any native query runs.
func (e *Engine) Prepare(q queryir.Query) (*PreparedQuery, error) {
	plan, err := planner.Build(q)
	if err != nil {
		e.logger.Debug("query rejected", "query", q.String(), "error", err)
		return nil, err
	}

	// Every branch shares the representative's shape, so one native check
	// covers the batches.
	representative := plan.Representative()
	if err := queryir.ValidateNative(representative); err != nil {
		return nil, fmt.Errorf("native query %s: %w", representative, err)
	}

	shape := indexshape.Extract(plan.Query)
	p := &PreparedQuery{
		engine: e,
		plan:   plan,
		shape:  shape,
		index:  indexshape.CompositeIndexForQuery(shape),
	}

	e.metrics.QueryPrepared(len(plan.Components), plan.HasConcurrent())
	e.logger.Info("query prepared",
		"query", plan.Query.String(),
		"components", len(plan.Components),
		"native_queries", plan.TotalNativeQueries(),
		"concurrent", plan.ConcurrentAlternatives(),
		"acceptors", plan.Acceptors.String())
	return p, nil
}

// submit runs task on the source pool.
func (e *Engine) submit(task func()) error {
	return e.pool.Submit(task)
}
