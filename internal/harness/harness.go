package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/dsquery/internal/compiler"
	"github.com/roach88/dsquery/internal/engine"
	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/kvstore"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/planner"
	"github.com/roach88/dsquery/internal/queryir"
	"github.com/roach88/dsquery/internal/querytext"
	"github.com/roach88/dsquery/internal/store"
)

// Backends a scenario can run on.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// AllBackends lists every backend in the order scenarios run on them.
var AllBackends = []string{BackendMemory, BackendSQLite, BackendBadger}

// Error categories for failures that are not query shape errors.
const (
	CategoryTooManyAlternatives = "too-many-alternatives"
	CategoryMissingIndex        = "missing-index"
	CategoryOther               = "error"
)

const defaultChunkSize = 2

func isBackend(name string) bool {
	return slices.Contains(AllBackends, name)
}

// ScenarioBackends returns the backends the scenario asks for.
func ScenarioBackends(s *Scenario) []string {
	if len(s.Backends) == 0 {
		return AllBackends
	}
	return s.Backends
}

// Harness runs one scenario against one loaded backend.
type Harness struct {
	doc    *compiler.Document
	engine *engine.Engine
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes engine and store logs. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run loads the scenario's fixtures into a fresh backend and executes
// every case.
//
// Each run uses its own in-memory store and a sequence run-id generator,
// so logs and results are reproducible. Case failures are recorded in the
// result; the returned error is reserved for setup failures.
func Run(ctx context.Context, scenario *Scenario, backend string, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	doc, err := compiler.LoadFiles(scenario.Data...)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}
	if errs := compiler.Validate(doc); len(errs) > 0 {
		return nil, fmt.Errorf("invalid fixtures: %w", errs[0])
	}

	exec, closeBackend, err := openBackend(ctx, backend, scenario, doc, cfg.logger)
	if err != nil {
		return nil, err
	}
	defer closeBackend()

	chunkSize := scenario.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}
	eng, err := engine.New(exec,
		engine.WithLogger(cfg.logger),
		engine.WithRunIDGenerator(engine.NewSequenceGenerator(scenario.Name)),
		engine.WithChunkSize(chunkSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	h := &Harness{doc: doc, engine: eng}
	result := NewResult(scenario.Name, backend)
	for _, c := range scenario.Cases {
		cr, err := h.runCase(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.Name, err)
		}
		result.Cases = append(result.Cases, cr)
		for _, msg := range EvaluateCase(c, cr, h.reference) {
			result.AddError(fmt.Sprintf("%s/%s: %s", backend, c.Name, msg))
		}
	}
	return result, nil
}

// openBackend creates an empty executor and loads the fixtures into it.
func openBackend(ctx context.Context, backend string, scenario *Scenario, doc *compiler.Document, logger *slog.Logger) (native.Executor, func(), error) {
	switch backend {
	case BackendMemory:
		return native.NewMemory(doc.Entities...), func() {}, nil

	case BackendSQLite:
		st, err := store.Open(":memory:",
			store.WithLogger(logger),
			store.WithRequiredIndexes(scenario.RequireIndexes),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		if err := st.PutAll(ctx, doc.Entities); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("failed to load entities: %w", err)
		}
		for _, ci := range doc.Indexes {
			if err := st.AddIndex(ctx, ci); err != nil {
				st.Close()
				return nil, nil, fmt.Errorf("failed to add index %s: %w", ci, err)
			}
		}
		return st, func() { st.Close() }, nil

	case BackendBadger:
		kv, err := kvstore.Open("", kvstore.InMemory(), kvstore.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create in-memory badger store: %w", err)
		}
		if err := kv.PutAll(ctx, doc.Entities); err != nil {
			kv.Close()
			return nil, nil, fmt.Errorf("failed to load entities: %w", err)
		}
		return kv, func() { kv.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// statement resolves a case to its query and fetch options.
func (h *Harness) statement(c Case) (querytext.Statement, error) {
	if c.Named != "" {
		nq, ok := h.doc.Query(c.Named)
		if !ok {
			return querytext.Statement{}, fmt.Errorf("no query named %q in fixtures", c.Named)
		}
		return querytext.Statement{Query: nq.Query, Options: nq.Options}, nil
	}
	return querytext.ParseStatement(c.Query)
}

func (h *Harness) runCase(ctx context.Context, c Case) (CaseResult, error) {
	st, err := h.statement(c)
	if err != nil {
		return CaseResult{}, err
	}
	cr := CaseResult{Name: c.Name, Query: queryir.Normalize(st.Query).String()}

	pq, err := h.engine.Prepare(st.Query)
	if err != nil {
		cr.Err = err
		cr.ErrorCategory = Categorize(err)
		return cr, nil
	}
	ex := pq.Explain()
	cr.Explanation = &ex

	entities, err := pq.AsList(ctx, st.Options)
	if err != nil {
		cr.Err = err
		cr.ErrorCategory = Categorize(err)
		return cr, nil
	}
	cr.Keys = keyStrings(entities)

	cr.Count, err = pq.Count(ctx, st.Options)
	if err != nil {
		cr.Err = err
		cr.ErrorCategory = Categorize(err)
	}
	return cr, nil
}

// reference evaluates the case's query directly over the fixtures.
func (h *Harness) reference(c Case) ([]string, bool, error) {
	st, err := h.statement(c)
	if err != nil {
		return nil, false, err
	}
	return ReferenceKeys(st, h.doc.Entities)
}

// Categorize maps an error to the category scenarios expect.
func Categorize(err error) string {
	if category, ok := queryir.ShapeCategoryOf(err); ok {
		return string(category)
	}
	if planner.IsTooManyAlternatives(err) {
		return CategoryTooManyAlternatives
	}
	var missing *store.MissingIndexError
	if errors.As(err, &missing) {
		return CategoryMissingIndex
	}
	return CategoryOther
}

func keyStrings(entities []ir.Entity) []string {
	keys := make([]string, len(entities))
	for i, e := range entities {
		keys[i] = e.Key.String()
	}
	return keys
}
