package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/dsquery/internal/compiler"
	"github.com/roach88/dsquery/internal/config"
	"github.com/roach88/dsquery/internal/engine"
	"github.com/roach88/dsquery/internal/indexshape"
	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/kvstore"
	"github.com/roach88/dsquery/internal/metrics"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/store"
)

// session is an open store plus the engine querying it.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector

	executor native.Executor
	engine   *engine.Engine

	// sqlite is set for the sqlite backend, which is the only one that
	// tracks composite indexes.
	sqlite *store.Store
	badger *kvstore.Store
	memory *native.Memory

	// doc holds documents loaded with --data, for named queries.
	doc *compiler.Document
}

// openSession opens the configured backend and loads data documents into
// it. The memory backend starts empty each time, so it is only useful with
// data documents.
func openSession(ctx context.Context, opts *RootOptions, data []string) (*session, error) {
	cfg := opts.settings()
	s := &session{
		cfg:     cfg,
		logger:  opts.logger(),
		metrics: metrics.New(),
		doc:     &compiler.Document{},
	}

	switch cfg.Store.Backend {
	case config.BackendSQLite:
		st, err := store.Open(cfg.Store.Path,
			store.WithLogger(s.logger),
			store.WithRequiredIndexes(cfg.Store.RequireIndexes),
		)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open store", err)
		}
		s.sqlite, s.executor = st, st
	case config.BackendBadger:
		kv, err := kvstore.Open(cfg.Store.Path, kvstore.WithLogger(s.logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open store", err)
		}
		s.badger, s.executor = kv, kv
	case config.BackendMemory:
		s.memory = native.NewMemory()
		s.executor = s.memory
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown backend %q", cfg.Store.Backend))
	}

	if len(data) > 0 {
		result, err := LoadDocuments(data...)
		if err != nil {
			s.Close()
			return nil, WrapExitError(ExitCommandError, "failed to load data", err)
		}
		if errs := compiler.Validate(result.Document); len(errs) > 0 {
			s.Close()
			return nil, WrapExitError(ExitCommandError, "invalid data", errs[0])
		}
		if err := s.load(ctx, result.Document); err != nil {
			s.Close()
			return nil, err
		}
		s.doc = result.Document
	}

	eng, err := engine.New(s.executor,
		engine.WithLogger(s.logger),
		engine.WithMetrics(s.metrics),
		engine.WithMaxConcurrentSources(cfg.Engine.MaxConcurrentSources),
		engine.WithChunkSize(cfg.Engine.ChunkSize),
	)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	s.engine = eng
	return s, nil
}

// load writes a document's entities and indexes into the store.
func (s *session) load(ctx context.Context, doc *compiler.Document) error {
	if err := s.putAll(ctx, doc.Entities); err != nil {
		return WrapExitError(ExitCommandError, "failed to write entities", err)
	}
	for _, ci := range doc.Indexes {
		if err := s.addIndex(ctx, ci); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to add index %s", ci), err)
		}
	}
	s.logger.Info("data loaded",
		"backend", s.cfg.Store.Backend,
		"entities", len(doc.Entities),
		"indexes", len(doc.Indexes))
	return nil
}

func (s *session) putAll(ctx context.Context, entities []ir.Entity) error {
	switch {
	case s.sqlite != nil:
		return s.sqlite.PutAll(ctx, entities)
	case s.badger != nil:
		return s.badger.PutAll(ctx, entities)
	default:
		for _, e := range entities {
			s.memory.Put(e)
		}
		return nil
	}
}

// addIndex declares a composite index. Only the sqlite store checks
// indexes; the other backends serve every native query and ignore them.
func (s *session) addIndex(ctx context.Context, ci indexshape.CompositeIndex) error {
	if s.sqlite == nil {
		s.logger.Debug("index ignored by backend", "backend", s.cfg.Store.Backend, "index", ci.String())
		return nil
	}
	return s.sqlite.AddIndex(ctx, ci)
}

// indexes returns the composite indexes declared for kind, if the backend
// tracks any.
func (s *session) indexes(ctx context.Context, kind string) ([]indexshape.CompositeIndex, error) {
	if s.sqlite == nil {
		return nil, nil
	}
	return s.sqlite.Indexes(ctx, kind)
}

// Close releases the engine and the store.
func (s *session) Close() {
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.Error("error closing engine", "error", err)
		}
	}
	var err error
	switch {
	case s.sqlite != nil:
		err = s.sqlite.Close()
	case s.badger != nil:
		err = s.badger.Close()
	}
	if err != nil {
		s.logger.Error("error closing store", "error", err)
	}
}
