package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/planner"
	"github.com/roach88/dsquery/internal/queryir"
)

// run is one execution of a prepared query: batches in enumeration order,
// each merged or streamed, filtered by fresh acceptors and paged by one
// quota. A run is owned by a single goroutine.
type run struct {
	id     string
	engine *Engine
	plan   *planner.MultiQueryPlan
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	fetch    native.FetchOptions
	keysOnly bool // native queries fetch keys only
	strip    bool // values were fetched for acceptors; drop them on delivery
	quota    *pageQuota
	accept   planner.AcceptFunc
	batches  *planner.EnumerationCursor
	current  stream

	started  time.Time
	finished bool
	err      error
}

// newRun starts a run. Count runs fetch keys only whenever nothing
// downstream reads property values.
func (p *PreparedQuery) newRun(ctx context.Context, opts native.FetchOptions, count bool) (*run, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e := p.engine
	id := e.runIDs.Generate()
	ctx, cancel := context.WithCancel(ctx)

	needValues := p.plan.Acceptors.NeedsValues() ||
		(p.plan.HasConcurrent() && slices.ContainsFunc(p.plan.Query.Sorts, func(s queryir.SortPredicate) bool {
			return s.Property != ir.KeyProperty
		}))
	keysOnly := (p.plan.Query.KeysOnly || count) && !needValues

	pushdown := len(p.plan.Components) == 0
	fetch, quota := splitFetchOptions(opts, pushdown, e.chunkSize)

	r := &run{
		id:       id,
		engine:   e,
		plan:     p.plan,
		logger:   e.logger.With("run_id", id),
		ctx:      ctx,
		cancel:   cancel,
		fetch:    fetch,
		keysOnly: keysOnly,
		strip:    p.plan.Query.KeysOnly && !keysOnly && !count,
		quota:    quota,
		accept:   p.plan.Acceptors.Instantiate(),
		batches:  p.plan.Cursor(),
		started:  time.Now(),
	}
	r.logger.Debug("run started",
		"query", p.plan.Query.String(),
		"limit", opts.Limit,
		"offset", opts.Offset,
		"pushdown", pushdown,
		"keys_only", keysOnly,
		"count", count)
	return r, nil
}

// nativeQuery applies the run's keys-only decision to a batch query.
func (r *run) nativeQuery(q queryir.Query) queryir.Query {
	q.KeysOnly = r.keysOnly
	return q
}

// next returns the next delivered entity. ok is false once the run is over,
// with err set if it failed.
func (r *run) next() (ir.Entity, bool, error) {
	for !r.finished {
		if r.quota.exhausted() {
			r.finish(nil)
			break
		}

		if r.current == nil {
			batch, more := r.batches.Next()
			if !more {
				r.finish(nil)
				break
			}
			s, err := r.openBatch(r.ctx, batch)
			if err != nil {
				r.finish(err)
				break
			}
			r.current = s
		}

		e, err := r.current.next(r.ctx)
		if errors.Is(err, io.EOF) {
			r.current.close()
			r.current = nil
			continue
		}
		if err != nil {
			r.finish(r.sourceFailed(err))
			break
		}

		if !r.accept(e) {
			r.engine.metrics.EntityRejected()
			continue
		}
		if !r.quota.admit() {
			continue
		}
		if r.strip {
			e = e.KeyOnly()
		}
		return e, true, nil
	}
	return ir.Entity{}, false, r.err
}

// sourceFailed records a source failure in metrics.
func (r *run) sourceFailed(err error) error {
	if IsSourceError(err) {
		r.engine.metrics.SourceFailed()
	}
	return err
}

// finish closes the current batch and cancels in-flight sources. Only the
// first call has an effect.
func (r *run) finish(err error) {
	if r.finished {
		return
	}
	r.finished = true
	r.err = err
	if r.current != nil {
		r.current.close()
		r.current = nil
	}
	r.cancel()

	elapsed := time.Since(r.started)
	r.engine.metrics.RunFinished(elapsed, r.quota.Emitted(), err)

	switch {
	case err == nil:
		r.logger.Debug("run finished", "delivered", r.quota.Emitted(), "elapsed", elapsed)
	case IsAcceptorContractError(err):
		r.logger.Warn("acceptor contract violated", "error", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.logger.Debug("run canceled", "delivered", r.quota.Emitted(), "error", err)
	default:
		r.logger.Error("run failed", "delivered", r.quota.Emitted(), "error", err)
	}
}
