package engine

import (
	"context"
	"iter"

	"github.com/roach88/dsquery/internal/indexshape"
	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/planner"
)

// PreparedQuery is a validated, planned logical query. It holds no run
// state, so it can be executed any number of times, concurrently.
type PreparedQuery struct {
	engine *Engine
	plan   *planner.MultiQueryPlan
	shape  indexshape.Shape
	index  *indexshape.CompositeIndex
}

// Plan returns the decomposition the query runs with.
func (p *PreparedQuery) Plan() *planner.MultiQueryPlan {
	return p.plan
}

// Iterator starts a run and returns a pull-style cursor over its results.
// Always Close it.
func (p *PreparedQuery) Iterator(ctx context.Context, opts native.FetchOptions) *Iterator {
	r, err := p.newRun(ctx, opts, false)
	return &Iterator{r: r, err: err}
}

// AsSequence returns the results as a lazy sequence. The run starts when the
// sequence is first ranged over and stops early if the loop breaks. A failure
// is yielded once, as the last pair.
func (p *PreparedQuery) AsSequence(ctx context.Context, opts native.FetchOptions) iter.Seq2[ir.Entity, error] {
	return func(yield func(ir.Entity, error) bool) {
		it := p.Iterator(ctx, opts)
		defer it.Close()
		for it.Next() {
			if !yield(it.Entity(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(ir.Entity{}, err)
		}
	}
}

// AsList runs the query to completion.
func (p *PreparedQuery) AsList(ctx context.Context, opts native.FetchOptions) ([]ir.Entity, error) {
	var out []ir.Entity
	for e, err := range p.AsSequence(ctx, opts) {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Count returns how many entities the query would deliver under opts: the
// accepted, deduplicated total minus the offset, capped at the limit.
// Entities are fetched keys-only unless an acceptor or the merge needs their
// values, and the run stops once offset+limit entities have been accepted.
func (p *PreparedQuery) Count(ctx context.Context, opts native.FetchOptions) (int, error) {
	r, err := p.newRun(ctx, opts, true)
	if err != nil {
		return 0, err
	}
	defer r.finish(nil)

	n := 0
	for {
		_, ok, err := r.next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// AsSingleEntity returns the only matching entity, nil when nothing matches,
// or ErrTooManyResults when more than one does.
func (p *PreparedQuery) AsSingleEntity(ctx context.Context) (*ir.Entity, error) {
	entities, err := p.AsList(ctx, native.FetchOptions{Limit: 2})
	if err != nil {
		return nil, err
	}
	switch len(entities) {
	case 0:
		return nil, nil
	case 1:
		return &entities[0], nil
	default:
		return nil, ErrTooManyResults
	}
}

// Iterator is a pull-style cursor over one run.
//
//	it := pq.Iterator(ctx, opts)
//	defer it.Close()
//	for it.Next() {
//		use(it.Entity())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	r   *run
	cur ir.Entity
	err error
}

// Next advances to the next entity. It returns false when the run is over
// or has failed; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.err != nil || it.r == nil {
		return false
	}
	e, ok, err := it.r.next()
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		return false
	}
	it.cur = e
	return true
}

// Entity returns the current entity.
func (it *Iterator) Entity() ir.Entity {
	return it.cur
}

// Err returns the error that ended the run, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close stops the run and releases its native sources. It is safe to call
// more than once.
func (it *Iterator) Close() error {
	if it.r != nil {
		it.r.finish(nil)
	}
	return nil
}
