package engine

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/match"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/planner"
	"github.com/roach88/dsquery/internal/queryir"
)

// stream yields the decoded entities of one batch.
type stream interface {
	next(ctx context.Context) (ir.Entity, error)
	close()
}

// cursor owns one native source and its one-entity lookahead.
type cursor struct {
	batch       int
	alternative int
	query       queryir.Query
	src         native.Source
	ordering    *match.Ordering // nil when the cursor is not merged

	head ir.Entity
	key  match.SortKey
	done bool
}

// advance reads the next entity into head. At the end of the source it
// sets done.
func (c *cursor) advance(ctx context.Context) error {
	rec, err := c.src.Next(ctx)
	if errors.Is(err, io.EOF) {
		c.done = true
		return nil
	}
	if err != nil {
		return c.fail(ErrCodeSourceFailed, err)
	}
	e, err := ir.DecodeEntity(rec)
	if err != nil {
		return c.fail(ErrCodeDecode, err)
	}
	c.head = e
	if c.ordering == nil {
		return nil
	}
	key, err := c.ordering.SortKey(e)
	if err != nil {
		return &AcceptorContractError{
			Alternative: c.alternative,
			Query:       c.query,
			Key:         e.Key,
			Err:         err,
		}
	}
	c.key = key
	return nil
}

func (c *cursor) fail(code ErrorCode, err error) error {
	// A canceled run is not a source failure.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &SourceExecutionError{
		Code:        code,
		Batch:       c.batch,
		Alternative: c.alternative,
		Query:       c.query,
		Err:         err,
	}
}

func (c *cursor) close() {
	if c.src != nil {
		c.src.Close()
	}
}

// direct streams a single native query in store order.
type direct struct {
	c *cursor
}

func (d *direct) next(ctx context.Context) (ir.Entity, error) {
	if err := d.c.advance(ctx); err != nil {
		return ir.Entity{}, err
	}
	if d.c.done {
		return ir.Entity{}, io.EOF
	}
	return d.c.head, nil
}

func (d *direct) close() {
	d.c.close()
}

// cursorHeap orders cursors by their head entity. Equal heads resolve by
// alternative, so duplicate deliveries across branches come out in a fixed
// order.
type cursorHeap struct {
	cursors  []*cursor
	ordering *match.Ordering
}

func (h *cursorHeap) Len() int { return len(h.cursors) }

func (h *cursorHeap) Less(i, j int) bool {
	a, b := h.cursors[i], h.cursors[j]
	if c := h.ordering.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.alternative < b.alternative
}

func (h *cursorHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *cursorHeap) Push(x any) { h.cursors = append(h.cursors, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := h.cursors
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	h.cursors = old[:n-1]
	return c
}

// merger is a k-way merge over the native queries of one batch. It buffers
// at most one entity per source.
type merger struct {
	all  []*cursor
	heap *cursorHeap
	// popped is the cursor whose head was returned last; it is advanced on
	// the next call so a canceled consumer never triggers an extra read.
	popped *cursor
}

func (m *merger) next(ctx context.Context) (ir.Entity, error) {
	if c := m.popped; c != nil {
		m.popped = nil
		if err := c.advance(ctx); err != nil {
			return ir.Entity{}, err
		}
		if !c.done {
			heap.Push(m.heap, c)
		}
	}
	if m.heap.Len() == 0 {
		return ir.Entity{}, io.EOF
	}
	c := heap.Pop(m.heap).(*cursor)
	m.popped = c
	return c.head, nil
}

func (m *merger) close() {
	for _, c := range m.all {
		c.close()
	}
}

// openBatch starts every native query of batch. A single query streams
// directly; several are opened and primed concurrently on the engine's pool,
// then merged.
func (r *run) openBatch(ctx context.Context, batch planner.Batch) (stream, error) {
	e := r.engine
	e.metrics.BatchStarted(len(batch.Queries))
	r.logger.Debug("batch started", "batch", batch.Index, "sources", len(batch.Queries))

	if len(batch.Queries) == 1 {
		c := &cursor{batch: batch.Index, query: r.nativeQuery(batch.Queries[0])}
		src, err := e.executor.ExecuteNative(ctx, c.query, r.fetch)
		if err != nil {
			return nil, r.sourceFailed(c.fail(ErrCodeSourceFailed, err))
		}
		c.src = src
		return &direct{c: c}, nil
	}

	cursors := make([]*cursor, len(batch.Queries))
	for i, q := range batch.Queries {
		nq := r.nativeQuery(q)
		ordering, err := match.NewOrdering(r.plan.Query.Sorts, nq.Filters)
		if err != nil {
			return nil, fmt.Errorf("ordering for alternative %d: %w", i, err)
		}
		cursors[i] = &cursor{batch: batch.Index, alternative: i, query: nq, ordering: ordering}
	}

	errs := make([]error, len(cursors))
	var wg sync.WaitGroup
	for i, c := range cursors {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					errs[i] = c.fail(ErrCodeSourceFailed, fmt.Errorf("panic: %v", v))
				}
			}()
			errs[i] = r.prime(ctx, c)
		}
		if err := e.submit(task); err != nil {
			wg.Done()
			errs[i] = c.fail(ErrCodeSourceFailed, fmt.Errorf("submit: %w", err))
		}
	}
	wg.Wait()

	m := &merger{all: cursors, heap: &cursorHeap{ordering: cursors[0].ordering}}
	for i, err := range errs {
		if err != nil {
			m.close()
			return nil, r.sourceFailed(err)
		}
		if c := cursors[i]; !c.done {
			m.heap.cursors = append(m.heap.cursors, c)
		}
	}
	heap.Init(m.heap)
	return m, nil
}

// prime opens c's source and reads its first entity.
func (r *run) prime(ctx context.Context, c *cursor) error {
	r.logger.Debug("source started", "batch", c.batch, "alternative", c.alternative, "query", c.query.String())
	src, err := r.engine.executor.ExecuteNative(ctx, c.query, r.fetch)
	if err != nil {
		return c.fail(ErrCodeSourceFailed, err)
	}
	c.src = src
	return c.advance(ctx)
}
