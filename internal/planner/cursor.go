package planner

import (
	"iter"
	"slices"

	"github.com/roach88/dsquery/internal/queryir"
)

// Batch is one enumeration step: native queries executed together and merged
// (or run directly when there is only one).
type Batch struct {
	Index   int
	Queries []queryir.Query
}

// EnumerationCursor walks a plan's batches.
//
// Sequential components form an odometer, rightmost digit fastest; each
// batch crosses the current digits with every combination of the concurrent
// components. The cursor keeps one cumulative filter list per sequential
// component, so advancing a digit only rebuilds the lists from that digit
// on. It is single-pass and must not be shared between goroutines.
type EnumerationCursor struct {
	plan       *MultiQueryPlan
	sequential []ExecutionComponent
	concurrent []ExecutionComponent

	digits  []int
	stack   [][]queryir.FilterPredicate // stack[i] = filters chosen by digits[:i]
	emitted int
	hasMore bool
}

func newCursor(p *MultiQueryPlan) *EnumerationCursor {
	c := &EnumerationCursor{plan: p, hasMore: true}
	for _, comp := range p.Components {
		if comp.Mode == Sequential {
			c.sequential = append(c.sequential, comp)
		} else {
			c.concurrent = append(c.concurrent, comp)
		}
	}
	c.digits = make([]int, len(c.sequential))
	c.stack = make([][]queryir.FilterPredicate, len(c.sequential)+1)
	c.rebuild(0)
	return c
}

// rebuild recomputes the cumulative filter lists above digit d.
func (c *EnumerationCursor) rebuild(d int) {
	for i := d; i < len(c.sequential); i++ {
		alt := c.sequential[i].Alternatives[c.digits[i]]
		next := slices.Clip(c.stack[i])
		c.stack[i+1] = append(next, alt...)
	}
}

// HasMore reports whether Next will produce another batch.
func (c *EnumerationCursor) HasMore() bool {
	return c.hasMore
}

// Next returns the next batch, or false once the odometer has wrapped.
func (c *EnumerationCursor) Next() (Batch, bool) {
	if !c.hasMore {
		return Batch{}, false
	}

	prefix := c.stack[len(c.stack)-1]
	var queries []queryir.Query
	for _, combo := range c.concurrentCombinations() {
		filters := make([]queryir.FilterPredicate, 0, len(prefix)+len(combo))
		filters = append(filters, prefix...)
		filters = append(filters, combo...)
		queries = append(queries, c.plan.NativeQuery(filters))
	}

	batch := Batch{Index: c.emitted, Queries: queries}
	c.emitted++
	c.advance()
	return batch, true
}

func (c *EnumerationCursor) advance() {
	for d := len(c.digits) - 1; d >= 0; d-- {
		c.digits[d]++
		if c.digits[d] < len(c.sequential[d].Alternatives) {
			c.rebuild(d)
			return
		}
		c.digits[d] = 0
	}
	c.hasMore = false
}

// concurrentCombinations expands the Cartesian product of the concurrent
// components, last component fastest. With none it yields one empty
// combination.
func (c *EnumerationCursor) concurrentCombinations() [][]queryir.FilterPredicate {
	combos := [][]queryir.FilterPredicate{nil}
	for _, comp := range c.concurrent {
		next := make([][]queryir.FilterPredicate, 0, len(combos)*len(comp.Alternatives))
		for _, combo := range combos {
			for _, alt := range comp.Alternatives {
				extended := make([]queryir.FilterPredicate, 0, len(combo)+len(alt))
				extended = append(extended, combo...)
				next = append(next, append(extended, alt...))
			}
		}
		combos = next
	}
	return combos
}

// Batches returns the plan's batches as a sequence, each iteration starting
// a fresh cursor.
func (p *MultiQueryPlan) Batches() iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		cursor := p.Cursor()
		for {
			batch, ok := cursor.Next()
			if !ok || !yield(batch) {
				return
			}
		}
	}
}
