package queryir

import (
	"fmt"

	"github.com/roach88/dsquery/internal/ir"
)

// Builder assembles a Query fluently. The first construction error is
// recorded and returned by Build; later calls become no-ops.
//
//	q, err := queryir.NewQuery("Task").
//		Filter("status", queryir.NotEqual, ir.String("done")).
//		Order("dueDate", queryir.Ascending).
//		Build()
type Builder struct {
	q          Query
	builderErr error
}

// NewQuery starts a query over kind. An empty kind builds a kindless query.
func NewQuery(kind string) *Builder {
	return &Builder{q: Query{Kind: kind}}
}

func (b *Builder) recordError(err error) *Builder {
	if b.builderErr == nil {
		b.builderErr = err
	}
	return b
}

// Ancestor restricts results to key and its descendants.
func (b *Builder) Ancestor(key ir.Key) *Builder {
	if b.builderErr != nil {
		return b
	}
	if key.IsZero() {
		return b.recordError(fmt.Errorf("ancestor key has no path"))
	}
	b.q.Ancestor = &key
	return b
}

// Filter adds a scalar filter.
func (b *Builder) Filter(property string, op Operator, value ir.Value) *Builder {
	if b.builderErr != nil {
		return b
	}
	f, err := NewFilter(property, op, value)
	if err != nil {
		return b.recordError(err)
	}
	b.q.Filters = append(b.q.Filters, f)
	return b
}

// In adds an IN filter.
func (b *Builder) In(property string, values ...ir.Value) *Builder {
	if b.builderErr != nil {
		return b
	}
	f, err := NewInFilter(property, values...)
	if err != nil {
		return b.recordError(err)
	}
	b.q.Filters = append(b.q.Filters, f)
	return b
}

// Exists adds an EXISTS filter.
func (b *Builder) Exists(property string) *Builder {
	if b.builderErr != nil {
		return b
	}
	b.q.Filters = append(b.q.Filters, ExistsFilter(property))
	return b
}

// Where appends already-constructed filters.
func (b *Builder) Where(filters ...FilterPredicate) *Builder {
	if b.builderErr != nil {
		return b
	}
	b.q.Filters = append(b.q.Filters, filters...)
	return b
}

// Order appends a sort.
func (b *Builder) Order(property string, dir Direction) *Builder {
	if b.builderErr != nil {
		return b
	}
	if property == "" {
		return b.recordError(fmt.Errorf("sort needs a property"))
	}
	b.q.Sorts = append(b.q.Sorts, SortPredicate{Property: property, Direction: dir})
	return b
}

// KeysOnly makes the query return keys without properties.
func (b *Builder) KeysOnly() *Builder {
	b.q.KeysOnly = true
	return b
}

// InTransaction marks the query as transaction-scoped.
func (b *Builder) InTransaction() *Builder {
	b.q.Transactional = true
	return b
}

// Build returns the query, or the first error recorded while building it.
// Shape validation happens later, when the query is prepared.
func (b *Builder) Build() (Query, error) {
	if b.builderErr != nil {
		return Query{}, b.builderErr
	}
	return b.q.Clone(), nil
}

// MustBuild is Build for literals in tests. Panics on error.
func (b *Builder) MustBuild() Query {
	q, err := b.Build()
	if err != nil {
		panic(err)
	}
	return q
}
