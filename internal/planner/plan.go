package planner

import (
	"slices"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// MultiQueryPlan is a logical query decomposed into native queries.
// It is immutable once built; enumeration state lives in EnumerationCursor.
type MultiQueryPlan struct {
	// Query is the normalized logical query.
	Query queryir.Query

	// BaseFilters are carried unchanged by every native query.
	BaseFilters []queryir.FilterPredicate

	Acceptors  AcceptorSet
	Components []ExecutionComponent
}

// Build normalizes, validates and decomposes a logical query.
func Build(q queryir.Query) (*MultiQueryPlan, error) {
	normalized := queryir.Normalize(q)
	if err := queryir.ValidateLogical(normalized); err != nil {
		return nil, err
	}

	base, split, acceptors := Split(normalized)
	components, err := Assemble(split, len(normalized.Sorts))
	if err != nil {
		return nil, err
	}

	p := &MultiQueryPlan{
		Query:       normalized,
		BaseFilters: base,
		Acceptors:   acceptors,
		Components:  components,
	}
	if err := p.checkKeysOnlyMerge(); err != nil {
		return nil, err
	}
	return p, nil
}

// checkKeysOnlyMerge rejects keys-only plans that merge on property values.
func (p *MultiQueryPlan) checkKeysOnlyMerge() error {
	if !p.Query.KeysOnly || !p.HasConcurrent() {
		return nil
	}
	for _, s := range p.Query.Sorts {
		if s.Property != ir.KeyProperty {
			return &queryir.QueryShapeError{
				Category: queryir.CategoryKeysOnlySort,
				Property: s.Property,
				Message:  "keys-only queries that merge results in memory can only sort on " + ir.KeyProperty,
			}
		}
	}
	return nil
}

// HasConcurrent reports whether any component merges in memory.
func (p *MultiQueryPlan) HasConcurrent() bool {
	return slices.ContainsFunc(p.Components, func(c ExecutionComponent) bool {
		return c.Mode == Concurrent
	})
}

// ConcurrentAlternatives returns how many native queries each batch runs.
func (p *MultiQueryPlan) ConcurrentAlternatives() int {
	n := 1
	for _, c := range p.Components {
		if c.Mode == Concurrent {
			n *= len(c.Alternatives)
		}
	}
	return n
}

// TotalNativeQueries returns how many native queries a full run issues.
func (p *MultiQueryPlan) TotalNativeQueries() int {
	n := 1
	for _, c := range p.Components {
		n *= len(c.Alternatives)
	}
	return n
}

// NativeQuery builds the native query for base filters plus the given
// filters, normalized so sorts fixed by the branch drop out.
func (p *MultiQueryPlan) NativeQuery(filters []queryir.FilterPredicate) queryir.Query {
	all := make([]queryir.FilterPredicate, 0, len(p.BaseFilters)+len(filters))
	all = append(all, p.BaseFilters...)
	all = append(all, filters...)
	return queryir.Normalize(p.Query.WithFilters(all))
}

// Representative returns the native query built from the first alternative
// of every component. Validating it checks the shape every branch shares.
func (p *MultiQueryPlan) Representative() queryir.Query {
	var filters []queryir.FilterPredicate
	for _, c := range p.Components {
		filters = append(filters, c.Alternatives[0]...)
	}
	return p.NativeQuery(filters)
}

// Cursor starts a fresh enumeration over the plan's batches.
func (p *MultiQueryPlan) Cursor() *EnumerationCursor {
	return newCursor(p)
}
