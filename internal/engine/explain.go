package engine

import (
	"github.com/roach88/dsquery/internal/indexshape"
	"github.com/roach88/dsquery/internal/planner"
)

// Explanation describes how a prepared query runs. It is rendered by the CLI
// explain command and compared against golden files.
type Explanation struct {
	Query          string                     `json:"query" yaml:"query"`
	Equality       []string                   `json:"equality,omitempty" yaml:"equality,omitempty"`
	IndexShape     []indexshape.IndexProperty `json:"index_shape,omitempty" yaml:"index_shape,omitempty"`
	ReferencesKey  bool                       `json:"references_key,omitempty" yaml:"references_key,omitempty"`
	CompositeIndex string                     `json:"composite_index,omitempty" yaml:"composite_index,omitempty"`
	BaseFilters    []string                   `json:"base_filters,omitempty" yaml:"base_filters,omitempty"`
	Acceptors      []string                   `json:"acceptors,omitempty" yaml:"acceptors,omitempty"`
	Components     []ComponentExplanation     `json:"components,omitempty" yaml:"components,omitempty"`
	NativeQueries  int                        `json:"native_queries" yaml:"native_queries"`
	PerBatch       int                        `json:"per_batch" yaml:"per_batch"`
	Batches        []BatchExplanation         `json:"batches" yaml:"batches"`
}

// ComponentExplanation describes one split filter.
type ComponentExplanation struct {
	Filter       string     `json:"filter" yaml:"filter"`
	Mode         string     `json:"mode" yaml:"mode"`
	SortPosition int        `json:"sort_position" yaml:"sort_position"`
	Alternatives [][]string `json:"alternatives" yaml:"alternatives"`
}

// BatchExplanation lists the native queries of one batch.
type BatchExplanation struct {
	Index   int      `json:"index" yaml:"index"`
	Queries []string `json:"queries" yaml:"queries"`
}

// Explain returns the normalized query, its index requirements and its
// decomposition into batches of native queries.
func (p *PreparedQuery) Explain() Explanation {
	plan := p.plan
	ex := Explanation{
		Query:         plan.Query.String(),
		Equality:      p.shape.EqualityProperties,
		IndexShape:    p.shape.IndexProperties,
		ReferencesKey: p.shape.ReferencesKey,
		Acceptors:     plan.Acceptors.Names(),
		NativeQueries: plan.TotalNativeQueries(),
		PerBatch:      plan.ConcurrentAlternatives(),
	}
	if p.index != nil {
		ex.CompositeIndex = p.index.String()
	}
	for _, f := range plan.BaseFilters {
		ex.BaseFilters = append(ex.BaseFilters, f.String())
	}
	for _, c := range plan.Components {
		ex.Components = append(ex.Components, explainComponent(c))
	}
	for b := range plan.Batches() {
		be := BatchExplanation{Index: b.Index}
		for _, q := range b.Queries {
			be.Queries = append(be.Queries, q.String())
		}
		ex.Batches = append(ex.Batches, be)
	}
	return ex
}

func explainComponent(c planner.ExecutionComponent) ComponentExplanation {
	ce := ComponentExplanation{
		Filter:       c.Source.Source.String(),
		Mode:         c.Mode.String(),
		SortPosition: c.SortPosition,
	}
	for _, alt := range c.Alternatives {
		var filters []string
		for _, f := range alt {
			filters = append(filters, f.String())
		}
		ce.Alternatives = append(ce.Alternatives, filters)
	}
	return ce
}

// CompositeIndex returns the composite index the query needs, or nil.
func (p *PreparedQuery) CompositeIndex() *indexshape.CompositeIndex {
	return p.index
}

// MissingIndex returns the smallest index to add to existing so the store
// can serve the query, or nil when existing suffices.
func (p *PreparedQuery) MissingIndex(existing []indexshape.CompositeIndex) *indexshape.CompositeIndex {
	return indexshape.MinimumCompositeIndexForQuery(p.shape, existing)
}
