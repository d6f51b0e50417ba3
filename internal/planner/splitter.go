package planner

import (
	"slices"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// NoSortPosition marks a split component whose property is not sorted.
const NoSortPosition = -1

// FilterAlternativeSet is one branch a splitter produces for a filter. Every
// native query built from the branch carries all of its filters.
type FilterAlternativeSet []queryir.FilterPredicate

// SplitComponent holds the alternatives one unsupported filter became.
// SortPosition is the filtered property's index in the sort list, or
// NoSortPosition.
type SplitComponent struct {
	SortPosition int
	Alternatives []FilterAlternativeSet
	Source       queryir.FilterPredicate
}

// splitFunc rewrites one filter into native alternatives plus the acceptors
// that keep the union of branches exact.
type splitFunc func(f queryir.FilterPredicate, sorts []queryir.SortPredicate) (SplitComponent, []Acceptor)

// splitters is keyed by the operator each one handles. Filters with any other
// operator stay in the base filters.
var splitters = map[queryir.Operator]splitFunc{
	queryir.NotEqual: splitNotEqual,
	queryir.In:       splitIn,
}

// Split separates q's filters into base filters, which every native query
// carries unchanged, and split components. Components come back in filter
// order.
func Split(q queryir.Query) ([]queryir.FilterPredicate, []SplitComponent, AcceptorSet) {
	var (
		base       []queryir.FilterPredicate
		components []SplitComponent
		acceptors  AcceptorSet
	)
	for _, f := range q.Filters {
		split, ok := splitters[f.Operator]
		if !ok {
			base = append(base, f)
			continue
		}
		component, extra := split(f, q.Sorts)
		components = append(components, component)
		for _, a := range extra {
			acceptors = acceptors.Add(a)
		}
	}
	if len(components) > 0 {
		acceptors = acceptors.Add(KeyDedup())
	}
	return base, components, acceptors
}

func sortPosition(property string, sorts []queryir.SortPredicate) (int, queryir.Direction) {
	for i, s := range sorts {
		if s.Property == property {
			return i, s.Direction
		}
	}
	return NoSortPosition, queryir.Ascending
}

// splitNotEqual turns p != v into p < v and p > v, ordered to follow p's
// sort direction.
func splitNotEqual(f queryir.FilterPredicate, sorts []queryir.SortPredicate) (SplitComponent, []Acceptor) {
	pos, dir := sortPosition(f.Property, sorts)
	below := FilterAlternativeSet{{Property: f.Property, Operator: queryir.LessThan, Value: f.Value}}
	above := FilterAlternativeSet{{Property: f.Property, Operator: queryir.GreaterThan, Value: f.Value}}

	alternatives := []FilterAlternativeSet{below, above}
	if dir == queryir.Descending {
		alternatives = []FilterAlternativeSet{above, below}
	}
	return SplitComponent{SortPosition: pos, Alternatives: alternatives, Source: f},
		[]Acceptor{NotEqual(f.Property, f.Value)}
}

// splitIn turns p IN [v1..vn] into one EQUAL branch per distinct value.
// When p is sorted the branches follow the sort direction; otherwise they
// keep the caller's order and the component gets NoSortPosition, not the
// first position, so a sorted query merges its branches.
func splitIn(f queryir.FilterPredicate, sorts []queryir.SortPredicate) (SplitComponent, []Acceptor) {
	var values []ir.Value
	for _, v := range f.Values {
		if !ir.ContainsValue(values, v) {
			values = append(values, v)
		}
	}

	pos, dir := sortPosition(f.Property, sorts)
	if pos != NoSortPosition {
		slices.SortStableFunc(values, ir.Compare)
		if dir == queryir.Descending {
			slices.Reverse(values)
		}
	}

	alternatives := make([]FilterAlternativeSet, len(values))
	for i, v := range values {
		alternatives[i] = FilterAlternativeSet{{Property: f.Property, Operator: queryir.Equal, Value: v}}
	}
	return SplitComponent{SortPosition: pos, Alternatives: alternatives, Source: f}, nil
}
