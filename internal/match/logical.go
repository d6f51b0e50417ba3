package match

import (
	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// Logical evaluates a logical query directly, without planning. It is the
// reference the engine's decomposed execution is checked against.
//
// Semantics: an entity matches when it matches at least one native branch
// of the query (each IN value and each side of a NOT_EQUAL is a branch) and
// no value of a NOT_EQUAL property equals the excluded value.
type Logical struct {
	query    queryir.Query
	branches []*Matcher
	filters  [][]queryir.FilterPredicate
	excluded map[string][]ir.Value
}

// NewLogical expands q's branches. q should already be normalized.
func NewLogical(q queryir.Query) (*Logical, error) {
	l := &Logical{query: q, excluded: make(map[string][]ir.Value)}

	combos := [][]queryir.FilterPredicate{nil}
	for _, f := range q.Filters {
		var alternatives []queryir.FilterPredicate
		switch f.Operator {
		case queryir.In:
			for _, v := range f.Values {
				alternatives = append(alternatives, queryir.FilterPredicate{Property: f.Property, Operator: queryir.Equal, Value: v})
			}
		case queryir.NotEqual:
			l.excluded[f.Property] = append(l.excluded[f.Property], f.Value)
			alternatives = []queryir.FilterPredicate{
				{Property: f.Property, Operator: queryir.LessThan, Value: f.Value},
				{Property: f.Property, Operator: queryir.GreaterThan, Value: f.Value},
			}
		default:
			alternatives = []queryir.FilterPredicate{f}
		}

		next := make([][]queryir.FilterPredicate, 0, len(combos)*len(alternatives))
		for _, combo := range combos {
			for _, alt := range alternatives {
				extended := make([]queryir.FilterPredicate, len(combo), len(combo)+1)
				copy(extended, combo)
				next = append(next, append(extended, alt))
			}
		}
		combos = next
	}

	for _, combo := range combos {
		m, err := NewMatcher(q.WithFilters(combo))
		if err != nil {
			return nil, err
		}
		l.branches = append(l.branches, m)
		l.filters = append(l.filters, combo)
	}
	return l, nil
}

// Matches reports whether e satisfies the logical query.
func (l *Logical) Matches(e ir.Entity) bool {
	for prop, excluded := range l.excluded {
		for _, v := range e.Values(prop) {
			if ir.ContainsValue(excluded, v) {
				return false
			}
		}
	}
	for _, b := range l.branches {
		if b.Matches(e) {
			return true
		}
	}
	return false
}

// Ordering returns the order the logical query's results follow. A value
// is plausible for ordering when any branch would consider it.
func (l *Logical) Ordering() *Ordering {
	branchMatchers := make([]map[string]*PropertyMatcher, 0, len(l.filters))
	for _, combo := range l.filters {
		matchers, err := propertyMatchers(l.query.Sorts, combo)
		if err != nil {
			continue
		}
		branchMatchers = append(branchMatchers, matchers)
	}
	return &Ordering{
		orders: AdjustedOrders(l.query.Sorts, l.query.Filters),
		consider: func(property string, v ir.Value) bool {
			for _, matchers := range branchMatchers {
				pm, ok := matchers[property]
				if !ok || pm.ConsiderValueForOrder(v) {
					return true
				}
			}
			return false
		},
	}
}

// Select returns the entities matching the logical query in its order.
func (l *Logical) Select(entities []ir.Entity) ([]ir.Entity, error) {
	var out []ir.Entity
	for _, e := range entities {
		if l.Matches(e) {
			out = append(out, e)
		}
	}
	if err := l.Ordering().Sort(out); err != nil {
		return nil, err
	}
	return out, nil
}
