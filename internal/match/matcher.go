package match

import (
	"slices"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// Matcher evaluates a native query against decoded entities: kind,
// ancestor, every filter, and presence of every sorted property.
type Matcher struct {
	kind       string
	ancestor   *ir.Key
	properties map[string]*PropertyMatcher
	names      []string
}

// NewMatcher builds a matcher for a native query. IN and NOT_EQUAL filters
// are rejected; split them first.
func NewMatcher(q queryir.Query) (*Matcher, error) {
	matchers, err := propertyMatchers(q.Sorts, q.Filters)
	if err != nil {
		return nil, err
	}
	m := &Matcher{kind: q.Kind, ancestor: q.Ancestor, properties: matchers}
	for name := range matchers {
		m.names = append(m.names, name)
	}
	slices.Sort(m.names)
	return m, nil
}

// propertyMatchers groups filters by property. Sorted properties up to the
// first key sort get a match-all entry so entities lacking them are
// excluded, as the index would exclude them.
func propertyMatchers(sorts []queryir.SortPredicate, filters []queryir.FilterPredicate) (map[string]*PropertyMatcher, error) {
	matchers := make(map[string]*PropertyMatcher)
	for _, f := range filters {
		pm, ok := matchers[f.Property]
		if !ok {
			pm = &PropertyMatcher{}
			matchers[f.Property] = pm
		}
		if err := pm.AddFilter(f); err != nil {
			return nil, err
		}
	}
	for _, s := range sorts {
		if _, ok := matchers[s.Property]; !ok {
			matchers[s.Property] = &PropertyMatcher{}
		}
		if s.Property == ir.KeyProperty {
			break
		}
	}
	return matchers, nil
}

// Matches reports whether e belongs in the query's result.
func (m *Matcher) Matches(e ir.Entity) bool {
	if m.kind != "" && e.Key.Kind() != m.kind {
		return false
	}
	if m.ancestor != nil && !e.Key.HasAncestor(*m.ancestor) {
		return false
	}
	for _, name := range m.names {
		if !m.properties[name].Matches(e.Values(name)) {
			return false
		}
	}
	return true
}

// Property returns the matcher for one property, or nil when the query does
// not constrain it.
func (m *Matcher) Property(name string) *PropertyMatcher {
	return m.properties[name]
}
