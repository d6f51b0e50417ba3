package indexshape

import (
	"slices"
	"strings"

	"github.com/roach88/dsquery/internal/queryir"
)

// CompositeIndex describes an index over one kind.
type CompositeIndex struct {
	Kind       string          `json:"kind" yaml:"kind"`
	Ancestor   bool            `json:"ancestor" yaml:"ancestor"`
	Properties []IndexProperty `json:"properties" yaml:"properties"`
}

// Equal reports whether two indexes have the same kind, ancestor flag and
// columns.
func (ci CompositeIndex) Equal(other CompositeIndex) bool {
	return ci.Kind == other.Kind &&
		ci.Ancestor == other.Ancestor &&
		slices.Equal(ci.Properties, other.Properties)
}

// String renders the index as `Task ancestor (owner asc, due desc)`.
func (ci CompositeIndex) String() string {
	var b strings.Builder
	b.WriteString(ci.Kind)
	if ci.Ancestor {
		b.WriteString(" ancestor")
	}
	b.WriteString(" (")
	for i, p := range ci.Properties {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(")")
	return b.String()
}

// CompositeIndexForQuery returns the composite index the store needs to
// serve q, or nil when built-in single-property indexes suffice.
func CompositeIndexForQuery(s Shape) *CompositeIndex {
	q := s.stripped
	hasKind := q.Kind != ""
	isAncestor := q.Ancestor != nil

	if len(q.Filters) == 0 && len(q.Sorts) == 0 {
		return nil
	}

	if hasKind && len(s.EqualityProperties) > 0 &&
		len(s.EqualityProperties) == len(q.Filters) &&
		!s.ReferencesKey && len(q.Sorts) == 0 {
		return nil
	}

	if hasKind && !isAncestor && len(s.IndexProperties) <= 1 &&
		(!s.ReferencesKey || s.IndexProperties[0].Direction == queryir.Ascending) {
		return nil
	}

	return &CompositeIndex{
		Kind:       q.Kind,
		Ancestor:   isAncestor,
		Properties: slices.Clone(s.IndexProperties),
	}
}

// MinimumCompositeIndexForQuery returns the smallest index that, added to
// existing, lets the store serve q by merge-joining indexes that share the
// query's non-equality suffix. It returns nil when existing already covers
// q or q needs no composite index at all.
func MinimumCompositeIndexForQuery(s Shape, existing []CompositeIndex) *CompositeIndex {
	index := CompositeIndexForQuery(s)
	if index == nil {
		return nil
	}

	eqCount := len(s.EqualityProperties)
	postfix := s.IndexProperties[eqCount:]
	prefixRemaining := make(map[string]bool, eqCount)
	for _, prop := range s.EqualityProperties {
		prefixRemaining[prop] = true
	}
	ancestorRemaining := s.stripped.Ancestor != nil

	for _, candidate := range existing {
		prefixSize := len(candidate.Properties) - len(postfix)
		if candidate.Kind != index.Kind ||
			(s.stripped.Ancestor == nil && candidate.Ancestor) ||
			prefixSize < 0 {
			continue
		}
		if !slices.Equal(postfix, candidate.Properties[prefixSize:]) {
			continue
		}

		covered := true
		for _, p := range candidate.Properties[:prefixSize] {
			if !slices.Contains(s.EqualityProperties, p.Property) {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}

		for _, p := range candidate.Properties[:prefixSize] {
			delete(prefixRemaining, p.Property)
		}
		if candidate.Ancestor {
			ancestorRemaining = false
		}
		if len(prefixRemaining) == 0 && !ancestorRemaining {
			return nil
		}
	}

	minimum := &CompositeIndex{Kind: index.Kind, Ancestor: index.Ancestor && ancestorRemaining}
	for i, p := range index.Properties {
		if i < eqCount && !prefixRemaining[p.Property] {
			continue
		}
		minimum.Properties = append(minimum.Properties, p)
	}
	return minimum
}
