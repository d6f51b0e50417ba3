package indexshape

import (
	"slices"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// IndexProperty is one column of an index: a property and its direction.
type IndexProperty struct {
	Property  string            `json:"property" yaml:"property"`
	Direction queryir.Direction `json:"direction" yaml:"direction"`
}

func (p IndexProperty) String() string {
	return p.Property + " " + p.Direction.String()
}

// Shape is the index a query needs once the parts the store serves without
// an index are stripped away.
type Shape struct {
	// EqualityProperties are the properties fixed by equality (EQUAL, or IN
	// which is an equality in every split branch), sorted by name.
	EqualityProperties []string

	// IndexProperties lists the equality properties first (ascending, by
	// name), then the implied or explicit sort columns, then EXISTS-only
	// properties.
	IndexProperties []IndexProperty

	// ReferencesKey is set when a remaining filter or sort names the key
	// property.
	ReferencesKey bool

	stripped queryir.Query
}

// Extract derives the index shape of q.
//
// An ascending key sort at the end of the sort list is served by every
// index, so it is dropped. Unless a descending key sort remains, key filters
// are dropped too when no other property carries an inequality.
func Extract(q queryir.Query) Shape {
	stripped := stripNativelySupported(q)
	s := Shape{stripped: stripped}

	equality := make(map[string]bool)
	var inequality, exists []string
	for _, f := range stripped.Filters {
		switch {
		case f.Operator == queryir.Equal || f.Operator == queryir.In:
			equality[f.Property] = true
		case f.Operator == queryir.Exists:
			if !slices.Contains(exists, f.Property) {
				exists = append(exists, f.Property)
			}
		case f.Operator.IsInequality():
			if !slices.Contains(inequality, f.Property) {
				inequality = append(inequality, f.Property)
			}
		}
		if f.Property == ir.KeyProperty {
			s.ReferencesKey = true
		}
	}

	for prop := range equality {
		s.EqualityProperties = append(s.EqualityProperties, prop)
	}
	slices.Sort(s.EqualityProperties)
	for _, prop := range s.EqualityProperties {
		s.IndexProperties = append(s.IndexProperties, IndexProperty{Property: prop})
	}

	if len(stripped.Sorts) == 0 && len(inequality) > 0 {
		s.IndexProperties = append(s.IndexProperties, IndexProperty{Property: inequality[0]})
	}

	for _, sort := range stripped.Sorts {
		if sort.Property == ir.KeyProperty {
			s.ReferencesKey = true
		}
		s.IndexProperties = append(s.IndexProperties, IndexProperty(sort))
	}

	for _, prop := range exists {
		if !s.hasIndexProperty(prop) {
			s.IndexProperties = append(s.IndexProperties, IndexProperty{Property: prop})
		}
	}
	return s
}

func (s Shape) hasIndexProperty(prop string) bool {
	for _, p := range s.IndexProperties {
		if p.Property == prop {
			return true
		}
	}
	return false
}

func stripNativelySupported(q queryir.Query) queryir.Query {
	out := q.Clone()

	keyDesc := false
	if n := len(out.Sorts); n > 0 && out.Sorts[n-1].Property == ir.KeyProperty {
		if out.Sorts[n-1].Direction == queryir.Ascending {
			out.Sorts = out.Sorts[:n-1]
		} else {
			keyDesc = true
		}
	}
	if keyDesc {
		return out
	}

	for _, f := range out.Filters {
		if f.Operator.IsInequality() && f.Property != ir.KeyProperty {
			return out
		}
	}
	out.Filters = slices.DeleteFunc(out.Filters, func(f queryir.FilterPredicate) bool {
		return f.Property == ir.KeyProperty
	})
	return out
}
