package queryir

import (
	"github.com/roach88/dsquery/internal/ir"
)

// Normalize returns the canonical form of q. The rules apply once, in order:
//
//  1. an IN filter with a single value becomes EQUAL
//  2. a sort on a property fixed by EQUAL (and not also under an
//     inequality) is dropped, as is any sort repeating an earlier property
//  3. an EQUAL filter on the key property drops every sort
//  4. sorts after the first key sort are dropped
//
// Normalize does not validate; an invalid query stays invalid.
func Normalize(q Query) Query {
	out := q.Clone()

	for i, f := range out.Filters {
		if f.Operator == In && len(f.Values) == 1 {
			out.Filters[i] = FilterPredicate{Property: f.Property, Operator: Equal, Value: f.Values[0]}
		}
	}

	equality := make(map[string]bool)
	inequality := make(map[string]bool)
	for _, f := range out.Filters {
		switch {
		case f.Operator == Equal:
			equality[f.Property] = true
		case f.Operator.IsInequality():
			inequality[f.Property] = true
		}
	}

	if equality[ir.KeyProperty] {
		out.Sorts = nil
		return out
	}

	seen := make(map[string]bool, len(out.Sorts))
	sorts := out.Sorts[:0]
	for _, s := range out.Sorts {
		if seen[s.Property] {
			continue
		}
		seen[s.Property] = true
		if equality[s.Property] && !inequality[s.Property] {
			continue
		}
		sorts = append(sorts, s)
		if s.Property == ir.KeyProperty {
			break
		}
	}
	if len(sorts) == 0 {
		sorts = nil
	}
	out.Sorts = sorts
	return out
}
