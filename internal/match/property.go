package match

import (
	"fmt"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// PropertyMatcher evaluates the native filters on one property.
//
// EQUAL filters form a required set: every value must be present on the
// entity. Range filters narrow one interval that at least one value must
// fall in. EXISTS only requires that the property is present. Bounds compare
// across types by rank, the same order the index stores values in.
type PropertyMatcher struct {
	equals []ir.Value

	lower          ir.Value
	lowerInclusive bool
	upper          ir.Value
	upperInclusive bool
}

// AddFilter folds a native filter into the matcher.
func (pm *PropertyMatcher) AddFilter(f queryir.FilterPredicate) error {
	switch f.Operator {
	case queryir.Equal:
		if !ir.ContainsValue(pm.equals, f.Value) {
			pm.equals = append(pm.equals, f.Value)
		}
	case queryir.GreaterThan, queryir.GreaterThanOrEqual:
		inclusive := f.Operator == queryir.GreaterThanOrEqual
		if pm.lower == nil {
			pm.lower, pm.lowerInclusive = f.Value, inclusive
			break
		}
		switch c := ir.Compare(f.Value, pm.lower); {
		case c > 0:
			pm.lower, pm.lowerInclusive = f.Value, inclusive
		case c == 0:
			pm.lowerInclusive = pm.lowerInclusive && inclusive
		}
	case queryir.LessThan, queryir.LessThanOrEqual:
		inclusive := f.Operator == queryir.LessThanOrEqual
		if pm.upper == nil {
			pm.upper, pm.upperInclusive = f.Value, inclusive
			break
		}
		switch c := ir.Compare(f.Value, pm.upper); {
		case c < 0:
			pm.upper, pm.upperInclusive = f.Value, inclusive
		case c == 0:
			pm.upperInclusive = pm.upperInclusive && inclusive
		}
	case queryir.Exists:
	default:
		return fmt.Errorf("filter %s cannot be evaluated natively", f)
	}
	return nil
}

// InRange reports whether v satisfies every range bound.
func (pm *PropertyMatcher) InRange(v ir.Value) bool {
	if pm.lower != nil {
		c := ir.Compare(v, pm.lower)
		if c < 0 || (c == 0 && !pm.lowerInclusive) {
			return false
		}
	}
	if pm.upper != nil {
		c := ir.Compare(v, pm.upper)
		if c > 0 || (c == 0 && !pm.upperInclusive) {
			return false
		}
	}
	return true
}

// Matches reports whether a property's values satisfy the matcher.
// An absent property (no values) never matches.
func (pm *PropertyMatcher) Matches(values []ir.Value) bool {
	if len(values) == 0 {
		return false
	}
	for _, eq := range pm.equals {
		if !ir.ContainsValue(values, eq) {
			return false
		}
	}
	for _, v := range values {
		if pm.InRange(v) {
			return true
		}
	}
	return false
}

// ConsiderValueForOrder reports whether v is one the index could have
// placed the entity under: inside the range and, when equalities exist,
// one of them.
func (pm *PropertyMatcher) ConsiderValueForOrder(v ir.Value) bool {
	if !pm.InRange(v) {
		return false
	}
	return len(pm.equals) == 0 || ir.ContainsValue(pm.equals, v)
}
