package queryir

import (
	"math"

	"github.com/roach88/dsquery/internal/ir"
)

// ValidateLogical checks a normalized logical query against the shapes the
// planner can decompose. NOT_EQUAL counts as an inequality and IN is
// accepted.
//
// Checks run in a fixed order so the reported category is stable:
// transaction scope, kind, each filter in order (property, value,
// inequality count, operator), then the first sort.
func ValidateLogical(q Query) error {
	v := &validator{q: q}
	return v.run()
}

// ValidateNative checks a query a store is about to execute. IN and
// NOT_EQUAL are rejected with unsupported-filter.
func ValidateNative(q Query) error {
	v := &validator{q: q, native: true}
	return v.run()
}

type validator struct {
	q      Query
	native bool

	inequalityProp string
}

func (v *validator) run() error {
	if v.q.Transactional && v.q.Ancestor == nil {
		return shapeError(CategoryTransactionNeedsAncestor, "",
			"queries inside a transaction must have an ancestor")
	}
	if err := v.checkKind(); err != nil {
		return err
	}
	for _, f := range v.q.Filters {
		if err := v.checkFilter(f); err != nil {
			return err
		}
	}
	return v.checkFirstSort()
}

func (v *validator) checkKind() error {
	if v.q.Kind != "" {
		return nil
	}
	for _, f := range v.q.Filters {
		if f.Property != ir.KeyProperty {
			return shapeError(CategoryKindRequired, f.Property,
				"kindless queries can only filter on %s", ir.KeyProperty)
		}
	}
	for _, s := range v.q.Sorts {
		if s.Property != ir.KeyProperty || s.Direction != Ascending {
			return shapeError(CategoryKindRequired, s.Property,
				"kindless queries can only sort on %s ascending", ir.KeyProperty)
		}
	}
	return nil
}

func (v *validator) checkFilter(f FilterPredicate) error {
	if f.Property == "" {
		return shapeError(CategoryMultiPropertyFilter, "",
			"%s filter must name exactly one property", f.Operator)
	}
	if err := checkFilterValues(f); err != nil {
		return err
	}

	if f.Operator.IsInequality() {
		switch v.inequalityProp {
		case "":
			v.inequalityProp = f.Property
		case f.Property:
		default:
			return shapeError(CategoryMultipleInequalityProperties, f.Property,
				"inequality filters are only supported on one property, already have %q", v.inequalityProp)
		}
	}

	if !f.Operator.Valid() {
		return shapeError(CategoryUnsupportedFilter, f.Property, "unknown operator %q", f.Operator)
	}
	if v.native && !f.Operator.IsNative() {
		return shapeError(CategoryUnsupportedFilter, f.Property,
			"%s must be split before native execution", f.Operator)
	}
	return nil
}

func checkFilterValues(f FilterPredicate) error {
	operands := f.Operands()
	switch {
	case f.Operator == Exists:
		return nil
	case len(operands) == 0:
		return shapeError(CategoryIllegalValue, f.Property, "%s filter has no value", f.Operator)
	}

	for _, value := range operands {
		switch val := value.(type) {
		case nil:
			return shapeError(CategoryIllegalValue, f.Property, "%s filter value is nil", f.Operator)
		case ir.Float:
			if math.IsNaN(float64(val)) {
				return shapeError(CategoryIllegalValue, f.Property, "NaN cannot be compared")
			}
		case ir.Key:
			if val.IsZero() {
				return shapeError(CategoryIllegalValue, f.Property, "key value has no path")
			}
		}
		if f.Property == ir.KeyProperty {
			if _, ok := value.(ir.Key); !ok {
				return shapeError(CategoryIllegalValue, f.Property,
					"%s filter value must be a key, got %s", ir.KeyProperty, ir.FormatValue(value))
			}
		}
	}
	return nil
}

// checkFirstSort requires the inequality property to lead the sort order.
// In logical queries a leading sort on a property fixed by IN is skipped:
// every split branch fixes it to one value, so the branch's native query
// drops that sort on normalization.
func (v *validator) checkFirstSort() error {
	if v.inequalityProp == "" || len(v.q.Sorts) == 0 {
		return nil
	}

	for _, s := range v.q.Sorts {
		if !v.native && v.fixedByIn(s.Property) {
			continue
		}
		if s.Property == v.inequalityProp {
			return nil
		}
		return shapeError(CategoryFirstSortMismatch, v.inequalityProp,
			"the first sort must be on the inequality property, got %q", s.Property)
	}
	return shapeError(CategoryFirstSortMismatch, v.inequalityProp,
		"sorts must include the inequality property")
}

func (v *validator) fixedByIn(property string) bool {
	if property == v.inequalityProp {
		return false
	}
	for _, f := range v.q.Filters {
		if f.Property == property && f.Operator == In {
			return true
		}
	}
	return false
}
