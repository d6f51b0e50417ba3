package queryir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dsquery/internal/ir"
)

// Operator is a filter comparison operator.
//
// The native store executes EQUAL, the four range operators and EXISTS.
// NOT_EQUAL and IN exist only in logical queries; the planner rewrites them
// into native alternatives before anything reaches a store.
type Operator string

const (
	Equal              Operator = "="
	LessThan           Operator = "<"
	LessThanOrEqual    Operator = "<="
	GreaterThan        Operator = ">"
	GreaterThanOrEqual Operator = ">="
	NotEqual           Operator = "!="
	In                 Operator = "IN"
	Exists             Operator = "EXISTS"
)

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	switch op {
	case Equal, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual,
		NotEqual, In, Exists:
		return true
	default:
		return false
	}
}

// IsRange reports whether op bounds a property from one side.
func (op Operator) IsRange() bool {
	switch op {
	case LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual:
		return true
	default:
		return false
	}
}

// IsInequality reports whether op constrains its property to something other
// than a fixed value. NOT_EQUAL counts: it becomes two ranges once split.
func (op Operator) IsInequality() bool {
	return op.IsRange() || op == NotEqual
}

// IsNative reports whether a store can execute op directly.
func (op Operator) IsNative() bool {
	return op.Valid() && op != NotEqual && op != In
}

// ParseOperator maps query-text spellings to an Operator.
// Accepts "==" for EQUAL and "<>" for NOT_EQUAL; IN and EXISTS are
// case-insensitive.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "=", "==":
		return Equal, nil
	case "<":
		return LessThan, nil
	case "<=":
		return LessThanOrEqual, nil
	case ">":
		return GreaterThan, nil
	case ">=":
		return GreaterThanOrEqual, nil
	case "!=", "<>":
		return NotEqual, nil
	case "in", "IN", "In":
		return In, nil
	case "exists", "EXISTS", "Exists":
		return Exists, nil
	default:
		return "", fmt.Errorf("unknown operator %q", s)
	}
}

// FilterPredicate constrains one property.
//
// Scalar operators carry Value; IN carries the ordered Values list;
// EXISTS carries neither. Construct through NewFilter, NewInFilter or
// ExistsFilter so these shapes hold.
type FilterPredicate struct {
	Property string
	Operator Operator
	Value    ir.Value
	Values   []ir.Value
}

// NewFilter creates a scalar filter. Use NewInFilter for IN.
func NewFilter(property string, op Operator, value ir.Value) (FilterPredicate, error) {
	switch {
	case !op.Valid():
		return FilterPredicate{}, fmt.Errorf("filter on %q: unknown operator %q", property, op)
	case op == In:
		return FilterPredicate{}, fmt.Errorf("filter on %q: IN takes a value list", property)
	case op == Exists:
		return ExistsFilter(property), nil
	case value == nil:
		return FilterPredicate{}, fmt.Errorf("filter on %q: %s needs a value", property, op)
	}
	return FilterPredicate{Property: property, Operator: op, Value: value}, nil
}

// NewInFilter creates an IN filter. The list must not be empty.
func NewInFilter(property string, values ...ir.Value) (FilterPredicate, error) {
	if len(values) == 0 {
		return FilterPredicate{}, fmt.Errorf("filter on %q: %w", property, ErrEmptyIn)
	}
	for i, v := range values {
		if v == nil {
			return FilterPredicate{}, fmt.Errorf("filter on %q: IN value %d is nil", property, i)
		}
	}
	return FilterPredicate{Property: property, Operator: In, Values: slices.Clone(values)}, nil
}

// ExistsFilter matches entities that carry at least one value for property.
func ExistsFilter(property string) FilterPredicate {
	return FilterPredicate{Property: property, Operator: Exists}
}

// Operands returns the values the filter compares against: the IN list, the
// single scalar value, or nothing for EXISTS.
func (f FilterPredicate) Operands() []ir.Value {
	switch {
	case f.Operator == In:
		return f.Values
	case f.Value == nil:
		return nil
	default:
		return []ir.Value{f.Value}
	}
}

// Equal reports whether two filters are identical.
func (f FilterPredicate) Equal(other FilterPredicate) bool {
	if f.Property != other.Property || f.Operator != other.Operator {
		return false
	}
	a, b := f.Operands(), other.Operands()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ir.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts "asc", "ascending", "desc" and "descending" in any
// case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("unknown sort direction %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SortPredicate orders results by one property.
type SortPredicate struct {
	Property  string
	Direction Direction
}

// Asc is shorthand for an ascending sort on property.
func Asc(property string) SortPredicate {
	return SortPredicate{Property: property, Direction: Ascending}
}

// Desc is shorthand for a descending sort on property.
func Desc(property string) SortPredicate {
	return SortPredicate{Property: property, Direction: Descending}
}

// Query is a logical query over one kind (or over all kinds under an
// ancestor when Kind is empty).
//
// Filters are conjunctive. Sorts apply in order; ties always break on
// ascending key. The same type describes native queries, which are logical
// queries that pass ValidateNative.
type Query struct {
	Kind          string
	Ancestor      *ir.Key
	Filters       []FilterPredicate
	Sorts         []SortPredicate
	KeysOnly      bool
	Transactional bool
}

// Clone returns a deep copy of q.
func (q Query) Clone() Query {
	out := q
	if q.Ancestor != nil {
		anc := ir.Key{Path: slices.Clone(q.Ancestor.Path)}
		out.Ancestor = &anc
	}
	out.Filters = slices.Clone(q.Filters)
	for i := range out.Filters {
		out.Filters[i].Values = slices.Clone(out.Filters[i].Values)
	}
	out.Sorts = slices.Clone(q.Sorts)
	return out
}

// WithFilters returns a copy of q whose filters are replaced.
func (q Query) WithFilters(filters []FilterPredicate) Query {
	out := q.Clone()
	out.Filters = slices.Clone(filters)
	return out
}

// InequalityProperties returns the distinct properties carrying an
// inequality, in first-appearance order.
func (q Query) InequalityProperties() []string {
	var props []string
	for _, f := range q.Filters {
		if f.Operator.IsInequality() && !slices.Contains(props, f.Property) {
			props = append(props, f.Property)
		}
	}
	return props
}

// FiltersOn returns the filters that constrain property.
func (q Query) FiltersOn(property string) []FilterPredicate {
	var out []FilterPredicate
	for _, f := range q.Filters {
		if f.Property == property {
			out = append(out, f)
		}
	}
	return out
}

// SortIndex returns the position of property in the sort list, or -1.
func (q Query) SortIndex(property string) int {
	for i, s := range q.Sorts {
		if s.Property == property {
			return i
		}
	}
	return -1
}
