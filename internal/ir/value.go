package ir

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface over the property value types a datastore
// entity can carry. Only Null, Int, Bool, String, Float and Key implement it.
//
// Values of different types are totally ordered by type rank:
//
//	Null < Int < Bool < String < Float < Key
//
// and within a type by their natural order. The same order is produced
// byte-wise by EncodeValue, which is what native stores index on.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an explicit null property value.
type Null struct{}

func (Null) value() {}

// Int represents a 64-bit integer property value.
type Int int64

func (Int) value() {}

// Bool represents a boolean property value.
type Bool bool

func (Bool) value() {}

// String represents a text property value.
type String string

func (String) value() {}

// Float represents a 64-bit floating point property value.
// NaN is not a valid property value; EncodeEntity rejects it.
type Float float64

func (Float) value() {}

// Type ranks used for cross-type ordering.
const (
	RankNull = iota + 1
	RankInt
	RankBool
	RankString
	RankFloat
	RankKey
)

// TypeRank returns the cross-type ordering rank of v.
// Returns 0 for nil or an unknown type.
func TypeRank(v Value) int {
	switch v.(type) {
	case Null:
		return RankNull
	case Int:
		return RankInt
	case Bool:
		return RankBool
	case String:
		return RankString
	case Float:
		return RankFloat
	case Key:
		return RankKey
	default:
		return 0
	}
}

// Compare orders two values by type rank, then by value.
// Returns -1, 0 or 1.
func Compare(a, b Value) int {
	ra, rb := TypeRank(a), TypeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch av := a.(type) {
	case Int:
		return cmp.Compare(av, b.(Int))
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case String:
		return strings.Compare(string(av), string(b.(String)))
	case Float:
		return cmp.Compare(av, b.(Float))
	case Key:
		return CompareKeys(av, b.(Key))
	default:
		// Null, or two values of unknown type
		return 0
	}
}

// Equal reports whether two values are the same type and value.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// ContainsValue reports whether values contains v.
func ContainsValue(values []Value, v Value) bool {
	for _, candidate := range values {
		if Equal(candidate, v) {
			return true
		}
	}
	return false
}

// FormatValue renders a value in query-text form.
// Floats always carry a decimal point or exponent so they never read as ints.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case Null:
		return "null"
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case String:
		return strconv.Quote(string(val))
	case Float:
		return formatFloat(float64(val))
	case Key:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
