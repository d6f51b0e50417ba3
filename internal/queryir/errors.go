package queryir

import (
	"errors"
	"fmt"
)

// ErrEmptyIn is returned when an IN filter is built without values.
var ErrEmptyIn = errors.New("IN requires at least one value")

// ShapeCategory tags why a query cannot be executed. Categories are stable
// and safe to match on.
type ShapeCategory string

const (
	CategoryTransactionNeedsAncestor     ShapeCategory = "transaction-needs-ancestor"
	CategoryMultiPropertyFilter          ShapeCategory = "multi-property-filter"
	CategoryMultipleInequalityProperties ShapeCategory = "multiple-inequality-properties"
	CategoryKindRequired                 ShapeCategory = "kind-required"
	CategoryFirstSortMismatch            ShapeCategory = "first-sort-mismatch"
	CategoryUnsupportedFilter            ShapeCategory = "unsupported-filter"
	CategoryIllegalValue                 ShapeCategory = "illegal-value"
	CategoryKeysOnlySort                 ShapeCategory = "keys-only-sort"
)

// QueryShapeError reports a query the engine refuses to run.
// It is raised before any native call and is never worth retrying.
type QueryShapeError struct {
	Category ShapeCategory
	Message  string
	Property string // offending property, when there is one
}

// Error implements the error interface.
func (e *QueryShapeError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("query shape (%s) on %q: %s", e.Category, e.Property, e.Message)
	}
	return fmt.Sprintf("query shape (%s): %s", e.Category, e.Message)
}

func shapeError(category ShapeCategory, property, format string, args ...any) *QueryShapeError {
	return &QueryShapeError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Property: property,
	}
}

// IsQueryShapeError reports whether err is a QueryShapeError.
func IsQueryShapeError(err error) bool {
	var shapeErr *QueryShapeError
	return errors.As(err, &shapeErr)
}

// ShapeCategoryOf extracts the category from a QueryShapeError anywhere in
// err's chain.
func ShapeCategoryOf(err error) (ShapeCategory, bool) {
	var shapeErr *QueryShapeError
	if errors.As(err, &shapeErr) {
		return shapeErr.Category, true
	}
	return "", false
}
