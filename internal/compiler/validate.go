package compiler

import (
	"fmt"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// Validation error codes (E100-E199)
const (
	// Entity errors (E100-E109)
	ErrDuplicateEntityKey = "E100" // two entities share a key
	ErrReservedProperty   = "E101" // property named __key__ or empty
	ErrEntityNoKey        = "E102" // entity key has no path

	// Query errors (E110-E119)
	ErrDuplicateQueryName = "E110" // two queries share a name
	ErrQueryShape         = "E111" // query the engine would refuse
	ErrInvalidPaging      = "E112" // negative limit or offset

	// Index errors (E120-E129)
	ErrIndexNoProperties     = "E120" // index declares no columns
	ErrIndexDuplicateColumn  = "E121" // property listed twice in one index
	ErrDuplicateIndex        = "E122" // same index declared twice
	ErrIndexKeyPropertyOrder = "E123" // __key__ column not last
)

// ValidationError represents a document validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled document.
// Returns all errors found (does not fail-fast).
func Validate(doc *Document) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateEntities(doc.Entities)...)
	errs = append(errs, validateQueries(doc.Queries)...)
	errs = append(errs, validateIndexes(doc)...)
	return errs
}

func validateEntities(entities []ir.Entity) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]int)

	for i, e := range entities {
		field := fmt.Sprintf("entities[%d]", i)

		if e.Key.IsZero() {
			errs = append(errs, ValidationError{
				Field:   field + ".key",
				Message: "entity key has no path",
				Code:    ErrEntityNoKey,
			})
			continue
		}

		// E100: keys are unique across the document
		k := e.Key.String()
		if first, dup := seen[k]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".key",
				Message: fmt.Sprintf("duplicate key %s (first declared by entities[%d])", k, first),
				Code:    ErrDuplicateEntityKey,
			})
		} else {
			seen[k] = i
		}

		for _, name := range e.PropertyNames() {
			if name == "" || name == ir.KeyProperty {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.properties.%s", field, name),
					Message: fmt.Sprintf("property name %q is reserved", name),
					Code:    ErrReservedProperty,
				})
			}
		}
	}

	return errs
}

func validateQueries(queries []NamedQuery) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool)

	for _, nq := range queries {
		field := "queries." + nq.Name

		if names[nq.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate query name: %q", nq.Name),
				Code:    ErrDuplicateQueryName,
			})
		}
		names[nq.Name] = true

		if err := queryir.ValidateLogical(queryir.Normalize(nq.Query)); err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: err.Error(),
				Code:    ErrQueryShape,
			})
		}

		if err := nq.Options.Validate(); err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: err.Error(),
				Code:    ErrInvalidPaging,
			})
		}
	}

	return errs
}

func validateIndexes(doc *Document) []ValidationError {
	var errs []ValidationError

	for i, ci := range doc.Indexes {
		field := fmt.Sprintf("indexes[%d]", i)

		if len(ci.Properties) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".properties",
				Message: fmt.Sprintf("index on %s declares no properties", ci.Kind),
				Code:    ErrIndexNoProperties,
			})
		}

		columns := make(map[string]bool)
		for j, p := range ci.Properties {
			if columns[p.Property] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.properties[%d]", field, j),
					Message: fmt.Sprintf("property %q listed twice", p.Property),
					Code:    ErrIndexDuplicateColumn,
				})
			}
			columns[p.Property] = true

			if p.Property == ir.KeyProperty && j != len(ci.Properties)-1 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.properties[%d]", field, j),
					Message: "__key__ must be the last index column",
					Code:    ErrIndexKeyPropertyOrder,
				})
			}
		}

		for j := 0; j < i; j++ {
			if doc.Indexes[j].Equal(ci) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("index %s already declared by indexes[%d]", ci, j),
					Code:    ErrDuplicateIndex,
				})
				break
			}
		}
	}

	return errs
}
