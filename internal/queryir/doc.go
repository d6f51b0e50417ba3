// Package queryir defines the logical query model: filters, sorts, and the
// Query they belong to, plus the canonicalization and validation every query
// passes before planning.
//
// A logical query may use operators the store cannot execute (NOT_EQUAL, IN)
// and several sort orders. The planner decomposes it into native queries,
// which use the same Query type but must pass ValidateNative:
//
//	logical:  kind Task where status != "done" order by dueDate asc
//	native:   kind Task where status < "done" order by dueDate asc
//	          kind Task where status > "done" order by dueDate asc
//
// The pipeline for a logical query is:
//
//	q = Normalize(q)         // canonical form, applied once
//	err = ValidateLogical(q) // QueryShapeError with a stable category
//
// NATIVE SHAPE:
//
// A native query has at most one inequality-constrained property, and when
// it also sorts, the first sort is on that property. It filters only with
// EQUAL, the four range operators and EXISTS.
//
// ERRORS:
//
// Shape violations are *QueryShapeError values. Categories are strings so
// callers and tests can match them without importing this package's
// constants:
//
//	transaction-needs-ancestor, multi-property-filter,
//	multiple-inequality-properties, kind-required, first-sort-mismatch,
//	unsupported-filter, illegal-value, keys-only-sort
//
// The key property "__key__" (ir.KeyProperty) may be filtered and sorted like
// any other property; its values must be keys.
package queryir
