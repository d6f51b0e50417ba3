// Package planner decomposes a logical query into native queries.
//
// Build runs the whole pipeline:
//
//	Normalize + ValidateLogical  ->  Split  ->  Assemble  ->  MultiQueryPlan
//
// Split hands each NOT_EQUAL and IN filter to its splitter, which returns a
// SplitComponent of native filter alternatives plus acceptors that keep the
// union exact. Assemble decides, per component, whether its alternatives can
// run one after another (their results already arrive in the requested
// order) or must run together and be merged. An EnumerationCursor then walks
// the plan one batch at a time.
//
// Example, `kind Task where priority in [3, 1] order by priority asc`:
//
//	component  priority = 1 | priority = 3   SEQUENTIAL (sort position 0)
//	batch 0    kind Task where priority = 1
//	batch 1    kind Task where priority = 3
//
// Sorting by something else turns the component CONCURRENT and produces a
// single batch with both queries, merged on the sort order.
package planner
