// Package match evaluates queries against decoded entities in memory.
//
// Matcher applies a native query's filters with the store's multi-value
// semantics, and Ordering reproduces the store's index order, including the
// rule that a multi-valued property sorts by its extreme plausible value.
// The engine's merge and the in-memory executor both rely on Ordering, so
// the order a store returns and the order a merge produces agree.
//
// Logical evaluates a logical query without planning; tests and the
// conformance harness use it as a reference scan.
package match
