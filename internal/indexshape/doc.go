// Package indexshape derives the composite index a query would need.
//
// The shape is informational: the planner never consults an index, but the
// SQLite store can be told to refuse queries whose minimum composite index
// is not registered, and explain output reports the index for each query.
package indexshape
