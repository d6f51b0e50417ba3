// Package native defines the contract between the query engine and the
// stores that execute native queries, plus an in-memory store.
//
// A native query is a queryir.Query that passes ValidateNative. Executors
// return a Source of canonical records (ir.Record) which the engine decodes
// with ir.DecodeEntity.
package native
