// Package store provides a SQLite-backed entity store that serves native
// queries.
//
// Entities live in two tables:
//   - entities: one row per entity, keyed by the order-preserving key
//     encoding, with the canonical JSON record and its keys-only form
//   - entity_values: one row per property value, holding the
//     order-preserving value encoding
//
// Because both encodings preserve order under byte comparison, SQLite's
// BLOB ordering is the datastore's index order and the SQL compiled by
// querysql returns rows in exactly the order match.AdjustedOrders
// describes.
//
// # Deterministic Results
//
// Every query ends its ORDER BY on the entity key, so results are identical
// across runs.
//
// # Composite Indexes
//
// Declared composite indexes are kept in composite_indexes. With
// WithRequiredIndexes, queries that no declared index set can serve fail
// with a MissingIndexError naming the smallest index to add.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Value rows are removed with their entity
package store
