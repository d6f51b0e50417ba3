// Package engine runs logical queries against a store that only executes
// native queries.
//
// Prepare normalizes and validates a query, then decomposes it with the
// planner. Each run walks the plan's batches in order:
//
//  1. A batch with one native query streams it directly.
//  2. A batch with several opens them all on the engine's worker pool,
//     reads one entity from each, and merges them through a min-heap that
//     orders entities the way the store's index would.
//  3. Every entity passes the plan's acceptors (not-equal re-checks,
//     key de-duplication) before offset and limit apply.
//
// Offset and limit live here, not in the sources. Once the limit is met the
// run's context is canceled, so in-flight sources stop and later batches
// never start. A plan with no split filters pushes offset and limit down to
// the store instead.
//
// Errors:
//   - queryir.QueryShapeError and planner.TooManyAlternativesError come from
//     Prepare, before any native call
//   - SourceExecutionError names the batch and alternative that failed
//   - AcceptorContractError means a store returned an entity its own filters
//     exclude from the sort order
package engine
