// Package harness provides conformance testing for the query engine.
//
// The harness loads CUE fixture documents into a backend, runs query
// cases through the engine, and checks the results against explicit
// expectations and against the logical reference matcher, which evaluates
// each query over the fixtures without decomposing it.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	data:
//	  - ../fixtures/tasks.cue
//	backends: [memory, sqlite, badger]   # optional, default all
//	chunk_size: 2                        # optional
//	cases:
//	  - name: open_by_status
//	    query: kind Task where status != "done" order by status
//	    golden: true
//	  - name: first_two
//	    query: kind Task where priority in [1, 3] limit 2
//	    expect:
//	      keys: [Key(Task, 2), Key(Task, 4)]
//	  - name: mismatch
//	    named: bad_sort      # a query declared in a fixture document
//	    expect:
//	      error: first-sort-mismatch
//
// # Backends
//
//   - memory: the in-process executor over a slice of entities
//   - sqlite: the SQLite store, in memory, with the fixture indexes added
//   - badger: the Badger key-value store, in memory
//
// Every backend must produce the same keys in the same order, so golden
// files are shared between them.
//
// # Deterministic Testing
//
// Each run uses a fresh in-memory store and a sequence run-id generator
// seeded with the scenario name, and a small chunk size so that sources
// need several round trips.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/splits.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario, harness.BackendSQLite)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
