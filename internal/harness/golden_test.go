package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/dsquery/internal/engine"
)

func TestRenderCase(t *testing.T) {
	cr := CaseResult{
		Name:  "by_tag",
		Query: `kind Task where tags in ["a", "b"] order by due asc`,
		Keys:  []string{"Key(Task, 2)", "Key(Task, 1)"},
		Count: 2,
		Explanation: &engine.Explanation{
			CompositeIndex: "Task (tags asc, due asc)",
			Acceptors:      []string{"key-dedup"},
			NativeQueries:  2,
			PerBatch:       2,
			Batches: []engine.BatchExplanation{{
				Index: 0,
				Queries: []string{
					`kind Task where tags = "a" order by due asc`,
					`kind Task where tags = "b" order by due asc`,
				},
			}},
		},
	}

	want := `case: by_tag
query: kind Task where tags in ["a", "b"] order by due asc
index: Task (tags asc, due asc)
acceptors: key-dedup
native queries: 2 (2 per batch)
batch 0:
  kind Task where tags = "a" order by due asc
  kind Task where tags = "b" order by due asc
results: 2
  Key(Task, 2)
  Key(Task, 1)
`
	assert.Equal(t, want, string(RenderCase(cr)))
}

func TestRenderCase_NoResults(t *testing.T) {
	cr := CaseResult{
		Name:        "empty",
		Query:       "kind Task",
		Explanation: &engine.Explanation{NativeQueries: 1, PerBatch: 1, Batches: []engine.BatchExplanation{{Queries: []string{"kind Task"}}}},
	}

	want := `case: empty
query: kind Task
native queries: 1 (1 per batch)
batch 0:
  kind Task
results: 0
`
	assert.Equal(t, want, string(RenderCase(cr)))
}

func TestRenderCase_Error(t *testing.T) {
	cr := CaseResult{
		Name:          "bad",
		Query:         `kind Task where status != "done" order by due asc`,
		ErrorCategory: "first-sort-mismatch",
		Err:           errors.New("first-sort-mismatch"),
	}

	want := `case: bad
query: kind Task where status != "done" order by due asc
error: first-sort-mismatch
`
	assert.Equal(t, want, string(RenderCase(cr)))
}

func TestGoldenName(t *testing.T) {
	assert.Equal(t, "splits-open_by_status", GoldenName("splits", "open_by_status"))
}

// TestAssertGolden compares a hand-built result with a checked-in golden
// file, independent of any backend.
func TestAssertGolden(t *testing.T) {
	AssertGolden(t, "errors-sort_mismatch", CaseResult{
		Name:          "sort_mismatch",
		Query:         `kind Task where status != "done" order by due asc`,
		ErrorCategory: "first-sort-mismatch",
	})
}
