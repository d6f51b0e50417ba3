package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RenderCase renders a case result as the text stored in golden files.
//
// The rendering holds only what every backend must agree on: the
// normalized query, its decomposition and the ordered result keys. A
// failed case renders its error category instead of results.
func RenderCase(cr CaseResult) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "case: %s\n", cr.Name)
	fmt.Fprintf(&b, "query: %s\n", cr.Query)

	if ex := cr.Explanation; ex != nil {
		if ex.CompositeIndex != "" {
			fmt.Fprintf(&b, "index: %s\n", ex.CompositeIndex)
		}
		if len(ex.Acceptors) > 0 {
			fmt.Fprintf(&b, "acceptors: %s\n", strings.Join(ex.Acceptors, ", "))
		}
		fmt.Fprintf(&b, "native queries: %d (%d per batch)\n", ex.NativeQueries, ex.PerBatch)
		for _, batch := range ex.Batches {
			fmt.Fprintf(&b, "batch %d:\n", batch.Index)
			for _, q := range batch.Queries {
				fmt.Fprintf(&b, "  %s\n", q)
			}
		}
	}

	if cr.ErrorCategory != "" {
		fmt.Fprintf(&b, "error: %s\n", cr.ErrorCategory)
		return []byte(b.String())
	}
	fmt.Fprintf(&b, "results: %d\n", len(cr.Keys))
	for _, k := range cr.Keys {
		fmt.Fprintf(&b, "  %s\n", k)
	}
	return []byte(b.String())
}

// GoldenName is the golden file name, without suffix, for a case.
func GoldenName(scenario, caseName string) string {
	return scenario + "-" + caseName
}

// RunWithGolden executes a scenario on one backend and compares every case
// marked golden against testdata/golden/{scenario}-{case}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files are shared by all backends, so a backend that plans or
// orders differently fails the comparison.
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if a rendering doesn't match its golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, backend string, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario, backend, opts...)
	if err != nil {
		return nil, err
	}

	for _, c := range scenario.Cases {
		if !c.Golden {
			continue
		}
		cr, ok := result.Case(c.Name)
		if !ok {
			return nil, fmt.Errorf("case %s produced no result", c.Name)
		}
		AssertGolden(t, GoldenName(scenario.Name, c.Name), cr)
	}
	return result, nil
}

// AssertGolden compares one case result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, cr CaseResult) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, RenderCase(cr))
}
