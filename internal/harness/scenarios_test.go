package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios on each of its
// backends. Golden cases on all backends compare against the same file.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, "failed to load scenario from %s", path)

		for _, backend := range ScenarioBackends(scenario) {
			t.Run(scenario.Name+"/"+backend, func(t *testing.T) {
				result, err := RunWithGolden(t, scenario, backend)
				require.NoError(t, err, "scenario execution failed")
				require.NotNil(t, result)

				assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
				assert.Len(t, result.Cases, len(scenario.Cases))
			})
		}
	}
}

// TestScenarios_Deterministic checks that running a scenario twice yields
// identical case results, explanations included.
func TestScenarios_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/splits.yaml")
	require.NoError(t, err)

	for _, backend := range AllBackends {
		t.Run(backend, func(t *testing.T) {
			first, err := Run(t.Context(), scenario, backend)
			require.NoError(t, err)
			second, err := Run(t.Context(), scenario, backend)
			require.NoError(t, err)

			require.Len(t, second.Cases, len(first.Cases))
			for i := range first.Cases {
				assert.Equal(t, RenderCase(first.Cases[i]), RenderCase(second.Cases[i]))
			}
		})
	}
}

// TestScenarios_BackendsAgree checks that every backend renders every case
// of a scenario the same way, golden or not.
func TestScenarios_BackendsAgree(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/splits.yaml")
	require.NoError(t, err)

	rendered := make(map[string][]byte)
	for _, backend := range AllBackends {
		result, err := Run(t.Context(), scenario, backend)
		require.NoError(t, err, backend)
		for _, cr := range result.Cases {
			got := RenderCase(cr)
			if want, ok := rendered[cr.Name]; ok {
				assert.Equal(t, string(want), string(got), "%s on %s", cr.Name, backend)
				continue
			}
			rendered[cr.Name] = got
		}
	}
}
