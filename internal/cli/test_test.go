package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_NonExistentDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_UnknownBackend(t *testing.T) {
	_, err := execute(t, "test", scenariosDir, "--backends", "postgres")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown backend "postgres"`)
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_Passes(t *testing.T) {
	out, err := execute(t, "test", scenariosDir, "--backends", "memory")
	require.NoError(t, err, out)

	assert.Contains(t, out, "\u2713 splits [memory]")
	assert.Contains(t, out, "\u2713 errors [memory]")
	assert.NotContains(t, out, "required_indexes", "sqlite-only scenario is skipped")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "\u2713 All scenarios passed")
}

func TestTestCommand_FilterAllBackends(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", scenariosDir, "--filter", "err*")
	require.NoError(t, err, out)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 3, resp.Data.Passed)

	var backends []string
	for _, s := range resp.Data.Scenarios {
		assert.Equal(t, "errors", s.Name)
		assert.Equal(t, 3, s.Cases)
		backends = append(backends, s.Backend)
	}
	assert.Equal(t, []string{"memory", "sqlite", "badger"}, backends)
}

func TestTestCommand_Failures(t *testing.T) {
	dir := t.TempDir()
	fixtures, err := filepath.Abs(fixturesFile)
	require.NoError(t, err)

	wrong := `name: wrong
description: "Expects the wrong keys"
backends: [memory]
data:
  - ` + fixtures + `
cases:
  - name: open
    query: kind Task where status = "open" order by due
    expect:
      keys: ["Key(Task, 1)", "Key(Task, 4)"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(wrong), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "test", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "\u2717 broken.yaml")
		assert.Contains(t, out, "Load error:")
		assert.Contains(t, out, "\u2717 wrong [memory]")
		assert.Contains(t, out, "memory/open:")
		assert.Contains(t, out, "Test Summary: 0 passed, 2 failed, 2 total")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "test", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var resp struct {
			Status string     `json:"status"`
			Data   TestResult `json:"data"`
			Error  *CLIError  `json:"error"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, 2, resp.Data.Failed)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	})
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "c.txt", "sub/d.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, nil, 0644))
	}

	tests := []struct {
		name    string
		filter  string
		want    []string
		wantErr bool
	}{
		{"all", "", []string{"a.yaml", "b.yml", "sub/d.yaml"}, false},
		{"glob", "[ab]", []string{"a.yaml", "b.yml"}, false},
		{"nested name", "d", []string{"sub/d.yaml"}, false},
		{"bad pattern", "[", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := findScenarioFiles(dir, tt.filter)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := make([]string, len(files))
			for i, f := range files {
				got[i] = filepath.ToSlash(strings.TrimPrefix(f, dir+string(filepath.Separator)))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
