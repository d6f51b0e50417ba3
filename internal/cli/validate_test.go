package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCUE(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateCommand_Valid(t *testing.T) {
	out, err := execute(t, "validate", fixturesFile)
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 Documents valid (7 entities, 2 queries, 2 indexes)")
}

func TestValidateCommand_ValidJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", fixturesFile)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 7, resp.Data.Entities)
	assert.Equal(t, 2, resp.Data.Queries)
	assert.Equal(t, 2, resp.Data.Indexes)
}

func TestValidateCommand_MultiplePaths(t *testing.T) {
	dir := t.TempDir()
	extra := writeCUE(t, dir, "more.cue", `
entities: [{key: ["Task", 7], properties: {status: "open"}}]
queries: open_tasks: {text: "kind Task where status = \"open\""}
`)

	out, err := execute(t, "validate", fixturesFile, extra)
	require.NoError(t, err)
	assert.Contains(t, out, "8 entities, 3 queries, 2 indexes")
}

func TestValidateCommand_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode string
	}{
		{
			name:     "duplicate key",
			content:  `entities: [{key: ["Task", 1]}, {key: ["Task", 1]}]`,
			wantCode: "E100",
		},
		{
			name:     "query the engine rejects",
			content:  `queries: bad: {text: "kind Task where status != \"done\" order by due"}`,
			wantCode: "E111",
		},
		{
			name:     "duplicate index",
			content:  `indexes: [{kind: "Task", properties: [{property: "due"}]}, {kind: "Task", properties: [{property: "due"}]}]`,
			wantCode: "E122",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCUE(t, t.TempDir(), "doc.cue", tt.content)

			out, err := execute(t, "validate", path)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "\u2717 Validation failed")
			assert.Contains(t, out, tt.wantCode)
		})
	}
}

func TestValidateCommand_InvalidJSON(t *testing.T) {
	path := writeCUE(t, t.TempDir(), "doc.cue", `entities: [{key: ["Task", 1]}, {key: ["Task", 1]}]`)

	out, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E100", resp.Error.Code)
}

func TestValidateCommand_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0755))
	syntax := writeCUE(t, dir, "broken.cue", `entities: [{key: `)
	badEntity := writeCUE(t, dir, "bad_entity.cue", `entities: [{key: "Task"}]`)
	badPaging := writeCUE(t, dir, "bad_paging.cue", `queries: paged: {text: "kind Task", limit: -1}`)

	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"missing path", filepath.Join(dir, "missing.cue"), ErrCodeNotFound},
		{"empty directory", empty, ErrCodeNoFiles},
		{"syntax error", syntax, ErrCodeGeneric},
		{"malformed entity", badEntity, ErrCodeEntity},
		{"negative limit", badPaging, ErrCodeQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "validate", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.wantCode)
		})
	}
}

func TestValidateCommand_Verbose(t *testing.T) {
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--verbose", "--format", "json", "validate", fixturesFile})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "Compiled 1 CUE file(s)")
	assert.True(t, json.Valid(out.Bytes()), "verbose output stays off stdout")
}
