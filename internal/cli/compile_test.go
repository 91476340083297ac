package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baconSchema = "../compiler/testdata/bacon.cue"

func writeSchema(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestCompileText(t *testing.T) {
	out := mustRun(t, tempJournal(t), "compile", baconSchema)
	assert.Contains(t, out, "✓ Compiled 2 table(s) from 1 file(s)")
	assert.Contains(t, out, "Bacon: 3 column(s)")
	assert.Contains(t, out, "Holders: 2 column(s)")
	assert.Contains(t, out, "boolean")
}

func TestCompileJSONAndOutputFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "tables.json")
	out := mustRun(t, tempJournal(t), "compile", baconSchema, "-o", output, "--format", "json")

	var resp struct {
		Status string           `json:"status"`
		Data   []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Bacon", resp.Data[0]["name"])

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var written []map[string]any
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, resp.Data, written)
}

func TestCompileDirectory(t *testing.T) {
	out := mustRun(t, tempJournal(t), "compile", filepath.Dir(baconSchema))
	assert.Contains(t, out, "Compiled 2 table(s)")
}

func TestCompileCollectsErrors(t *testing.T) {
	path := writeSchema(t, `
table: Dup: columns: [
	{name: "a", type: "integer"},
	{name: "a", type: "string"},
]

table: Unassigned: columns: [
	{name: "b", type: 4},
]
`)
	out, err := runCLI(t, tempJournal(t), "compile", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Error  *CLIError  `json:"error"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)

	codes := make([]string, len(resp.Data))
	for i, e := range resp.Data {
		codes[i] = e.Code
	}
	assert.ElementsMatch(t, []string{"E105", ErrCodeCompile}, codes)
}

func TestCompileMissingFile(t *testing.T) {
	out, err := runCLI(t, tempJournal(t), "compile", "/nonexistent/schema.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}
