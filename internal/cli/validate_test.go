package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	out := mustRun(t, tempJournal(t), "validate")
	assert.Contains(t, out, "✓ default config valid; 0 table(s) in 0 schema file(s)")
}

func TestValidateConfigAndSchemas(t *testing.T) {
	out := mustRun(t, tempJournal(t), "--config", "../config/testdata/owner.cue", "validate", baconSchema)
	assert.Contains(t, out, "../config/testdata/owner.cue valid; 2 table(s) in 1 schema file(s)")
}

func TestValidateReportsEveryError(t *testing.T) {
	cfg := writeConfig(t, `policy: "everyone"`)
	schema := writeSchema(t, `table: T: columns: [{name: "x", type: "float"}]`)

	out, err := runCLI(t, tempJournal(t), "--config", cfg, "validate", schema, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 2)
	assert.Equal(t, ErrCodeConfig, resp.Data.Errors[0].Code)
	assert.Equal(t, ErrCodeCompile, resp.Data.Errors[1].Code)
}

func TestValidateUnknownConfigField(t *testing.T) {
	cfg := writeConfig(t, `prize: 10`)

	out, err := runCLI(t, tempJournal(t), "--config", cfg, "validate")
	require.Error(t, err)
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeConfig)
}
