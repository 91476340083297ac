package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

const passingScenario = `name: mint_only
description: Admin mints to alice
flow:
  - invoke: Token.mint
    args: {to: "@alice", amount: 10}
    expect:
      case: Success
      events: [Transfer]
      gas_used: 140
assertions:
  - type: final_state
    action: Token.balanceOf
    args: {holder: "@alice"}
    expect: {balance: 10}
`

const failingScenario = `name: wrong_balance
description: Expects a balance the flow never produces
flow:
  - invoke: Token.mint
    args: {to: "@alice", amount: 10}
assertions:
  - type: final_state
    action: Token.balanceOf
    args: {holder: "@alice"}
    expect: {balance: 11}
`

// scenarioDir lays out scenarios/ and an empty golden/ next to it.
func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runCLI(t, tempJournal(t), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, err := runCLI(t, tempJournal(t), "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	dir := scenarioDir(t, nil)

	out := mustRun(t, tempJournal(t), "test", dir)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out := mustRun(t, tempJournal(t), "test", harnessScenarios)
	assert.Contains(t, out, "✓ bacon")
	assert.Contains(t, out, "✓ drop_table")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out := mustRun(t, tempJournal(t), "test", harnessScenarios, "--filter", "bac*", "--format", "json")

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "bacon", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)
}

func TestTestCommandFailure(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"mint_only.yaml":     passingScenario,
		"wrong_balance.yaml": failingScenario,
	})

	out, err := runCLI(t, tempJournal(t), "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ mint_only")
	assert.Contains(t, out, "✗ wrong_balance")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"mint_only.yaml": passingScenario})
	golden := filepath.Join(filepath.Dir(dir), "golden", "mint_only.golden")

	out := mustRun(t, tempJournal(t), "test", dir, "--update")
	assert.Contains(t, out, "✓ mint_only (golden updated)")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"mint_only"`)

	// The fresh golden file matches a second run.
	mustRun(t, tempJournal(t), "test", dir)

	// A stale golden file fails the scenario.
	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"mint_only","trace":[]}`), 0o644))
	out, err = runCLI(t, tempJournal(t), "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"broken.yaml": "name: broken\nflw: []\n"})

	out, err := runCLI(t, tempJournal(t), "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}
