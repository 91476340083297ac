package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaindb/internal/journal"
)

func TestReplayMissingJournal(t *testing.T) {
	_, err := runCLI(t, tempJournal(t), "replay")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

func TestReplayEmptyJournal(t *testing.T) {
	path := tempJournal(t)
	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	out := mustRun(t, path, "replay")
	assert.Contains(t, out, "Replayed 0 call(s), seq 0")
	assert.Contains(t, out, "✓ Replay verified deterministic")
}

func TestReplayRebuildsState(t *testing.T) {
	path := tempJournal(t)
	db := provision(t, path)
	mustRun(t, path, "db", "create-table", "--schema", "../compiler/testdata/bacon.cue", "-d", db, "--caller", aliceHex)
	mustRun(t, path, "db", "insert", "0", `[7, "seven", true]`, "-d", db)
	mustRun(t, path, "db", "insert", "1", `["`+bobHex+`", 3]`, "-d", db)
	mustRun(t, path, "db", "insert", "1", `["`+aliceHex+`", 4]`, "-d", db)
	mustRun(t, path, "db", "delete", "1", "0", "-d", db)

	out := mustRun(t, path, "replay")
	assert.Contains(t, out, "Replayed 9 call(s), seq 9")
	assert.Contains(t, out, db+" test_db (owner "+aliceHex+"): 2 table(s), 2 row(s)")
	assert.Contains(t, out, "✓ Replay verified deterministic")

	out = mustRun(t, path, "replay", "--format", "json")
	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Deterministic)
	require.Len(t, resp.Data.Databases, 1)
	assert.Equal(t, 2, resp.Data.Databases[0].Tables)
}

func TestReplayDetectsTamperedJournal(t *testing.T) {
	path := tempJournal(t)
	mustRun(t, path, "token", "mint", aliceHex, "1000")

	// Rewrite the recorded result behind the engine's back.
	j, err := journal.Open(path)
	require.NoError(t, err)
	_, err = j.DB().ExecContext(context.Background(),
		`UPDATE completions SET output_case = 'Balance'`)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = runCLI(t, path, "replay")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal replay diverged")

	// Every command replays on start, so calls are refused too.
	_, err = runCLI(t, path, "token", "balance", aliceHex)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestReplayAfterConfigChange(t *testing.T) {
	path := tempJournal(t)
	mustRun(t, path, "token", "mint", aliceHex, "1000")

	// A different admin cannot have minted; the journal no longer replays.
	cfg := writeConfig(t, `admin: "0x0000000000000000000000000000000000000a11"`)
	_, err := runCLI(t, path, "--config", cfg, "replay")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
