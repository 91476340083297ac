package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chaindb/internal/testutil"
)

var (
	aliceHex = testutil.Alice.Hex()
	bobHex   = testutil.Bob.Hex()
)

// runCLI runs the root command against the journal at path and returns
// what it wrote to stdout.
func runCLI(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--db", path}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// mustRun is runCLI for calls that must succeed.
func mustRun(t *testing.T, path string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, path, args...)
	require.NoError(t, err, "chaindb %v\n%s", args, out)
	return out
}

func tempJournal(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "chaindb.db")
}

// receiptResponse is the JSON shape of a call's output.
type receiptResponse struct {
	Status string `json:"status"`
	Data   struct {
		Invocation struct {
			Seq int64 `json:"seq"`
		} `json:"invocation"`
		Completion struct {
			OutputCase string         `json:"output_case"`
			Result     map[string]any `json:"result"`
			GasUsed    int64          `json:"gas_used"`
			Events     []struct {
				Kind  string `json:"kind"`
				Index uint64 `json:"index"`
			} `json:"events"`
		} `json:"completion"`
		Journaled bool `json:"journaled"`
	} `json:"data"`
	Error *CLIError `json:"error"`
}

func decodeReceipt(t *testing.T, out string) receiptResponse {
	t.Helper()
	var resp receiptResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// provision funds alice and buys her a database named test_db. Returns
// the database ID.
func provision(t *testing.T, path string) string {
	t.Helper()
	mustRun(t, path, "token", "mint", aliceHex, "1000")
	mustRun(t, path, "token", "approve", "factory", "100", "--caller", aliceHex)
	out := mustRun(t, path, "factory", "create", "test_db", "--caller", aliceHex, "--format", "json")

	resp := decodeReceipt(t, out)
	require.Equal(t, "Success", resp.Data.Completion.OutputCase)
	id, ok := resp.Data.Completion.Result["database"].(string)
	require.True(t, ok, "create result: %v", resp.Data.Completion.Result)
	return id
}

// writeConfig writes a CUE config file and returns its path.
func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chaindb.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}
