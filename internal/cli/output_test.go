package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/testutil"
)

// execInMemory runs one call on an engine without a journal.
func execInMemory(t *testing.T, call engine.Call) (engine.Receipt, error) {
	t.Helper()
	eng := engine.New(testutil.EngineConfig(), nil,
		engine.WithSessionGenerator(testutil.NewFixedSessionGenerator("")))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return eng.Execute(context.Background(), call)
}

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"file": "bacon.cue"}
	require.NoError(t, formatter.Error("TableNotFound", "no table 3", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TableNotFound", resp.Error.Code)
	assert.Equal(t, "no table 3", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("E_COMMAND", "journal locked", map[string]string{"path": "x"}))
	assert.Contains(t, buf.String(), "Error [E_COMMAND]: journal locked")
	assert.NotContains(t, buf.String(), "Details:")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error("E_COMMAND", "journal locked", map[string]string{"path": "x"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: diag,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("replayed %d calls", 3)

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, diag.String(), "replayed 3 calls")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestOutputFormatter_ReceiptText(t *testing.T) {
	receipt, err := execInMemory(t, engine.Call{
		Action: engine.ActionMint,
		Caller: testutil.Admin,
		Args:   ir.IRObject{"to": ir.IRString(testutil.Alice.Hex()), "amount": ir.IRInt(500)},
	})
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, formatter.Receipt(receipt))

	out := buf.String()
	assert.Contains(t, out, "Success seq=1 gas=140")
	assert.Contains(t, out, "event Transfer[0]")
	assert.Contains(t, out, testutil.Alice.Hex())
}

func TestOutputFormatter_ReceiptJSONFailure(t *testing.T) {
	receipt, err := execInMemory(t, engine.Call{
		Action: engine.ActionTransfer,
		Caller: testutil.Bob,
		Args:   ir.IRObject{"to": ir.IRString(testutil.Alice.Hex()), "amount": ir.IRInt(1)},
	})
	require.True(t, ir.IsCode(err, ir.ErrBalance))

	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}
	require.NoError(t, formatter.Receipt(receipt))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Balance", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Message)
	assert.NotNil(t, resp.Data)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := WrapExitError(ExitFailure, "call failed", ir.Errorf(ir.ErrRowNotFound, "row 4"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "call failed: RowNotFound: row 4", wrapped.Error())
	assert.Equal(t, "RowNotFound", ErrorCode(wrapped))
	assert.Equal(t, "E_COMMAND", ErrorCode(errors.New("plain")))
}
