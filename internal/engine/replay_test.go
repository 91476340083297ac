package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/journal"
)

// populate runs a short history: provisioning, a table, two inserts, a
// delete and one failing call.
func populate(t *testing.T, e *Engine) string {
	t.Helper()
	db := provision(t, e)
	mustExec(t, e, Call{Action: ActionCreateTable, Database: db, Caller: alice, Args: ir.IRObject{
		"name": ir.IRString("Bacon"), "columns": baconColumns(),
	}})
	for _, n := range []int64{1, 2} {
		mustExec(t, e, Call{Action: ActionInsert, Database: db, Caller: alice, Args: ir.IRObject{
			"table": ir.IRInt(0), "values": ir.IRArray{ir.IRInt(n), ir.IRString("row"), ir.IRBool(true)},
		}})
	}
	mustExec(t, e, Call{Action: ActionDeleteDirect, Database: db, Caller: alice, Args: ir.IRObject{
		"table": ir.IRInt(0), "row": ir.IRInt(0),
	}})
	_, err := e.Execute(context.Background(), Call{Action: ActionDropTable, Database: db, Caller: alice, Args: ir.IRObject{"table": ir.IRInt(9)}})
	require.Error(t, err)
	return db
}

func TestRestore_RebuildsState(t *testing.T) {
	j := setupTestJournal(t)
	first := New(testConfig(), j, WithSessionGenerator(NewFixedGenerator("session-1")))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	db := populate(t, first)
	lastSeq := first.Seq()
	cancel()
	<-done

	second := New(testConfig(), j, WithSessionGenerator(NewFixedGenerator("session-2")))
	n, err := second.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, lastSeq, second.Seq())

	startEngine(t, second)
	r := mustExec(t, second, Call{Action: ActionSelectAll, Database: db, Caller: alice, Args: ir.IRObject{"table": ir.IRInt(0)}})
	assert.Equal(t, ir.IRArray{ir.IRObject{
		"index":  ir.IRInt(1),
		"values": ir.IRArray{ir.IRInt(2), ir.IRString("row"), ir.IRBool(true)},
	}}, r.Completion.Result["rows"])

	r = mustExec(t, second, Call{Action: ActionBalanceOf, Caller: bob, Args: ir.IRObject{"holder": ir.IRString(alice.Hex())}})
	assert.Equal(t, ir.IRInt(9900), r.Completion.Result["balance"])

	r = mustExec(t, second, Call{Action: ActionInsert, Database: db, Caller: alice, Args: ir.IRObject{
		"table": ir.IRInt(0), "values": ir.IRArray{ir.IRInt(3), ir.IRString("row"), ir.IRBool(false)},
	}})
	assert.Equal(t, lastSeq+1, r.Invocation.Seq, "clock resumes after the journal")
	assert.Equal(t, ir.IRInt(2), r.Completion.Result["row"], "row counter survives restore")
	assert.Equal(t, "session-2", r.Invocation.Session)
}

func TestRestore_PreservesStringBytes(t *testing.T) {
	// Not in NFC: a decomposed "é", and ten U+0958 (30 bytes) whose NFC
	// form is 60 bytes and would no longer fit a word.
	values := []string{"e\u0301", strings.Repeat("\u0958", 10), "plain"}

	j := setupTestJournal(t)
	first := New(testConfig(), j, WithSessionGenerator(NewFixedGenerator("s")))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	db := provision(t, first)
	mustExec(t, first, Call{Action: ActionCreateTable, Database: db, Caller: alice, Args: ir.IRObject{
		"name":    ir.IRString("Text"),
		"columns": ir.IRArray{ir.IRObject{"name": ir.IRString("s"), "type": ir.IRString("string")}},
	}})
	for _, v := range values {
		mustExec(t, first, Call{Action: ActionInsert, Database: db, Caller: alice, Args: ir.IRObject{
			"table": ir.IRInt(0), "values": ir.IRArray{ir.IRString(v)},
		}})
	}
	cancel()
	<-done

	second := New(testConfig(), j, WithSessionGenerator(NewFixedGenerator("s")))
	_, err := second.Restore(context.Background())
	require.NoError(t, err)

	before, err := first.world.factory.Get(db)
	require.NoError(t, err)
	after, err := second.world.factory.Get(db)
	require.NoError(t, err)
	for i, v := range values {
		want, err := before.GetRow(alice, 0, uint64(i))
		require.NoError(t, err)
		got, err := after.GetRow(alice, 0, uint64(i))
		require.NoError(t, err)
		assert.Equal(t, want.Values, got.Values, "row %d", i)

		decoded, err := after.DecodeRow(0, got)
		require.NoError(t, err)
		assert.Equal(t, ir.IRString(v), decoded[0], "row %d", i)
	}
}

func TestRestore_AfterJournalFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	j, err := journal.Open(path)
	require.NoError(t, err)

	e := New(testConfig(), j, WithSessionGenerator(NewFixedGenerator("s")))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	provision(t, e)

	require.NoError(t, j.Close())
	_, err = e.Execute(context.Background(), Call{Action: ActionMint, Caller: admin, Args: ir.IRObject{
		"to": ir.IRString(bob.Hex()), "amount": ir.IRInt(5),
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHalted)
	assert.True(t, e.Halted())
	require.NoError(t, <-done, "the loop exits once halted")

	// Reads are refused too: the world holds a mint the journal lacks.
	_, err = e.Execute(context.Background(), Call{Action: ActionBalanceOf, Caller: bob, Args: ir.IRObject{
		"holder": ir.IRString(bob.Hex()),
	}})
	assert.ErrorIs(t, err, ErrHalted)

	reopened, err := journal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	restored := New(testConfig(), reopened, WithSessionGenerator(NewFixedGenerator("s2")))
	n, err := restored.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	startEngine(t, restored)
	r := mustExec(t, restored, Call{Action: ActionBalanceOf, Caller: bob, Args: ir.IRObject{
		"holder": ir.IRString(bob.Hex()),
	}})
	assert.Equal(t, ir.IRInt(0), r.Completion.Result["balance"], "the unjournaled mint is gone")
	r = mustExec(t, restored, Call{Action: ActionMint, Caller: admin, Args: ir.IRObject{
		"to": ir.IRString(bob.Hex()), "amount": ir.IRInt(5),
	}})
	assert.Equal(t, int64(4), r.Invocation.Seq)
}

func TestRestore_DetectsDivergence(t *testing.T) {
	j := setupTestJournal(t)
	first := New(testConfig(), j, WithSessionGenerator(NewFixedGenerator("s")))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	provision(t, first)
	cancel()
	<-done

	// A different price makes the creation call charge more than alice approved
	cfg := testConfig()
	cfg.Price = 500
	second := New(cfg, j, WithSessionGenerator(NewFixedGenerator("s")))
	n, err := second.Restore(context.Background())
	require.Error(t, err)
	assert.True(t, IsReplayError(err))
	assert.Equal(t, 2, n, "mint and approve replay cleanly")

	var re *ReplayError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, int64(3), re.Seq)
	assert.Equal(t, "output_case", re.Field)
	assert.Equal(t, ir.OutputSuccess, re.Recorded)
	assert.Equal(t, string(ir.ErrAllowance), re.Replayed)
}

func TestRestore_EmptyJournal(t *testing.T) {
	e := New(testConfig(), setupTestJournal(t), WithSessionGenerator(NewFixedGenerator("s")))
	n, err := e.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(0), e.Seq())
}

func TestRestore_WithoutJournal(t *testing.T) {
	e := New(testConfig(), nil, WithSessionGenerator(NewFixedGenerator("s")))
	n, err := e.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRestore_RejectsRunningEngine(t *testing.T) {
	e := newTestEngine(t, setupTestJournal(t))
	mustExec(t, e, Call{Action: ActionPrice, Caller: bob})

	_, err := e.Restore(context.Background())
	assert.ErrorIs(t, err, ErrRunning)
}

func TestReplayError_Message(t *testing.T) {
	err := &ReplayError{Seq: 4, InvocationID: "abc", Field: "events", Recorded: "[]", Replayed: "[{}]"}
	assert.Contains(t, err.Error(), "seq 4")
	assert.Contains(t, err.Error(), "events")
	assert.False(t, IsReplayError(errors.New("other")))
}
