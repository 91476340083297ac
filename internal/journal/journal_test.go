package journal

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/roach88/chaindb/internal/ir"
)

var testCaller = ir.MustAddress("0x00000000000000000000000000000000000000a1")

func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func createTestCall(seq int64, action ir.ActionRef, events ...ir.Event) (ir.Invocation, ir.Completion) {
	args := ir.IRObject{"table": ir.IRInt(0)}
	inv := ir.Invocation{
		Session:       "session-1",
		Action:        action,
		Database:      "db-1",
		Caller:        testCaller,
		Args:          args,
		Seq:           seq,
		GasLimit:      100000,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	inv.ID = ir.MustInvocationID(inv.Database, action, testCaller, args, seq)

	result := ir.IRObject{"row": ir.IRInt(seq)}
	comp := ir.Completion{
		InvocationID: inv.ID,
		OutputCase:   ir.OutputSuccess,
		Result:       result,
		GasUsed:      40,
		Seq:          seq,
		Events:       events,
	}
	id, err := ir.CompletionID(inv.ID, comp.OutputCase, result, events, seq)
	if err != nil {
		panic(err)
	}
	comp.ID = id
	return inv, comp
}

func TestOpen_CreatesNewJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer j.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("journal file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		j.Close()
	}

	j, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer j.Close()

	for _, table := range []string{"invocations", "completions", "events"} {
		var name string
		err := j.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	j := createTestJournal(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	}
	for name, want := range checks {
		if err := j.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_MigrationIndexes(t *testing.T) {
	j := createTestJournal(t)

	for _, index := range []string{"idx_invocations_database", "idx_events_kind"} {
		var name string
		err := j.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			index,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q missing: %v", index, err)
		}
	}
}

func TestWriteCall_RoundTrip(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	ev := ir.Event{Kind: ir.EventRowCreated, Index: 3, Fields: ir.IRObject{"table": ir.IRInt(0)}}
	inv, comp := createTestCall(1, "Database.insert", ev)

	inserted, err := j.WriteCall(ctx, inv, comp)
	if err != nil {
		t.Fatalf("WriteCall() failed: %v", err)
	}
	if !inserted {
		t.Fatal("WriteCall() reported existing record on first write")
	}

	entries, err := j.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ReadAll() returned %d entries, want 1", len(entries))
	}
	if !reflect.DeepEqual(entries[0].Invocation, inv) {
		t.Errorf("invocation = %+v, want %+v", entries[0].Invocation, inv)
	}
	if !reflect.DeepEqual(entries[0].Completion, comp) {
		t.Errorf("completion = %+v, want %+v", entries[0].Completion, comp)
	}
}

func TestWriteCall_Idempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	ev := ir.Event{Kind: ir.EventTableDropped, Index: 0}
	inv, comp := createTestCall(1, "Database.dropTable", ev)

	if _, err := j.WriteCall(ctx, inv, comp); err != nil {
		t.Fatalf("first WriteCall() failed: %v", err)
	}
	inserted, err := j.WriteCall(ctx, inv, comp)
	if err != nil {
		t.Fatalf("second WriteCall() failed: %v", err)
	}
	if inserted {
		t.Error("second WriteCall() inserted a duplicate")
	}

	events, err := j.ReadEvents(ctx)
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestWriteCall_RejectsMismatchedCompletion(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	inv, _ := createTestCall(1, "Database.insert")
	_, other := createTestCall(2, "Database.insert")

	if _, err := j.WriteCall(ctx, inv, other); err == nil {
		t.Fatal("WriteCall() accepted a completion for another invocation")
	}

	entries, err := j.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("journal has %d entries after rejected write", len(entries))
	}
}

func TestWriteCall_AtomicOnFailure(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	first, firstComp := createTestCall(1, "Database.insert")
	if _, err := j.WriteCall(ctx, first, firstComp); err != nil {
		t.Fatalf("WriteCall() failed: %v", err)
	}

	// Same completion ID under a new invocation violates the primary key
	// after the invocation row is already inserted; the tx must roll back.
	second, secondComp := createTestCall(2, "Database.insert")
	secondComp.ID = firstComp.ID
	if _, err := j.WriteCall(ctx, second, secondComp); err == nil {
		t.Fatal("WriteCall() succeeded with a duplicate completion ID")
	}

	var count int
	if err := j.db.QueryRow("SELECT COUNT(*) FROM invocations").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("invocations = %d, want 1 (rolled back)", count)
	}
}

func TestReadAll_OrderedBySeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	for _, seq := range []int64{3, 1, 2} {
		inv, comp := createTestCall(seq, "Database.insert")
		if _, err := j.WriteCall(ctx, inv, comp); err != nil {
			t.Fatalf("WriteCall(%d) failed: %v", seq, err)
		}
	}

	entries, err := j.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	for i, e := range entries {
		if e.Invocation.Seq != int64(i+1) {
			t.Errorf("entries[%d].Seq = %d, want %d", i, e.Invocation.Seq, i+1)
		}
		if e.Completion.Events == nil {
			t.Errorf("entries[%d] has nil events, want empty slice", i)
		}
	}

	last, err := j.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if last != 3 {
		t.Errorf("LastSeq() = %d, want 3", last)
	}
}

func TestReadAll_EmptyJournal(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	entries, err := j.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("ReadAll() = %v, want empty non-nil slice", entries)
	}

	last, err := j.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if last != 0 {
		t.Errorf("LastSeq() = %d, want 0", last)
	}
}

func TestReadDatabase_Filters(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	inv, comp := createTestCall(1, "Database.insert")
	if _, err := j.WriteCall(ctx, inv, comp); err != nil {
		t.Fatalf("WriteCall() failed: %v", err)
	}

	got, err := j.ReadDatabase(ctx, "db-1")
	if err != nil {
		t.Fatalf("ReadDatabase() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("ReadDatabase(db-1) = %d entries, want 1", len(got))
	}

	got, err = j.ReadDatabase(ctx, "db-2")
	if err != nil {
		t.Fatalf("ReadDatabase() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadDatabase(db-2) = %d entries, want 0", len(got))
	}
}

func TestReadEvents_EmissionOrder(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	transfer := ir.Event{Kind: ir.EventTransfer, Fields: ir.IRObject{"value": ir.IRInt(100)}}
	created := ir.Event{Kind: ir.EventDatabaseCreated, Fields: ir.IRObject{"name": ir.IRString("test_db")}}
	inv, comp := createTestCall(1, "Factory.create", transfer, created)
	if _, err := j.WriteCall(ctx, inv, comp); err != nil {
		t.Fatalf("WriteCall() failed: %v", err)
	}

	events, err := j.ReadEvents(ctx)
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	want := []ir.Event{transfer, created}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("ReadEvents() = %+v, want %+v", events, want)
	}
}

func TestReadCompletion(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	ev := ir.Event{Kind: ir.EventRowDeleted, Index: 0}
	inv, comp := createTestCall(1, "Database.deleteDirect", ev)
	if _, err := j.WriteCall(ctx, inv, comp); err != nil {
		t.Fatalf("WriteCall() failed: %v", err)
	}

	got, err := j.ReadCompletion(ctx, comp.ID)
	if err != nil {
		t.Fatalf("ReadCompletion() failed: %v", err)
	}
	if !reflect.DeepEqual(got, comp) {
		t.Errorf("ReadCompletion() = %+v, want %+v", got, comp)
	}

	_, err = j.ReadCompletion(ctx, "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadCompletion(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestWriteCall_StringsKeepTheirBytes(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	// Neither value is in NFC; the journal must not normalize them.
	decomposed := ir.IRString("e\u0301")
	values := ir.IRArray{decomposed, ir.IRString("\u0958\u0958")}

	inv, comp := createTestCall(1, "Database.insert",
		ir.Event{Kind: ir.EventTableCreated, Index: 0, Fields: ir.IRObject{"name": decomposed}})
	inv.Args = ir.IRObject{"table": ir.IRInt(0), "values": values}
	inv.ID = ir.MustInvocationID(inv.Database, inv.Action, inv.Caller, inv.Args, inv.Seq)
	comp.InvocationID = inv.ID
	id, err := ir.CompletionID(inv.ID, comp.OutputCase, comp.Result, comp.Events, comp.Seq)
	if err != nil {
		t.Fatalf("CompletionID() failed: %v", err)
	}
	comp.ID = id

	if _, err := j.WriteCall(ctx, inv, comp); err != nil {
		t.Fatalf("WriteCall() failed: %v", err)
	}

	entries, err := j.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ReadAll() returned %d entries, want 1", len(entries))
	}
	got := entries[0]
	if !reflect.DeepEqual(got.Invocation.Args["values"], values) {
		t.Errorf("args values = %q, want %q", got.Invocation.Args["values"], values)
	}
	if name := got.Completion.Events[0].Fields["name"]; name != decomposed {
		t.Errorf("event name = %q, want %q", name, decomposed)
	}
}
