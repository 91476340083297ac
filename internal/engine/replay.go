package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/journal"
)

// Restore rebuilds the world from the journal.
//
// Every journaled call is executed again, in seq order and at its recorded
// seq, against the engine's fresh world. Each outcome must reproduce the
// recorded one: same invocation ID, same output case, same events, same
// result. The first divergence stops the restore with a *ReplayError.
// Afterwards the clock resumes from the last journaled seq.
//
// Restore must run before Run and on an engine that has executed nothing.
// It returns the number of calls replayed.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	if e.running.Load() {
		return 0, ErrRunning
	}
	if e.journal == nil {
		return 0, nil
	}
	if e.clock.Current() != 0 {
		return 0, errors.New("restore: engine has already executed calls")
	}

	entries, err := e.journal.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := e.replay(entry); err != nil {
			slog.Error("replay diverged", "seq", entry.Invocation.Seq, "error", err)
			return i, err
		}
		e.clock.advanceTo(entry.Invocation.Seq)
	}

	slog.Info("journal restored", "calls", len(entries), "seq", e.clock.Current())
	return len(entries), nil
}

func (e *Engine) replay(entry journal.Entry) error {
	inv := entry.Invocation
	diverged := func(field, recorded, replayed string) error {
		return &ReplayError{
			Seq:          inv.Seq,
			InvocationID: inv.ID,
			Field:        field,
			Recorded:     recorded,
			Replayed:     replayed,
		}
	}

	act, ok := actions[inv.Action]
	if !ok || !act.mutating {
		return diverged("action", string(inv.Action), "not a mutating action")
	}

	call := Call{
		Action:   inv.Action,
		Database: inv.Database,
		Caller:   inv.Caller,
		Args:     inv.Args,
		GasLimit: inv.GasLimit,
	}
	got, _ := e.apply(call, act, inv.Seq)
	want := entry.Completion

	if got.Invocation.ID != inv.ID {
		return diverged("invocation_id", inv.ID, got.Invocation.ID)
	}
	if got.Completion.OutputCase != want.OutputCase {
		return diverged("output_case", want.OutputCase, got.Completion.OutputCase)
	}
	if a, b := eventsJSON(want.Events), eventsJSON(got.Completion.Events); !bytes.Equal(a, b) {
		return diverged("events", string(a), string(b))
	}
	if a, b := canonical(want.Result), canonical(got.Completion.Result); !bytes.Equal(a, b) {
		return diverged("result", string(a), string(b))
	}
	if got.Completion.ID != want.ID {
		return diverged("completion_id", want.ID, got.Completion.ID)
	}
	return nil
}

func eventsJSON(events []ir.Event) []byte {
	arr := make(ir.IRArray, len(events))
	for i, ev := range events {
		arr[i] = ev.Canonical()
	}
	return canonical(arr)
}

func canonical(v ir.IRValue) []byte {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return []byte(err.Error())
	}
	return data
}
