package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/chaindb/internal/ir"
)

// Entry is one journaled call: the invocation and its completion.
type Entry struct {
	Invocation ir.Invocation `json:"invocation"`
	Completion ir.Completion `json:"completion"`
}

// ReadAll returns every journaled call in seq order.
// Used for replay. Returns an empty slice (not nil) for an empty journal.
func (j *Journal) ReadAll(ctx context.Context) ([]Entry, error) {
	return j.readEntries(ctx, "", nil)
}

// ReadDatabase returns the journaled calls against one database, in seq
// order.
func (j *Journal) ReadDatabase(ctx context.Context, databaseID string) ([]Entry, error) {
	return j.readEntries(ctx, "WHERE i.database_id = ?", []any{databaseID})
}

func (j *Journal) readEntries(ctx context.Context, where string, args []any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT i.id, i.session, i.action, i.database_id, i.caller, i.args, i.seq, i.gas_limit, i.engine_version, i.ir_version,
		       c.id, c.output_case, c.result, c.gas_used, c.seq
		FROM invocations i
		JOIN completions c ON c.invocation_id = i.id
		`+where+`
		ORDER BY i.seq ASC, i.id COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	// Close before the event queries; the pool holds a single connection.
	rows.Close()

	for i := range entries {
		events, err := j.readEvents(ctx, entries[i].Completion.ID)
		if err != nil {
			return nil, err
		}
		entries[i].Completion.Events = events
	}

	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// ReadCompletion retrieves a single completion, with events, by ID.
// Returns sql.ErrNoRows if not found.
func (j *Journal) ReadCompletion(ctx context.Context, id string) (ir.Completion, error) {
	var comp ir.Completion
	var resultJSON string
	err := j.db.QueryRowContext(ctx, `
		SELECT id, invocation_id, output_case, result, gas_used, seq
		FROM completions
		WHERE id = ?
	`, id).Scan(&comp.ID, &comp.InvocationID, &comp.OutputCase, &resultJSON, &comp.GasUsed, &comp.Seq)
	if err != nil {
		return ir.Completion{}, err
	}

	comp.Result, err = unmarshalObject(resultJSON)
	if err != nil {
		return ir.Completion{}, err
	}
	comp.Events, err = j.readEvents(ctx, id)
	if err != nil {
		return ir.Completion{}, err
	}
	return comp, nil
}

// ReadEvents returns every journaled event in seq order, then emission order.
func (j *Journal) ReadEvents(ctx context.Context) ([]ir.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT e.kind, e.subject, e.fields
		FROM events e
		JOIN completions c ON c.id = e.completion_id
		ORDER BY c.seq ASC, e.position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (j *Journal) readEvents(ctx context.Context, completionID string) ([]ir.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, subject, fields
		FROM events
		WHERE completion_id = ?
		ORDER BY position ASC
	`, completionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]ir.Event, error) {
	events := []ir.Event{}
	for rows.Next() {
		var ev ir.Event
		var kind, fieldsJSON string
		var subject int64
		if err := rows.Scan(&kind, &subject, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		fields, err := unmarshalFields(fieldsJSON)
		if err != nil {
			return nil, err
		}
		ev.Kind = ir.EventKind(kind)
		ev.Index = uint64(subject)
		ev.Fields = fields
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var action, caller, argsJSON, resultJSON string

	inv := &e.Invocation
	comp := &e.Completion
	if err := rows.Scan(
		&inv.ID, &inv.Session, &action, &inv.Database, &caller, &argsJSON, &inv.Seq, &inv.GasLimit, &inv.EngineVersion, &inv.IRVersion,
		&comp.ID, &comp.OutputCase, &resultJSON, &comp.GasUsed, &comp.Seq,
	); err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}

	inv.Action = ir.ActionRef(action)
	comp.InvocationID = inv.ID

	addr, err := ir.ParseAddress(caller)
	if err != nil {
		return Entry{}, fmt.Errorf("scan entry %s: %w", inv.ID, err)
	}
	inv.Caller = addr

	if inv.Args, err = unmarshalObject(argsJSON); err != nil {
		return Entry{}, err
	}
	if comp.Result, err = unmarshalObject(resultJSON); err != nil {
		return Entry{}, err
	}
	return e, nil
}
