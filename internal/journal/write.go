package journal

import (
	"context"
	"fmt"

	"github.com/roach88/chaindb/internal/ir"
)

// WriteCall atomically writes an invocation, its completion and the
// completion's events in a single transaction.
//
// Uses ON CONFLICT(id) DO NOTHING on the invocation for idempotency: writing
// the same call twice leaves one copy. Returns inserted=false in that case
// and writes nothing else.
//
// Note: The completion must reference inv.ID.
func (j *Journal) WriteCall(ctx context.Context, inv ir.Invocation, comp ir.Completion) (inserted bool, err error) {
	if comp.InvocationID != inv.ID {
		return false, fmt.Errorf("write call: completion %s references invocation %s, not %s", comp.ID, comp.InvocationID, inv.ID)
	}

	argsJSON, err := marshalObject(inv.Args)
	if err != nil {
		return false, fmt.Errorf("write call: marshal args: %w", err)
	}
	resultJSON, err := marshalObject(comp.Result)
	if err != nil {
		return false, fmt.Errorf("write call: marshal result: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write call: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO invocations
		(id, session, action, database_id, caller, args, seq, gas_limit, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.Session,
		string(inv.Action),
		inv.Database,
		inv.Caller.Hex(),
		argsJSON,
		inv.Seq,
		inv.GasLimit,
		inv.EngineVersion,
		inv.IRVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write call: insert invocation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write call: rows affected: %w", err)
	}
	if n == 0 {
		// Already journaled, nothing more to do
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("write call: commit (existing): %w", err)
		}
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO completions
		(id, invocation_id, output_case, result, gas_used, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		comp.ID,
		comp.InvocationID,
		comp.OutputCase,
		resultJSON,
		comp.GasUsed,
		comp.Seq,
	)
	if err != nil {
		return false, fmt.Errorf("write call: insert completion: %w", err)
	}

	for i, ev := range comp.Events {
		fieldsJSON, err := marshalObject(ev.Fields)
		if err != nil {
			return false, fmt.Errorf("write call: marshal event %d fields: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events
			(completion_id, position, kind, subject, fields)
			VALUES (?, ?, ?, ?, ?)
		`,
			comp.ID,
			i,
			string(ev.Kind),
			int64(ev.Index),
			fieldsJSON,
		)
		if err != nil {
			return false, fmt.Errorf("write call: insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write call: commit: %w", err)
	}

	return true, nil
}
