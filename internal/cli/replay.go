package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

// ReplayDatabase summarizes one database of the restored state.
type ReplayDatabase struct {
	ID     string `json:"database"`
	Name   string `json:"name"`
	Owner  string `json:"owner"`
	Tables int    `json:"tables"`
	Rows   int    `json:"rows"`
}

// ReplayResult holds the outcome of the replay command.
type ReplayResult struct {
	Calls         int              `json:"calls"`
	Seq           int64            `json:"seq"`
	Databases     []ReplayDatabase `json:"databases"`
	Deterministic bool             `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Rebuild the state from the journal twice and verify it is deterministic.

Each replay re-executes every journaled call and checks its outcome against
the recorded completion. The two rebuilt states are then read back in full
and compared.

Exit codes:
  0 - Replay reproduced the journal and both states match
  1 - A call diverged from its record or the states differ
  2 - Command error (journal not found, bad config)

Examples:
  chaindb replay --db ./chaindb.db
  chaindb replay --db ./chaindb.db --config ./chaindb.cue --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Journal); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts)

	first, result, err := replaySnapshot(ctx, opts)
	if err != nil {
		return err
	}
	formatter.VerboseLog("first replay: %d calls, seq %d", result.Calls, result.Seq)

	second, again, err := replaySnapshot(ctx, opts)
	if err != nil {
		return err
	}
	formatter.VerboseLog("second replay: %d calls, seq %d", again.Calls, again.Seq)

	result.Deterministic = bytes.Equal(first, second) && result.Seq == again.Seq

	if opts.Format == "json" {
		if result.Deterministic {
			return formatter.Success(result)
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: "E_DETERMINISM", Message: "replayed states differ"},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return outputReplayText(cmd, result)
}

// replaySnapshot restores the journal into a fresh engine and reads the
// whole state back as canonical JSON.
func replaySnapshot(ctx context.Context, opts *RootOptions) ([]byte, ReplayResult, error) {
	in, err := openInstance(ctx, opts)
	if err != nil {
		return nil, ReplayResult{}, err
	}
	defer in.Close()

	entries, err := in.journal.ReadAll(ctx)
	if err != nil {
		return nil, ReplayResult{}, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	result := ReplayResult{Calls: len(entries), Seq: in.engine.Seq(), Databases: []ReplayDatabase{}}

	read := func(action ir.ActionRef, database string, caller ir.Address, args ir.IRObject) (ir.IRObject, error) {
		r, err := in.engine.Execute(ctx, engine.Call{Action: action, Database: database, Caller: caller, Args: args})
		if err != nil {
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("read %s", action), err)
		}
		return r.Completion.Result, nil
	}

	state := ir.IRObject{}
	dbs, err := read(engine.ActionDatabases, "", in.cfg.Admin, ir.IRObject{})
	if err != nil {
		return nil, result, err
	}
	list, _ := dbs.Array("databases")
	for _, v := range list {
		db, _ := v.(ir.IRObject)
		id, _ := db.String("database")
		name, _ := db.String("name")
		ownerHex, _ := db.String("owner")
		owner, err := ir.ParseAddress(ownerHex)
		if err != nil {
			return nil, result, WrapExitError(ExitFailure, "database owner", err)
		}

		summary := ReplayDatabase{ID: id, Name: name, Owner: ownerHex}
		tables, err := read(engine.ActionShowTables, id, owner, ir.IRObject{})
		if err != nil {
			return nil, result, err
		}
		dbState := ir.IRObject{"tables": tables}
		entries, _ := tables.Array("tables")
		for _, t := range entries {
			table, _ := t.(ir.IRObject)
			rows, err := read(engine.ActionSelectAll, id, owner, ir.IRObject{"table": table["index"]})
			if err != nil {
				return nil, result, err
			}
			rowList, _ := rows.Array("rows")
			summary.Tables++
			summary.Rows += len(rowList)
			idx, _ := table.Int("index")
			dbState[fmt.Sprintf("table_%d", idx)] = rows
		}
		state[id] = dbState
		result.Databases = append(result.Databases, summary)
	}

	data, err := ir.MarshalCanonical(state)
	if err != nil {
		return nil, result, WrapExitError(ExitFailure, "snapshot", err)
	}
	return data, result, nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replayed %d call(s), seq %d\n", result.Calls, result.Seq)
	for _, db := range result.Databases {
		fmt.Fprintf(w, "  %s %s (owner %s): %d table(s), %d row(s)\n",
			db.ID, db.Name, db.Owner, db.Tables, db.Rows)
	}
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay verified deterministic")
		return nil
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
