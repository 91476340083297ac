package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/journal"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Database string // only calls against this database
	Action   string // only calls of this action
	Failed   bool   // only failed calls
}

// LogEntry is one journaled call in the log output.
type LogEntry struct {
	Seq        int64       `json:"seq"`
	Action     string      `json:"action"`
	Database   string      `json:"database,omitempty"`
	Caller     string      `json:"caller"`
	Args       ir.IRObject `json:"args"`
	OutputCase string      `json:"output_case"`
	Result     ir.IRObject `json:"result,omitempty"`
	Events     []ir.Event  `json:"events"`
	GasUsed    int64       `json:"gas_used"`
	Invocation string      `json:"invocation_id"`
	Completion string      `json:"completion_id"`
}

// LogStats summarizes the printed entries.
type LogStats struct {
	Calls     int   `json:"calls"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Events    int   `json:"events"`
	GasUsed   int64 `json:"gas_used"`
}

// LogResult is the output of the log command.
type LogResult struct {
	Entries []LogEntry `json:"entries"`
	Stats   LogStats   `json:"stats"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the journal",
		Long: `Print the journaled calls in seq order with their outcomes and events.

The journal is read as stored; nothing is replayed. Reads are never
journaled and do not appear.

Examples:
  chaindb log --db ./chaindb.db
  chaindb log --action Database.insert --database <id>
  chaindb log --failed --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Database, "database", "d", "", "only calls against this database ID")
	cmd.Flags().StringVar(&opts.Action, "action", "", "only calls of this action")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only failed calls")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Journal); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	var entries []journal.Entry
	if opts.Database != "" {
		entries, err = j.ReadDatabase(cmd.Context(), opts.Database)
	} else {
		entries, err = j.ReadAll(cmd.Context())
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := buildLog(entries, opts.Action, opts.Failed)
	if opts.Format == "json" {
		return newFormatter(cmd, opts.RootOptions).Success(result)
	}
	outputLogText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// buildLog filters journal entries and totals them.
func buildLog(entries []journal.Entry, action string, failedOnly bool) LogResult {
	result := LogResult{Entries: []LogEntry{}}
	for _, e := range entries {
		inv, comp := e.Invocation, e.Completion
		if action != "" && string(inv.Action) != action {
			continue
		}
		ok := comp.OutputCase == ir.OutputSuccess
		if failedOnly && ok {
			continue
		}

		result.Entries = append(result.Entries, LogEntry{
			Seq:        inv.Seq,
			Action:     string(inv.Action),
			Database:   inv.Database,
			Caller:     inv.Caller.Hex(),
			Args:       inv.Args,
			OutputCase: comp.OutputCase,
			Result:     comp.Result,
			Events:     comp.Events,
			GasUsed:    comp.GasUsed,
			Invocation: inv.ID,
			Completion: comp.ID,
		})

		result.Stats.Calls++
		if ok {
			result.Stats.Succeeded++
		} else {
			result.Stats.Failed++
		}
		result.Stats.Events += len(comp.Events)
		result.Stats.GasUsed += comp.GasUsed
	}
	return result
}

func outputLogText(w io.Writer, result LogResult, verbose bool) {
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No journaled calls.")
		return
	}
	for _, e := range result.Entries {
		fmt.Fprintf(w, "[%d] %s %s -> %s (gas %d)\n",
			e.Seq, e.Action, renderValue(e.Args), e.OutputCase, e.GasUsed)
		if e.Database != "" {
			fmt.Fprintf(w, "    database: %s\n", e.Database)
		}
		fmt.Fprintf(w, "    caller:   %s\n", e.Caller)
		if len(e.Result) > 0 {
			fmt.Fprintf(w, "    result:   %s\n", renderValue(e.Result))
		}
		for _, ev := range e.Events {
			fmt.Fprintf(w, "    event:    %s\n", renderValue(ev.Canonical()))
		}
		if verbose {
			fmt.Fprintf(w, "    invocation: %s\n    completion: %s\n", e.Invocation, e.Completion)
		}
	}
	s := result.Stats
	fmt.Fprintf(w, "\n%d calls (%d succeeded, %d failed), %d events, %d gas\n",
		s.Calls, s.Succeeded, s.Failed, s.Events, s.GasUsed)
}
