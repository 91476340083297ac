package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Journal  string // path to the SQLite journal
	Config   string // path to a CUE config file, empty for defaults
	Caller   string // account name or hex address the calls are made from
	GasLimit int64  // per-call gas limit, 0 uses the configured one
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the chaindb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chaindb",
		Short: "chaindb - a metered relational data store",
		Long: `chaindb keeps typed tables of fixed-width rows inside a deterministic,
gas-metered engine. New databases are bought from a factory with tokens.

Every mutating call is written to a SQLite journal; each command replays the
journal before it runs, so the state is rebuilt and checked on every start.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(cmd, opts.Verbose)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Journal, "db", "chaindb.db", "path to the SQLite journal")
	flags.StringVar(&opts.Config, "config", "", "path to a CUE config file")
	flags.StringVar(&opts.Caller, "caller", "admin", "caller: admin, factory, treasury or a hex address")
	flags.Int64Var(&opts.GasLimit, "gas", 0, "gas limit per call (0 uses the configured limit)")

	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewFactoryCommand(opts))
	cmd.AddCommand(NewDatabaseCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// setupLogging sends structured logs to stderr. Engine chatter stays at
// Warn unless --verbose is set.
func setupLogging(cmd *cobra.Command, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	w := cmd.ErrOrStderr()
	if w == nil {
		w = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
