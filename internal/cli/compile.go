package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chaindb/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema.cue|dir>...",
		Short: "Compile CUE table schemas to createTable arguments",
		Long: `Compile CUE table schema files into the arguments of Database.createTable.

Every table in every file is compiled and checked; all errors are reported
together. The result can be passed to "chaindb call Database.createTable".

Examples:
  chaindb compile ./schemas/bacon.cue
  chaindb compile ./schemas -o tables.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	files, err := collectSchemaFiles(paths)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}
	formatter.VerboseLog("compiling %d file(s)", len(files))

	schemas, errs := loadSchemas(files)
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	calls := ir.IRArray{}
	tableCount := 0
	for _, s := range schemas {
		for _, t := range s.Tables {
			formatter.VerboseLog("compiled table %s from %s", t.Name, s.Path)
			calls = append(calls, t.Args())
			tableCount++
		}
	}

	if opts.Output != "" {
		data, err := json.MarshalIndent(calls, "", "  ")
		if err == nil {
			err = os.WriteFile(opts.Output, append(data, '\n'), 0o644)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeWrite, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "write output", err)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(calls)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d table(s) from %d file(s)\n\n", tableCount, len(schemas))
	for _, s := range schemas {
		for _, t := range s.Tables {
			fmt.Fprintf(w, "  %s: %d column(s)\n", t.Name, len(t.Columns))
			for _, c := range t.Columns {
				fmt.Fprintf(w, "    %-32s %s\n", c.Name.Text(), c.Type)
			}
		}
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote createTable arguments to %s\n", opts.Output)
	}
	return nil
}

// outputCompileErrors reports every error and fails with ExitCommandError.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	entries := make([]CLIError, len(errs))
	for i, err := range errs {
		entries[i] = errorEntry(err)
	}
	msg := fmt.Sprintf("compilation failed with %d error(s)", len(errs))

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{Status: "error", Error: &entries[0], Data: entries}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, msg)
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Code, e.Message)
	}
	return NewExitError(ExitCommandError, msg)
}
