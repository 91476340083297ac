package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chaindb/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool       `json:"valid"`
	Config string     `json:"config,omitempty"`
	Files  int        `json:"files"`
	Tables int        `json:"tables"`
	Errors []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema.cue|dir]...",
		Short: "Check the config file and table schemas",
		Long: `Check the --config file against the config schema and every given table
schema file, without touching the journal.

Examples:
  chaindb validate --config ./chaindb.cue
  chaindb validate ./schemas --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)
	result := ValidationResult{Config: opts.Config}

	if _, err := config.Load(opts.Config); err != nil {
		result.Errors = append(result.Errors, CLIError{Code: ErrCodeConfig, Message: err.Error()})
	} else {
		formatter.VerboseLog("config ok: %s", configName(opts.Config))
	}

	if len(paths) > 0 {
		files, err := collectSchemaFiles(paths)
		if err != nil {
			result.Errors = append(result.Errors, errorEntry(err))
		} else {
			result.Files = len(files)
			schemas, errs := loadSchemas(files)
			for _, s := range schemas {
				result.Tables += len(s.Tables)
			}
			for _, err := range errs {
				result.Errors = append(result.Errors, errorEntry(err))
			}
		}
	}
	result.Valid = len(result.Errors) == 0

	if opts.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		if err := formatter.encode(CLIResponse{Status: "error", Data: result, Error: &result.Errors[0]}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	w := formatter.Writer
	if result.Valid {
		fmt.Fprintf(w, "✓ %s valid; %d table(s) in %d schema file(s)\n",
			configName(opts.Config), result.Tables, result.Files)
		return nil
	}
	fmt.Fprintln(w, "✗ Validation failed")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s: %s\n", e.Code, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

func configName(path string) string {
	if path == "" {
		return "default config"
	}
	return path
}
