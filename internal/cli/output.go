package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The call failed, a scenario failed or replay diverged
	ExitCommandError = 2 // Bad flags, unreadable files, journal not openable
)

// ExitError carries the exit code a command should end with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Errors that are not an ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode returns the code reported for err in JSON output: the store's
// error code when there is one, E_COMMAND otherwise.
func ErrorCode(err error) string {
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	return "E_COMMAND"
}

// CLIResponse is the JSON envelope of every command's output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as JSON or text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// Success writes data. Text output prints it with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes an error payload.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Receipt writes the outcome of one engine call. A failed call is written
// as an error response that still carries the receipt.
func (f *OutputFormatter) Receipt(r engine.Receipt) error {
	if f.Format == "json" {
		if r.Succeeded() {
			return f.encode(CLIResponse{Status: "ok", Data: r})
		}
		msg, _ := r.Completion.Result.String("message")
		return f.encode(CLIResponse{
			Status: "error",
			Data:   r,
			Error:  &CLIError{Code: r.Completion.OutputCase, Message: msg},
		})
	}

	w := f.Writer
	c := r.Completion
	if r.Invocation.ID != "" {
		fmt.Fprintf(w, "%s seq=%d gas=%d\n", c.OutputCase, c.Seq, c.GasUsed)
	} else {
		fmt.Fprintf(w, "%s gas=%d\n", c.OutputCase, c.GasUsed)
	}
	for _, key := range c.Result.SortedKeys() {
		fmt.Fprintf(w, "  %s: %s\n", key, renderValue(c.Result[key]))
	}
	for _, ev := range c.Events {
		fmt.Fprintf(w, "  event %s[%d]", ev.Kind, ev.Index)
		if len(ev.Fields) > 0 {
			fmt.Fprintf(w, " %s", renderValue(ev.Fields))
		}
		fmt.Fprintln(w)
	}
	if f.Verbose && r.Invocation.ID != "" {
		fmt.Fprintf(f.GetErrWriter(), "invocation %s\ncompletion %s\n", r.Invocation.ID, c.ID)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose output is on.
// Diagnostics go to ErrWriter so JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// renderValue prints an IR value as canonical JSON, or bare for strings.
func renderValue(v ir.IRValue) string {
	if s, ok := v.(ir.IRString); ok {
		return string(s)
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return strings.TrimSpace(string(data))
}
