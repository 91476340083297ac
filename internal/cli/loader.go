package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/chaindb/internal/compiler"
)

// Error codes for schema loading and compilation.
const (
	ErrCodeNotFound   = "E_NOT_FOUND"
	ErrCodeNoFiles    = "E_NO_FILES"
	ErrCodeCompile    = "E_COMPILE"
	ErrCodeConfig     = "E_CONFIG"
	ErrCodeWrite      = "E_WRITE"
)

// LoadError is a schema loading failure for one path.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SchemaFile is the compiled content of one CUE schema file.
type SchemaFile struct {
	Path   string                 `json:"path"`
	Tables []compiler.TableSchema `json:"tables"`
}

// collectSchemaFiles expands paths into CUE files. Directories contribute
// their *.cue files, sorted by name.
func collectSchemaFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: p, Message: "not found", Err: err}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.cue"))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: p, Message: err.Error(), Err: err}
		}
		if len(matches) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Path: p, Message: "no .cue files"}
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}

// loadSchemas compiles every file, collecting errors instead of stopping
// at the first.
func loadSchemas(files []string) ([]SchemaFile, []error) {
	var (
		out  []SchemaFile
		errs []error
	)
	for _, f := range files {
		tables, err := compiler.LoadFile(f)
		if err != nil {
			errs = append(errs, splitErrors(err)...)
			continue
		}
		out = append(out, SchemaFile{Path: f, Tables: tables})
	}
	return out, errs
}

// splitErrors undoes errors.Join.
func splitErrors(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

// errorEntry renders one compile or validation error for output.
func errorEntry(err error) CLIError {
	var (
		compileErr *compiler.CompileError
		validErr   compiler.ValidationError
		loadErr    *LoadError
	)
	switch {
	case errors.As(err, &loadErr):
		return CLIError{Code: loadErr.Code, Message: loadErr.Error()}
	case errors.As(err, &validErr):
		return CLIError{Code: validErr.Code, Message: validErr.Field + ": " + validErr.Message}
	case errors.As(err, &compileErr):
		return CLIError{Code: ErrCodeCompile, Message: compileErr.Error()}
	}
	return CLIError{Code: ErrCodeCompile, Message: err.Error()}
}
