package compiler

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

// LoadFile compiles every table declared in a CUE schema file.
func LoadFile(path string) ([]TableSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return LoadSource(data, path)
}

// LoadSource compiles CUE schema source. filename is used in error
// positions. All compile and validation errors are collected and returned
// joined.
func LoadSource(data []byte, filename string) ([]TableSchema, error) {
	ctx := cuecontext.New()
	shape := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("table schema: %w", err)
	}
	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := shape.Unify(file)
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &CompileError{Field: "table", Message: "no tables declared", Pos: file.Pos()}
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var (
		tables []TableSchema
		errs   []error
	)
	for iter.Next() {
		schema, err := CompileTable(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, verr := range Validate(*schema) {
			verr.Field = "table." + schema.Name + "." + verr.Field
			errs = append(errs, verr)
		}
		tables = append(tables, *schema)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(tables) == 0 {
		return nil, &CompileError{Field: "table", Message: "no tables declared", Pos: tablesVal.Pos()}
	}
	return tables, nil
}
