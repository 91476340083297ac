// Package compiler turns CUE table schema files into column definitions.
//
// A schema file declares one or more tables:
//
//	table: Bacon: columns: [
//		{name: "integer_column", type: "integer"},
//		{name: "string_column", type: "string"},
//		{name: "boolean_column", type: "boolean"},
//	]
//
// Types are given by name or by numeric tag. Tables and columns keep their
// declaration order.
package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/chaindb/internal/codec"
	"github.com/roach88/chaindb/internal/ir"
)

// TableSchema is one compiled table declaration.
type TableSchema struct {
	Name    string                `json:"name"`
	Columns []ir.ColumnDefinition `json:"columns"`
}

// Args renders the schema as Database.createTable arguments.
func (s TableSchema) Args() ir.IRObject {
	cols := make(ir.IRArray, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = ir.IRObject{
			"name": ir.IRString(c.Name.Text()),
			"type": ir.IRString(c.Type.String()),
		}
	}
	return ir.IRObject{
		"name":    ir.IRString(s.Name),
		"columns": cols,
	}
}

// CompileTable parses one table value. The table name is the value's
// last path label:
//
//	v := ctx.CompileString(`table: Bacon: columns: [...]`)
//	schema, err := CompileTable(v.LookupPath(cue.ParsePath("table.Bacon")))
func CompileTable(v cue.Value) (*TableSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := &TableSchema{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		schema.Name = labels[len(labels)-1].String()
		if name, err := strconv.Unquote(schema.Name); err == nil {
			schema.Name = name
		}
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{
			Field:   "columns",
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := colsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		col, err := compileColumn(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		schema.Columns = append(schema.Columns, col)
	}
	if len(schema.Columns) == 0 {
		return nil, &CompileError{
			Field:   "columns",
			Message: "at least one column is required",
			Pos:     colsVal.Pos(),
		}
	}
	return schema, nil
}

func compileColumn(v cue.Value, i int) (ir.ColumnDefinition, error) {
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return ir.ColumnDefinition{}, &CompileError{
			Field:   fmt.Sprintf("columns[%d].name", i),
			Message: "column name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return ir.ColumnDefinition{}, formatCUEError(err)
	}
	if len(name) > ir.WordSize {
		return ir.ColumnDefinition{}, &CompileError{
			Field:   fmt.Sprintf("columns[%d].name", i),
			Message: fmt.Sprintf("column name %q is longer than %d bytes", name, ir.WordSize),
			Pos:     nameVal.Pos(),
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	tag, err := compileType(typeVal)
	if err != nil {
		return ir.ColumnDefinition{}, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("column %q: %v", name, err),
			Pos:     typeVal.Pos(),
		}
	}
	return ir.ColumnDefinition{Type: tag, Name: ir.NameWord(name)}, nil
}

func compileType(v cue.Value) (ir.ColumnType, error) {
	if !v.Exists() {
		return 0, fmt.Errorf("type is required")
	}
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return 0, err
		}
		return codec.ParseType(s)
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		if n < 0 || n > 255 {
			return 0, fmt.Errorf("type tag %d out of range", n)
		}
		tag := ir.ColumnType(n)
		return tag, codec.CheckType(tag)
	default:
		return 0, fmt.Errorf("type must be a name or a numeric tag, got %v", v.IncompleteKind())
	}
}

// CompileError is a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
