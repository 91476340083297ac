package compiler

import (
	"fmt"

	"github.com/roach88/chaindb/internal/codec"
	"github.com/roach88/chaindb/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrTableNameEmpty    = "E101" // table name is required
	ErrTableNoColumns    = "E102" // at least one column required
	ErrNameTooLong       = "E103" // name would be truncated to a word
	ErrUnsupportedType   = "E104" // unknown column type tag
	ErrDuplicateColumn   = "E105" // two columns share a name
	ErrColumnNameEmpty   = "E106" // column name is required
)

// ValidationError is one problem found in a compiled schema.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a schema the registry would accept without surprises.
// Returns all errors found (does not fail-fast).
func Validate(s TableSchema) []ValidationError {
	var errs []ValidationError

	switch {
	case s.Name == "":
		errs = append(errs, ValidationError{Field: "name", Message: "table name is required", Code: ErrTableNameEmpty})
	case len(s.Name) > ir.WordSize:
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("table name %q is longer than %d bytes", s.Name, ir.WordSize),
			Code:    ErrNameTooLong,
		})
	}

	if len(s.Columns) == 0 {
		errs = append(errs, ValidationError{Field: "columns", Message: "at least one column is required", Code: ErrTableNoColumns})
	}

	seen := make(map[ir.Word]int)
	for i, col := range s.Columns {
		field := fmt.Sprintf("columns[%d]", i)
		if col.Name.IsZero() {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "column name is required", Code: ErrColumnNameEmpty})
		} else if prev, ok := seen[col.Name]; ok {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("column %q duplicates columns[%d]", col.Name.Text(), prev),
				Code:    ErrDuplicateColumn,
			})
		} else {
			seen[col.Name] = i
		}
		if !codec.Supported(col.Type) {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unsupported column type tag %d", uint8(col.Type)),
				Code:    ErrUnsupportedType,
			})
		}
	}
	return errs
}
