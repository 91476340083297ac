package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chaindb/internal/compiler"
	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

// DatabaseOptions holds flags shared by the db commands.
type DatabaseOptions struct {
	*RootOptions
	Database string // database ID

	Columns []string // create-table: name:type pairs
	Schema  string   // create-table: CUE schema file
	Offset  uint64   // select
	Limit   uint64   // select, 0 means no limit
}

// NewDatabaseCommand creates the db command group.
func NewDatabaseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DatabaseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the tables and rows of one database",
		Long: `Commands that run against one database, named by --database.

Tables and rows are addressed by index. Row values are given as a JSON
array in column order: integers, strings, booleans, and addresses as hex
strings.

Examples:
  chaindb db create-table Bacon --column integer_column:integer --column flag:boolean -d <id>
  chaindb db create-table --schema ./bacon.cue -d <id>
  chaindb db insert 0 '[1, true]' -d <id>
  chaindb db update 0 0 '[1]' '[false]' -d <id>
  chaindb db select 0 --offset 10 --limit 5 -d <id>`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if opts.Database == "" {
				return NewExitError(ExitCommandError, "--database is required")
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.Database, "database", "d", "", "database ID (from factory create)")

	createTable := &cobra.Command{
		Use:   "create-table [name]",
		Short: "Create a table from --column flags or a CUE schema file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateTable(opts, args, cmd)
		},
	}
	createTable.Flags().StringArrayVar(&opts.Columns, "column", nil, "column as name:type (repeatable)")
	createTable.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema file declaring tables")

	selectCmd := &cobra.Command{
		Use:   "select <table>",
		Short: "List the live rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseIndex("table", args[0])
			if err != nil {
				return err
			}
			callArgs := ir.IRObject{"table": table, "offset": ir.UintValue(opts.Offset)}
			if opts.Limit > 0 {
				callArgs["limit"] = ir.UintValue(opts.Limit)
			}
			return dbCall(cmd, opts, engine.ActionSelectAll, callArgs)
		},
	}
	selectCmd.Flags().Uint64Var(&opts.Offset, "offset", 0, "live rows to skip")
	selectCmd.Flags().Uint64Var(&opts.Limit, "limit", 0, "maximum rows to return (0 for all)")

	cmd.AddCommand(
		createTable,
		selectCmd,
		&cobra.Command{
			Use:   "drop-table <table>",
			Short: "Drop a table",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				table, err := parseIndex("table", args[0])
				if err != nil {
					return err
				}
				return dbCall(cmd, opts, engine.ActionDropTable, ir.IRObject{"table": table})
			},
		},
		&cobra.Command{
			Use:   "tables",
			Short: "List the active tables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return dbCall(cmd, opts, engine.ActionShowTables, ir.IRObject{})
			},
		},
		&cobra.Command{
			Use:   "describe <table>",
			Short: "Show a table's columns and row count",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				table, err := parseIndex("table", args[0])
				if err != nil {
					return err
				}
				return dbCall(cmd, opts, engine.ActionDescribeTable, ir.IRObject{"table": table})
			},
		},
		&cobra.Command{
			Use:   "insert <table> <values-json>",
			Short: "Append a row",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				table, err := parseIndex("table", args[0])
				if err != nil {
					return err
				}
				values, err := parseJSONArray("values", args[1])
				if err != nil {
					return err
				}
				return dbCall(cmd, opts, engine.ActionInsert, ir.IRObject{"table": table, "values": values})
			},
		},
		&cobra.Command{
			Use:   "delete <table> <row>",
			Short: "Delete a row",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				table, err := parseIndex("table", args[0])
				if err != nil {
					return err
				}
				row, err := parseIndex("row", args[1])
				if err != nil {
					return err
				}
				return dbCall(cmd, opts, engine.ActionDeleteDirect, ir.IRObject{"table": table, "row": row})
			},
		},
		&cobra.Command{
			Use:   "update <table> <row> <columns-json> <values-json>",
			Short: "Overwrite some columns of a row",
			Args:  cobra.ExactArgs(4),
			RunE: func(cmd *cobra.Command, args []string) error {
				table, err := parseIndex("table", args[0])
				if err != nil {
					return err
				}
				row, err := parseIndex("row", args[1])
				if err != nil {
					return err
				}
				columns, err := parseJSONArray("columns", args[2])
				if err != nil {
					return err
				}
				values, err := parseJSONArray("values", args[3])
				if err != nil {
					return err
				}
				return dbCall(cmd, opts, engine.ActionUpdateDirect, ir.IRObject{
					"table":   table,
					"row":     row,
					"columns": columns,
					"values":  values,
				})
			},
		},
	)
	return cmd
}

// dbCall makes one call against --database.
func dbCall(cmd *cobra.Command, opts *DatabaseOptions, action ir.ActionRef, args ir.IRObject) error {
	return withInstance(cmd, opts.RootOptions, func(in *instance, caller ir.Address) error {
		_, err := in.execute(cmd, opts.RootOptions, engine.Call{
			Action:   action,
			Database: opts.Database,
			Caller:   caller,
			Args:     args,
		})
		return err
	})
}

func runCreateTable(opts *DatabaseOptions, args []string, cmd *cobra.Command) error {
	var tables []compiler.TableSchema
	switch {
	case opts.Schema != "" && len(opts.Columns) > 0:
		return NewExitError(ExitCommandError, "--schema and --column are mutually exclusive")
	case opts.Schema != "":
		loaded, err := compiler.LoadFile(opts.Schema)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compile schema", err)
		}
		tables = loaded
		if len(args) == 1 {
			tables = nil
			for _, t := range loaded {
				if t.Name == args[0] {
					tables = append(tables, t)
				}
			}
			if len(tables) == 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("table %q is not declared in %s", args[0], opts.Schema))
			}
		}
	default:
		if len(args) != 1 {
			return NewExitError(ExitCommandError, "a table name is required with --column")
		}
		table, err := parseColumns(args[0], opts.Columns)
		if err != nil {
			return err
		}
		tables = []compiler.TableSchema{table}
	}

	return withInstance(cmd, opts.RootOptions, func(in *instance, caller ir.Address) error {
		for _, t := range tables {
			_, err := in.execute(cmd, opts.RootOptions, engine.Call{
				Action:   engine.ActionCreateTable,
				Database: opts.Database,
				Caller:   caller,
				Args:     t.Args(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// parseColumns builds a table from name:type flags and runs the same
// checks a schema file gets.
func parseColumns(name string, defs []string) (compiler.TableSchema, error) {
	if len(defs) == 0 {
		return compiler.TableSchema{}, NewExitError(ExitCommandError, "at least one --column is required")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "table: %s: columns: [\n", strconv.Quote(name))
	for _, def := range defs {
		colName, colType, ok := strings.Cut(def, ":")
		if !ok || colName == "" || colType == "" {
			return compiler.TableSchema{}, NewExitError(ExitCommandError,
				fmt.Sprintf("column %q must be name:type", def))
		}
		typ := strconv.Quote(colType)
		if _, err := strconv.ParseUint(colType, 10, 8); err == nil {
			typ = colType
		}
		fmt.Fprintf(&b, "\t{name: %s, type: %s},\n", strconv.Quote(colName), typ)
	}
	b.WriteString("]\n")

	tables, err := compiler.LoadSource([]byte(b.String()), "--column")
	if err != nil {
		return compiler.TableSchema{}, WrapExitError(ExitCommandError, "invalid columns", err)
	}
	return tables[0], nil
}

// parseIndex reads a table or row index.
func parseIndex(name, s string) (ir.IRValue, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s must be an unsigned integer: %s", name, s))
	}
	return ir.UintValue(n), nil
}

// parseJSONArray reads a JSON array argument into IR values. Floats and
// nulls are rejected.
func parseJSONArray(name, s string) (ir.IRArray, error) {
	v, err := ir.UnmarshalIRValue([]byte(s))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s JSON", name), err)
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s must be a JSON array", name))
	}
	return arr, nil
}
