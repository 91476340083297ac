// Package schema keeps the table definitions of one database.
//
// Tables live in an append-only arena: the slot index is the table index,
// assigned from a single counter starting at 0. Dropping a table clears its
// active bit and keeps the slot, so indices stay stable for anyone holding
// one. Names resolve to at most one active table; a dropped table's name can
// be taken again by a new table, which gets a new index.
//
// Registry is not safe for concurrent use. The owning database serializes
// access.
package schema

import (
	"iter"
	"strconv"

	"github.com/roach88/chaindb/internal/codec"
	"github.com/roach88/chaindb/internal/ir"
)

// Registry is the per-database table arena.
type Registry struct {
	tables []ir.TableDefinition
	active map[ir.Word]uint64 // name -> index of the active table holding it
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{active: make(map[ir.Word]uint64)}
}

// Validate checks a prospective table without creating it.
// Create calls it first; the façade calls it to fail before charging gas.
func (r *Registry) Validate(name ir.Word, cols []ir.ColumnDefinition) error {
	if name.IsZero() {
		return ir.Errorf(ir.ErrInvalidName, "table name must not be empty")
	}
	if len(cols) == 0 {
		return ir.Errorf(ir.ErrSchemaMismatch, "table %q must have at least one column", name.Text())
	}
	for i, col := range cols {
		if !codec.Supported(col.Type) {
			return ir.Errorf(ir.ErrUnsupportedType, "column %d (%q) has unsupported type tag %d", i, col.Name.Text(), uint8(col.Type))
		}
		if col.Name.IsZero() {
			return ir.Errorf(ir.ErrInvalidName, "column %d name must not be empty", i)
		}
	}
	if idx, taken := r.active[name]; taken {
		return ir.Errorf(ir.ErrDuplicateTable, "table %q already exists at index %d", name.Text(), idx)
	}
	return nil
}

// Create appends a new active table and returns its index.
func (r *Registry) Create(name ir.Word, cols []ir.ColumnDefinition) (uint64, error) {
	if err := r.Validate(name, cols); err != nil {
		return 0, err
	}

	index := uint64(len(r.tables))
	columns := make([]ir.ColumnDefinition, len(cols))
	copy(columns, cols)

	r.tables = append(r.tables, ir.TableDefinition{
		Index:   index,
		Name:    name,
		Columns: columns,
		Active:  true,
	})
	r.active[name] = index
	return index, nil
}

// Drop deactivates an active table. The slot is kept.
func (r *Registry) Drop(index uint64) error {
	t, err := r.slot(index)
	if err != nil {
		return err
	}
	t.Active = false
	delete(r.active, t.Name)
	return nil
}

// Exists reports whether index names an active table.
func (r *Registry) Exists(index uint64) bool {
	_, err := r.slot(index)
	return err == nil
}

// Lookup resolves a name to the index of the active table holding it.
func (r *Registry) Lookup(name ir.Word) (uint64, bool) {
	idx, ok := r.active[name]
	return idx, ok
}

// Get returns a copy of an active table's definition.
func (r *Registry) Get(index uint64) (ir.TableDefinition, error) {
	t, err := r.slot(index)
	if err != nil {
		return ir.TableDefinition{}, err
	}
	def := *t
	def.Columns = make([]ir.ColumnDefinition, len(t.Columns))
	copy(def.Columns, t.Columns)
	return def, nil
}

// Columns returns the column list of an active table without copying.
// Callers must not modify the result.
func (r *Registry) Columns(index uint64) ([]ir.ColumnDefinition, error) {
	t, err := r.slot(index)
	if err != nil {
		return nil, err
	}
	return t.Columns, nil
}

// AddRows adjusts the live row count of an active table by delta.
func (r *Registry) AddRows(index uint64, delta int64) error {
	t, err := r.slot(index)
	if err != nil {
		return err
	}
	t.RowCount = uint64(int64(t.RowCount) + delta)
	return nil
}

// List yields the active tables in ascending index order. The sequence is
// lazy and can be ranged over again.
func (r *Registry) List() iter.Seq[ir.TableEntry] {
	return func(yield func(ir.TableEntry) bool) {
		for i := range r.tables {
			t := &r.tables[i]
			if !t.Active {
				continue
			}
			if !yield(ir.TableEntry{Index: t.Index, Name: t.Name}) {
				return
			}
		}
	}
}

// Len returns the number of slots ever assigned, dropped ones included.
// It is also the next table index.
func (r *Registry) Len() uint64 {
	return uint64(len(r.tables))
}

func (r *Registry) slot(index uint64) (*ir.TableDefinition, error) {
	if index >= uint64(len(r.tables)) || !r.tables[index].Active {
		return nil, ir.Errorf(ir.ErrTableNotFound, "table %d does not exist", index).With("table", strconv.FormatUint(index, 10))
	}
	return &r.tables[index], nil
}
