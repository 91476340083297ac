// Package database is the callable surface of one store instance.
//
// A Database owns one schema registry and one row store per table. Every
// method takes the database lock for its whole duration, so calls are atomic
// with respect to each other and index counters advance together with the
// write they belong to.
//
// Mutating methods follow one order: check access, confirm the table is
// active, validate and encode every input, then mutate and emit exactly one
// event. Any failure returns before the mutation step, so a failed call leaves
// no partial state and emits nothing.
package database

import (
	"errors"
	"strconv"
	"sync"

	"github.com/roach88/chaindb/internal/codec"
	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/rows"
	"github.com/roach88/chaindb/internal/schema"
)

// Database is one store instance.
type Database struct {
	mu sync.Mutex

	id     string
	name   ir.Word
	owner  ir.Address
	policy Policy

	registry *schema.Registry
	tables   []*rows.Store // indexed like the registry; dropped tables keep their store
	sink     Sink
}

// Option configures a Database.
type Option func(*Database)

// WithPolicy sets the access policy. The default is PolicyOpen.
func WithPolicy(p Policy) Option {
	return func(d *Database) {
		d.policy = p
	}
}

// WithSink sets the event sink. The default discards events.
func WithSink(s Sink) Option {
	return func(d *Database) {
		d.sink = s
	}
}

// New creates an empty database.
func New(id string, name ir.Word, owner ir.Address, opts ...Option) *Database {
	d := &Database{
		id:       id,
		name:     name,
		owner:    owner,
		policy:   PolicyOpen,
		registry: schema.New(),
		sink:     discard{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ID returns the database identifier.
func (d *Database) ID() string { return d.id }

// Name returns the database name.
func (d *Database) Name() ir.Word { return d.name }

// Owner returns the database owner.
func (d *Database) Owner() ir.Address { return d.owner }

// Policy returns the access policy.
func (d *Database) Policy() Policy { return d.policy }

// CreateTable registers a new table and returns its index.
// Emits TableCreated{index, name}.
func (d *Database) CreateTable(caller ir.Address, name ir.Word, cols []ir.ColumnDefinition) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return 0, err
	}
	index, err := d.registry.Create(name, cols)
	if err != nil {
		return 0, err
	}
	d.tables = append(d.tables, rows.New(len(cols)))

	d.sink.Emit(ir.Event{
		Kind:   ir.EventTableCreated,
		Index:  index,
		Fields: ir.IRObject{"name": ir.IRString(name.Text())},
	})
	return index, nil
}

// DropTable deactivates a table. Its rows become unreachable.
// Emits TableDropped{index}.
func (d *Database) DropTable(caller ir.Address, table uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return err
	}
	if err := d.registry.Drop(table); err != nil {
		return err
	}

	d.sink.Emit(ir.Event{Kind: ir.EventTableDropped, Index: table})
	return nil
}

// ShowTables lists the active tables in ascending index order.
func (d *Database) ShowTables(caller ir.Address) ([]ir.TableEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return nil, err
	}
	out := []ir.TableEntry{}
	for entry := range d.registry.List() {
		out = append(out, entry)
	}
	return out, nil
}

// DescribeTable returns the definition of an active table.
func (d *Database) DescribeTable(caller ir.Address, table uint64) (ir.TableDefinition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return ir.TableDefinition{}, err
	}
	return d.registry.Get(table)
}

// LookupTable resolves a table name to its active index.
func (d *Database) LookupTable(caller ir.Address, name ir.Word) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return 0, err
	}
	index, ok := d.registry.Lookup(name)
	if !ok {
		return 0, ir.Errorf(ir.ErrTableNotFound, "table %q does not exist", name.Text())
	}
	return index, nil
}

// Insert encodes values against the table's columns and appends a row.
// Emits RowCreated{index} with the new row index.
func (d *Database) Insert(caller ir.Address, table uint64, values []ir.IRValue) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return 0, err
	}
	cols, err := d.registry.Columns(table)
	if err != nil {
		return 0, err
	}
	if len(values) != len(cols) {
		return 0, ir.Errorf(ir.ErrSchemaMismatch, "row has %d values, table %d has %d columns", len(values), table, len(cols))
	}

	words := make([]ir.Word, len(values))
	for i, v := range values {
		w, err := encodeColumn(cols, i, v)
		if err != nil {
			return 0, err
		}
		words[i] = w
	}

	index, err := d.tables[table].Insert(words)
	if err != nil {
		return 0, err
	}
	if err := d.registry.AddRows(table, 1); err != nil {
		return 0, err
	}

	d.sink.Emit(ir.Event{Kind: ir.EventRowCreated, Index: index, Fields: tableField(table)})
	return index, nil
}

// DeleteDirect tombstones a live row.
// Emits RowDeleted{index}.
func (d *Database) DeleteDirect(caller ir.Address, table, row uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return err
	}
	if !d.registry.Exists(table) {
		return d.tableNotFound(table)
	}
	if err := d.tables[table].Delete(row); err != nil {
		return err
	}
	if err := d.registry.AddRows(table, -1); err != nil {
		return err
	}

	d.sink.Emit(ir.Event{Kind: ir.EventRowDeleted, Index: row, Fields: tableField(table)})
	return nil
}

// UpdateDirect overwrites the listed columns of a live row; the other
// columns keep their stored words. columns and values pair up by position.
// Emits RowUpdated{index}.
func (d *Database) UpdateDirect(caller ir.Address, table, row uint64, columns []int, values []ir.IRValue) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return err
	}
	cols, err := d.registry.Columns(table)
	if err != nil {
		return err
	}
	store := d.tables[table]

	// Shape first, with placeholder words, so RowNotFound and range errors
	// win over encoding errors.
	if err := store.CheckUpdate(row, columns, make([]ir.Word, len(values))); err != nil {
		return err
	}
	words := make([]ir.Word, len(values))
	for i, v := range values {
		w, err := encodeColumn(cols, columns[i], v)
		if err != nil {
			return err
		}
		words[i] = w
	}

	if err := store.Update(row, columns, words); err != nil {
		return err
	}

	d.sink.Emit(ir.Event{Kind: ir.EventRowUpdated, Index: row, Fields: tableField(table)})
	return nil
}

// SelectAll returns up to limit live rows starting at the offset-th live
// row. Tombstoned rows are never counted or returned.
func (d *Database) SelectAll(caller ir.Address, table, offset, limit uint64) ([]ir.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return nil, err
	}
	if !d.registry.Exists(table) {
		return nil, d.tableNotFound(table)
	}
	return d.tables[table].Select(offset, limit), nil
}

// GetRow returns one live row.
func (d *Database) GetRow(caller ir.Address, table, row uint64) (ir.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authorize(caller); err != nil {
		return ir.Row{}, err
	}
	if !d.registry.Exists(table) {
		return ir.Row{}, d.tableNotFound(table)
	}
	return d.tables[table].Get(row)
}

// DecodeRow decodes a row's words with the column types of an active table.
func (d *Database) DecodeRow(table uint64, row ir.Row) ([]ir.IRValue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cols, err := d.registry.Columns(table)
	if err != nil {
		return nil, err
	}
	if len(row.Values) != len(cols) {
		return nil, ir.Errorf(ir.ErrSchemaMismatch, "row has %d values, table %d has %d columns", len(row.Values), table, len(cols))
	}
	out := make([]ir.IRValue, len(cols))
	for i, col := range cols {
		v, err := codec.Decode(col.Type, row.Values[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *Database) authorize(caller ir.Address) error {
	if !d.policy.Allows(d.owner, caller) {
		return ir.Errorf(ir.ErrUnauthorized, "caller %s may not use database %s", caller.Hex(), d.id).
			With("caller", caller.Hex()).
			With("owner", d.owner.Hex())
	}
	return nil
}

func (d *Database) tableNotFound(table uint64) error {
	return ir.Errorf(ir.ErrTableNotFound, "table %d does not exist", table).With("table", strconv.FormatUint(table, 10))
}

// encodeColumn encodes v for column i. Codec failures surface as
// SchemaMismatch: the value does not fit the table's declared schema.
func encodeColumn(cols []ir.ColumnDefinition, i int, v ir.IRValue) (ir.Word, error) {
	col := cols[i]
	w, err := codec.Encode(col.Type, v)
	if err != nil {
		reason := err.Error()
		var e *ir.Error
		if errors.As(err, &e) {
			reason = e.Message
		}
		return ir.Word{}, ir.Errorf(ir.ErrSchemaMismatch, "column %d (%s %q): %s", i, col.Type, col.Name.Text(), reason).
			With("column", strconv.Itoa(i)).
			With("cause", string(ir.CodeOf(err)))
	}
	return w, nil
}

func tableField(table uint64) ir.IRObject {
	return ir.IRObject{"table": ir.IRInt(table)}
}
