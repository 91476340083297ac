// Package rows stores the rows of one table.
//
// Rows live in an arena indexed by row index. Deleting a row sets its
// tombstone and leaves the slot in place, so row indices are assigned from a
// per-table counter and never reused. A sorted list of live row indices backs
// pagination: offsets and limits count live rows only.
//
// Store does not know column types. Callers encode values with the codec and
// check them against the table schema before calling in; Store only enforces
// the row width it was created with.
package rows

import (
	"slices"
	"strconv"

	"github.com/roach88/chaindb/internal/ir"
)

// Store is the row arena of one table.
type Store struct {
	width int
	slots []ir.Row
	live  []uint64 // ascending row indices of live rows
}

// New creates an empty store for rows of width words.
func New(width int) *Store {
	return &Store{width: width}
}

// Width returns the number of words in every row.
func (s *Store) Width() int {
	return s.width
}

// Insert appends a live row and returns its index. The values are copied.
func (s *Store) Insert(values []ir.Word) (uint64, error) {
	if len(values) != s.width {
		return 0, ir.Errorf(ir.ErrSchemaMismatch, "row has %d values, table has %d columns", len(values), s.width)
	}

	index := uint64(len(s.slots))
	row := ir.Row{Index: index, Values: values}
	s.slots = append(s.slots, row.Clone())
	s.live = append(s.live, index)
	return index, nil
}

// Delete tombstones a live row.
func (s *Store) Delete(index uint64) error {
	row, err := s.row(index)
	if err != nil {
		return err
	}
	row.Deleted = true

	pos, _ := slices.BinarySearch(s.live, index)
	s.live = slices.Delete(s.live, pos, pos+1)
	return nil
}

// CheckUpdate validates a partial update without applying it.
func (s *Store) CheckUpdate(index uint64, columns []int, values []ir.Word) error {
	if _, err := s.row(index); err != nil {
		return err
	}
	if len(columns) != len(values) {
		return ir.Errorf(ir.ErrSchemaMismatch, "%d column indices but %d values", len(columns), len(values))
	}
	for _, col := range columns {
		if col < 0 || col >= s.width {
			return ir.Errorf(ir.ErrSchemaMismatch, "column index %d out of range [0, %d)", col, s.width)
		}
	}
	return nil
}

// Update overwrites the listed column slots of a live row. Slots not listed
// keep their words. When a column is listed twice the last value wins.
func (s *Store) Update(index uint64, columns []int, values []ir.Word) error {
	if err := s.CheckUpdate(index, columns, values); err != nil {
		return err
	}
	row := &s.slots[index]
	for i, col := range columns {
		row.Values[col] = values[i]
	}
	return nil
}

// Get returns a copy of a live row.
func (s *Store) Get(index uint64) (ir.Row, error) {
	row, err := s.row(index)
	if err != nil {
		return ir.Row{}, err
	}
	return row.Clone(), nil
}

// Exists reports whether index names a live row.
func (s *Store) Exists(index uint64) bool {
	_, err := s.row(index)
	return err == nil
}

// Select returns up to limit live rows starting at the offset-th live row,
// in ascending row index order. The result is empty, never nil, when offset
// is past the last live row or limit is zero.
func (s *Store) Select(offset, limit uint64) []ir.Row {
	n := uint64(len(s.live))
	if offset >= n || limit == 0 {
		return []ir.Row{}
	}
	end := n
	if limit < n-offset {
		end = offset + limit
	}

	out := make([]ir.Row, 0, end-offset)
	for _, index := range s.live[offset:end] {
		out = append(out, s.slots[index].Clone())
	}
	return out
}

// Live returns the number of live rows.
func (s *Store) Live() uint64 {
	return uint64(len(s.live))
}

// Len returns the number of row slots ever assigned, tombstones included.
func (s *Store) Len() uint64 {
	return uint64(len(s.slots))
}

func (s *Store) row(index uint64) (*ir.Row, error) {
	if index >= uint64(len(s.slots)) || s.slots[index].Deleted {
		return nil, ir.Errorf(ir.ErrRowNotFound, "row %d does not exist", index).With("row", strconv.FormatUint(index, 10))
	}
	return &s.slots[index], nil
}
