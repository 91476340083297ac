package ir

import (
	"encoding/json"
	"fmt"
)

// ColumnType is the tag selecting the encode/decode rule for a column.
// The numeric values are part of the fixed storage layout and never change.
type ColumnType uint8

const (
	ColumnInteger  ColumnType = 0
	ColumnUnsigned ColumnType = 1
	ColumnString   ColumnType = 2
	ColumnAddress  ColumnType = 3
	// 4 and 5 are unassigned.
	ColumnBoolean  ColumnType = 6
)

var columnTypeNames = map[ColumnType]string{
	ColumnInteger:  "integer",
	ColumnUnsigned: "unsigned",
	ColumnString:   "string",
	ColumnAddress:  "address",
	ColumnBoolean:  "boolean",
}

// String returns the lowercase type name, or "type(N)" for unknown tags.
func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ColumnDefinition is one column of a table. Immutable once its table exists.
type ColumnDefinition struct {
	Type ColumnType `json:"type"`
	Name Word       `json:"name"`
}

// TableDefinition describes one table slot in a database.
// Slots are never removed: a dropped table keeps its index with Active=false.
type TableDefinition struct {
	Index    uint64             `json:"index"`
	Name     Word               `json:"name"`
	Columns  []ColumnDefinition `json:"columns"`
	RowCount uint64             `json:"row_count"` // live rows only
	Active   bool               `json:"active"`
}

// TableEntry is one element of the active-table listing.
type TableEntry struct {
	Index uint64 `json:"index"`
	Name  Word   `json:"name"`
}

// Row is one row slot of a table. Deleted rows keep their slot and index.
type Row struct {
	Index   uint64 `json:"index"`
	Values  []Word `json:"values"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored words.
func (r Row) Clone() Row {
	values := make([]Word, len(r.Values))
	copy(values, r.Values)
	return Row{Index: r.Index, Values: values, Deleted: r.Deleted}
}

// EventKind names a lifecycle event.
type EventKind string

const (
	EventTableCreated EventKind = "TableCreated"
	EventTableDropped EventKind = "TableDropped"
	EventRowCreated   EventKind = "RowCreated"
	EventRowDeleted   EventKind = "RowDeleted"
	EventRowUpdated   EventKind = "RowUpdated"

	EventDatabaseCreated    EventKind = "DatabaseCreated"
	EventCreatePriceUpdated EventKind = "CreateDatabasePriceUpdated"
	EventTransfer           EventKind = "Transfer"
	EventApproval           EventKind = "Approval"
)

// Event is the structured record emitted for every successful mutation:
// the kind, the subject index, and auxiliary fields.
type Event struct {
	Kind   EventKind `json:"kind"`
	Index  uint64    `json:"index"`
	Fields IRObject  `json:"fields,omitempty"`
}

// Canonical returns the event as an IRObject for hashing and golden traces.
func (e Event) Canonical() IRObject {
	obj := IRObject{
		"kind":  IRString(e.Kind),
		"index": IRInt(e.Index),
	}
	if len(e.Fields) > 0 {
		obj["fields"] = e.Fields
	}
	return obj
}

// ActionRef is a typed reference to an engine action.
// Format: "Component.action", e.g. "Database.insert".
type ActionRef string

// OutputSuccess is the output case of a call that committed.
// Failed calls use the error code as their output case.
const OutputSuccess = "Success"

// Invocation is the journal record of one mutating call.
type Invocation struct {
	ID            string    `json:"id"` // Content-addressed hash
	Session       string    `json:"session"`
	Action        ActionRef `json:"action"`
	Database      string    `json:"database,omitempty"`
	Caller        Address   `json:"caller"`
	Args          IRObject  `json:"args"`
	Seq           int64     `json:"seq"` // Logical clock
	GasLimit      int64     `json:"gas_limit"`
	EngineVersion string    `json:"engine_version"`
	IRVersion     string    `json:"ir_version"`
}

// Completion is the journal record of a call's outcome.
type Completion struct {
	ID           string   `json:"id"` // Content-addressed hash
	InvocationID string   `json:"invocation_id"`
	OutputCase   string   `json:"output_case"` // OutputSuccess or an ErrorCode
	Result       IRObject `json:"result"`
	GasUsed      int64    `json:"gas_used"`
	Seq          int64    `json:"seq"`
	Events       []Event  `json:"events"`
}

// MarshalJSON keeps Events non-null so journal dumps are stable.
func (c Completion) MarshalJSON() ([]byte, error) {
	type alias Completion
	out := alias(c)
	if out.Events == nil {
		out.Events = []Event{}
	}
	if out.Result == nil {
		out.Result = IRObject{}
	}
	return json.Marshal(out)
}
