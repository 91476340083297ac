package engine

import (
	"maps"
	"math"
	"slices"

	"github.com/roach88/chaindb/internal/database"
	"github.com/roach88/chaindb/internal/ir"
)

// Action names understood by the engine.
const (
	ActionMint      ir.ActionRef = "Token.mint"
	ActionTransfer  ir.ActionRef = "Token.transfer"
	ActionApprove   ir.ActionRef = "Token.approve"
	ActionBalanceOf ir.ActionRef = "Token.balanceOf"
	ActionAllowance ir.ActionRef = "Token.allowance"

	ActionUpdatePrice ir.ActionRef = "Factory.updatePrice"
	ActionCreate      ir.ActionRef = "Factory.create"
	ActionCreateFrom  ir.ActionRef = "Factory.createFrom"
	ActionPrice       ir.ActionRef = "Factory.price"
	ActionDatabases   ir.ActionRef = "Factory.databases"

	ActionCreateTable   ir.ActionRef = "Database.createTable"
	ActionDropTable     ir.ActionRef = "Database.dropTable"
	ActionShowTables    ir.ActionRef = "Database.showTables"
	ActionDescribeTable ir.ActionRef = "Database.describeTable"
	ActionInsert        ir.ActionRef = "Database.insert"
	ActionDeleteDirect  ir.ActionRef = "Database.deleteDirect"
	ActionUpdateDirect  ir.ActionRef = "Database.updateDirect"
	ActionSelectAll     ir.ActionRef = "Database.selectAll"
)

// action is one entry of the dispatch table.
type action struct {
	mutating bool // journaled and stamped with a fresh seq
	database bool // resolves Call.Database before running
	run      func(w *world, c *callContext) (ir.IRObject, error)
}

var actions = map[ir.ActionRef]action{
	ActionMint:      {mutating: true, run: tokenMint},
	ActionTransfer:  {mutating: true, run: tokenTransfer},
	ActionApprove:   {mutating: true, run: tokenApprove},
	ActionBalanceOf: {run: tokenBalanceOf},
	ActionAllowance: {run: tokenAllowance},

	ActionUpdatePrice: {mutating: true, run: factoryUpdatePrice},
	ActionCreate:      {mutating: true, run: factoryCreate},
	ActionCreateFrom:  {mutating: true, run: factoryCreateFrom},
	ActionPrice:       {run: factoryPrice},
	ActionDatabases:   {run: factoryDatabases},

	ActionCreateTable:   {mutating: true, database: true, run: dbCreateTable},
	ActionDropTable:     {mutating: true, database: true, run: dbDropTable},
	ActionShowTables:    {database: true, run: dbShowTables},
	ActionDescribeTable: {database: true, run: dbDescribeTable},
	ActionInsert:        {mutating: true, database: true, run: dbInsert},
	ActionDeleteDirect:  {mutating: true, database: true, run: dbDeleteDirect},
	ActionUpdateDirect:  {mutating: true, database: true, run: dbUpdateDirect},
	ActionSelectAll:     {database: true, run: dbSelectAll},
}

// Actions returns every action name in sorted order.
func Actions() []ir.ActionRef {
	return slices.Sorted(maps.Keys(actions))
}

// IsMutating reports whether the named action changes state. Unknown
// actions report false.
func IsMutating(name ir.ActionRef) bool {
	return actions[name].mutating
}

// Token

func tokenMint(w *world, c *callContext) (ir.IRObject, error) {
	to, err := argAddress(c.args, "to")
	if err != nil {
		return nil, err
	}
	amount, err := argUint(c.args, "amount")
	if err != nil {
		return nil, err
	}
	if err := c.chargeWords(2); err != nil {
		return nil, err
	}
	return nil, w.ledger.Mint(c.caller, to, amount)
}

func tokenTransfer(w *world, c *callContext) (ir.IRObject, error) {
	to, err := argAddress(c.args, "to")
	if err != nil {
		return nil, err
	}
	amount, err := argUint(c.args, "amount")
	if err != nil {
		return nil, err
	}
	if err := c.chargeWords(2); err != nil {
		return nil, err
	}
	return nil, w.ledger.Transfer(c.caller, to, amount)
}

func tokenApprove(w *world, c *callContext) (ir.IRObject, error) {
	spender, err := argAddress(c.args, "spender")
	if err != nil {
		return nil, err
	}
	amount, err := argUint(c.args, "amount")
	if err != nil {
		return nil, err
	}
	if err := c.chargeWords(1); err != nil {
		return nil, err
	}
	return nil, w.ledger.Approve(c.caller, spender, amount)
}

func tokenBalanceOf(w *world, c *callContext) (ir.IRObject, error) {
	holder, err := argAddress(c.args, "holder")
	if err != nil {
		return nil, err
	}
	if err := c.chargeRows(1); err != nil {
		return nil, err
	}
	return ir.IRObject{"balance": ir.UintValue(w.ledger.BalanceOf(holder))}, nil
}

func tokenAllowance(w *world, c *callContext) (ir.IRObject, error) {
	owner, err := argAddress(c.args, "owner")
	if err != nil {
		return nil, err
	}
	spender, err := argAddress(c.args, "spender")
	if err != nil {
		return nil, err
	}
	if err := c.chargeRows(1); err != nil {
		return nil, err
	}
	return ir.IRObject{"allowance": ir.UintValue(w.ledger.Allowance(owner, spender))}, nil
}

// Factory

func factoryUpdatePrice(w *world, c *callContext) (ir.IRObject, error) {
	price, err := argUint(c.args, "price")
	if err != nil {
		return nil, err
	}
	if err := c.chargeWords(1); err != nil {
		return nil, err
	}
	return nil, w.factory.UpdatePrice(c.caller, price)
}

func factoryCreate(w *world, c *callContext) (ir.IRObject, error) {
	name, err := argName(c.args, "name")
	if err != nil {
		return nil, err
	}
	return createDatabase(w, c, name, c.caller)
}

func factoryCreateFrom(w *world, c *callContext) (ir.IRObject, error) {
	name, err := argName(c.args, "name")
	if err != nil {
		return nil, err
	}
	owner, err := argAddress(c.args, "owner")
	if err != nil {
		return nil, err
	}
	return createDatabase(w, c, name, owner)
}

// createDatabase pays for the name, the owner and the two balances the
// payment touches.
func createDatabase(w *world, c *callContext, name ir.Word, owner ir.Address) (ir.IRObject, error) {
	if err := c.chargeWords(4); err != nil {
		return nil, err
	}
	db, err := w.factory.CreateFrom(c.caller, name, owner)
	if err != nil {
		return nil, err
	}
	return ir.IRObject{"database": ir.IRString(db.ID())}, nil
}

func factoryPrice(w *world, c *callContext) (ir.IRObject, error) {
	if err := c.chargeRows(1); err != nil {
		return nil, err
	}
	return ir.IRObject{"price": ir.UintValue(w.factory.ConfiguredPrice())}, nil
}

func factoryDatabases(w *world, c *callContext) (ir.IRObject, error) {
	list := ir.IRArray{}
	for db := range w.factory.Databases() {
		list = append(list, ir.IRObject{
			"database": ir.IRString(db.ID()),
			"name":     ir.IRString(db.Name().Text()),
			"owner":    ir.IRString(db.Owner().Hex()),
			"policy":   ir.IRString(db.Policy()),
		})
	}
	if err := c.chargeRows(len(list)); err != nil {
		return nil, err
	}
	return ir.IRObject{"databases": list}, nil
}

// Database

func dbCreateTable(w *world, c *callContext) (ir.IRObject, error) {
	name, err := argName(c.args, "name")
	if err != nil {
		return nil, err
	}
	cols, err := argColumns(c.args, "columns")
	if err != nil {
		return nil, err
	}
	if err := c.chargeWords(1 + len(cols)); err != nil {
		return nil, err
	}
	index, err := c.db.CreateTable(c.caller, name, cols)
	if err != nil {
		return nil, err
	}
	return ir.IRObject{"table": ir.UintValue(index)}, nil
}

func dbDropTable(w *world, c *callContext) (ir.IRObject, error) {
	table, err := argUint(c.args, "table")
	if err != nil {
		return nil, err
	}
	if err := c.chargeWords(1); err != nil {
		return nil, err
	}
	return nil, c.db.DropTable(c.caller, table)
}

func dbShowTables(w *world, c *callContext) (ir.IRObject, error) {
	entries, err := c.db.ShowTables(c.caller)
	if err != nil {
		return nil, err
	}
	if err := c.chargeRows(len(entries)); err != nil {
		return nil, err
	}
	list := make(ir.IRArray, len(entries))
	for i, e := range entries {
		list[i] = ir.IRObject{
			"index": ir.UintValue(e.Index),
			"name":  ir.IRString(e.Name.Text()),
		}
	}
	return ir.IRObject{"tables": list}, nil
}

func dbDescribeTable(w *world, c *callContext) (ir.IRObject, error) {
	table, err := argUint(c.args, "table")
	if err != nil {
		return nil, err
	}
	def, err := c.db.DescribeTable(c.caller, table)
	if err != nil {
		return nil, err
	}
	if err := c.chargeRows(1); err != nil {
		return nil, err
	}
	return ir.IRObject{
		"index":     ir.UintValue(def.Index),
		"name":      ir.IRString(def.Name.Text()),
		"row_count": ir.UintValue(def.RowCount),
		"columns":   columnsValue(def.Columns),
	}, nil
}

func dbInsert(w *world, c *callContext) (ir.IRObject, error) {
	table, err := argUint(c.args, "table")
	if err != nil {
		return nil, err
	}
	values, err := argValues(c.args, "values")
	if err != nil {
		return nil, err
	}
	if err := c.chargeWords(len(values)); err != nil {
		return nil, err
	}
	row, err := c.db.Insert(c.caller, table, values)
	if err != nil {
		return nil, err
	}
	return ir.IRObject{"row": ir.UintValue(row)}, nil
}

func dbDeleteDirect(w *world, c *callContext) (ir.IRObject, error) {
	table, err := argUint(c.args, "table")
	if err != nil {
		return nil, err
	}
	row, err := argUint(c.args, "row")
	if err != nil {
		return nil, err
	}
	if err := c.chargeWords(1); err != nil {
		return nil, err
	}
	return nil, c.db.DeleteDirect(c.caller, table, row)
}

func dbUpdateDirect(w *world, c *callContext) (ir.IRObject, error) {
	table, err := argUint(c.args, "table")
	if err != nil {
		return nil, err
	}
	row, err := argUint(c.args, "row")
	if err != nil {
		return nil, err
	}
	columns, err := argInts(c.args, "columns")
	if err != nil {
		return nil, err
	}
	values, err := argValues(c.args, "values")
	if err != nil {
		return nil, err
	}
	if err := c.chargeWords(len(values)); err != nil {
		return nil, err
	}
	return nil, c.db.UpdateDirect(c.caller, table, row, columns, values)
}

func dbSelectAll(w *world, c *callContext) (ir.IRObject, error) {
	table, err := argUint(c.args, "table")
	if err != nil {
		return nil, err
	}
	offset, err := argUintOr(c.args, "offset", 0)
	if err != nil {
		return nil, err
	}
	limit, err := argUintOr(c.args, "limit", math.MaxUint64)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.SelectAll(c.caller, table, offset, limit)
	if err != nil {
		return nil, err
	}
	if err := c.chargeRows(len(rows)); err != nil {
		return nil, err
	}
	return ir.IRObject{"rows": rowsValue(c.db, table, rows)}, nil
}

// rowsValue decodes rows for presentation. A row that cannot be decoded
// is shown as raw words.
func rowsValue(db *database.Database, table uint64, rows []ir.Row) ir.IRArray {
	out := make(ir.IRArray, len(rows))
	for i, r := range rows {
		values, err := db.DecodeRow(table, r)
		if err != nil {
			values = make([]ir.IRValue, len(r.Values))
			for j, w := range r.Values {
				values[j] = ir.IRString(w.Hex())
			}
		}
		out[i] = ir.IRObject{
			"index":  ir.UintValue(r.Index),
			"values": ir.IRArray(values),
		}
	}
	return out
}
