// Package token is the fungible token ledger that pays for new databases.
//
// The ledger keeps balances and allowances in memory and emits Transfer and
// Approval events to a database.Sink. It is not safe for concurrent use; the
// engine serializes calls.
package token

import (
	"math"
	"strconv"

	"github.com/roach88/chaindb/internal/database"
	"github.com/roach88/chaindb/internal/ir"
)

type allowanceKey struct {
	holder  ir.Address
	spender ir.Address
}

// Ledger holds balances and allowances.
type Ledger struct {
	admin      ir.Address
	supply     uint64
	balances   map[ir.Address]uint64
	allowances map[allowanceKey]uint64
	sink       database.Sink
}

// NewLedger creates an empty ledger. Only admin may mint.
func NewLedger(admin ir.Address, sink database.Sink) *Ledger {
	return &Ledger{
		admin:      admin,
		balances:   make(map[ir.Address]uint64),
		allowances: make(map[allowanceKey]uint64),
		sink:       sink,
	}
}

// Admin returns the minting address.
func (l *Ledger) Admin() ir.Address { return l.admin }

// TotalSupply returns the number of tokens minted.
func (l *Ledger) TotalSupply() uint64 { return l.supply }

// BalanceOf returns the balance of holder.
func (l *Ledger) BalanceOf(holder ir.Address) uint64 {
	return l.balances[holder]
}

// Allowance returns how much spender may still move out of holder's balance.
func (l *Ledger) Allowance(holder, spender ir.Address) uint64 {
	return l.allowances[allowanceKey{holder, spender}]
}

// Mint creates amount tokens for to. Emits Transfer from the zero address.
func (l *Ledger) Mint(caller, to ir.Address, amount uint64) error {
	if caller != l.admin {
		return ir.Errorf(ir.ErrUnauthorized, "only %s may mint", l.admin.Hex())
	}
	if to.IsZero() {
		return ir.Errorf(ir.ErrInvalidArgument, "cannot mint to the zero address")
	}
	if amount > math.MaxUint64-l.supply {
		return ir.Errorf(ir.ErrInvalidArgument, "mint of %d overflows total supply", amount)
	}
	l.supply += amount
	l.balances[to] += amount
	l.emitTransfer(ir.Address{}, to, amount)
	return nil
}

// Transfer moves amount from caller to to. Emits Transfer.
func (l *Ledger) Transfer(caller, to ir.Address, amount uint64) error {
	if err := l.checkBalance(caller, to, amount); err != nil {
		return err
	}
	l.move(caller, to, amount)
	return nil
}

// Approve sets spender's allowance over caller's balance. Emits Approval.
func (l *Ledger) Approve(caller, spender ir.Address, amount uint64) error {
	if spender.IsZero() {
		return ir.Errorf(ir.ErrInvalidArgument, "cannot approve the zero address")
	}
	l.allowances[allowanceKey{caller, spender}] = amount
	l.sink.Emit(ir.Event{
		Kind: ir.EventApproval,
		Fields: ir.IRObject{
			"owner":   ir.IRString(caller.Hex()),
			"spender": ir.IRString(spender.Hex()),
			"value":   ir.UintValue(amount),
		},
	})
	return nil
}

// TransferFrom moves amount from from to to on spender's allowance.
// The balance is checked before the allowance, so an unfunded payer gets a
// Balance error even without an approval.
func (l *Ledger) TransferFrom(spender, from, to ir.Address, amount uint64) error {
	if err := l.checkBalance(from, to, amount); err != nil {
		return err
	}
	key := allowanceKey{from, spender}
	allowed := l.allowances[key]
	if allowed < amount {
		return ir.Errorf(ir.ErrAllowance, "insufficient allowance: %s approved %d for %s, need %d", from.Hex(), allowed, spender.Hex(), amount).
			With("allowance", strconv.FormatUint(allowed, 10)).
			With("needed", strconv.FormatUint(amount, 10))
	}
	if allowed != math.MaxUint64 {
		l.allowances[key] = allowed - amount
	}
	l.move(from, to, amount)
	return nil
}

func (l *Ledger) checkBalance(from, to ir.Address, amount uint64) error {
	if to.IsZero() {
		return ir.Errorf(ir.ErrInvalidArgument, "cannot transfer to the zero address")
	}
	if have := l.balances[from]; have < amount {
		return ir.Errorf(ir.ErrBalance, "insufficient balance: %s has %d, need %d", from.Hex(), have, amount).
			With("balance", strconv.FormatUint(have, 10)).
			With("needed", strconv.FormatUint(amount, 10))
	}
	return nil
}

func (l *Ledger) move(from, to ir.Address, amount uint64) {
	l.balances[from] -= amount
	l.balances[to] += amount
	l.emitTransfer(from, to, amount)
}

func (l *Ledger) emitTransfer(from, to ir.Address, amount uint64) {
	l.sink.Emit(ir.Event{
		Kind: ir.EventTransfer,
		Fields: ir.IRObject{
			"from":  ir.IRString(from.Hex()),
			"to":    ir.IRString(to.Hex()),
			"value": ir.UintValue(amount),
		},
	})
}
