// Package factory provisions new databases.
//
// A database exists only after the factory has checked that its owner does
// not already hold a database of the same name and has collected the
// configured price in tokens. Payment moves from the owner to the treasury
// through the owner's allowance to the factory address, so an owner must
// approve the factory before creating.
package factory

import (
	"iter"
	"math"

	"github.com/roach88/chaindb/internal/database"
	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/token"
)

// Config holds the factory's fixed addresses and initial settings.
type Config struct {
	Address  ir.Address      // spender identity used for TransferFrom
	Admin    ir.Address      // may update the price
	Treasury ir.Address      // receives payments
	Price    uint64          // tokens per database
	Policy   database.Policy // access policy of new databases
}

// PaymentReceipt records one collected creation payment.
type PaymentReceipt struct {
	Payer  ir.Address `json:"payer"`
	Payee  ir.Address `json:"payee"`
	Amount uint64     `json:"amount"`
}

type ownedName struct {
	owner ir.Address
	name  ir.Word
}

// Factory creates databases and keeps the ones it created.
type Factory struct {
	cfg    Config
	price  uint64
	nonce  int64
	ledger *token.Ledger
	sink   database.Sink

	names map[ownedName]string // (owner, name) -> database ID
	dbs   map[string]*database.Database
	order []string // database IDs in creation order
}

// New creates a factory charging through ledger. New databases and the
// factory itself emit events to sink.
func New(cfg Config, ledger *token.Ledger, sink database.Sink) *Factory {
	if cfg.Policy == "" {
		cfg.Policy = database.PolicyOpen
	}
	return &Factory{
		cfg:    cfg,
		price:  cfg.Price,
		ledger: ledger,
		sink:   sink,
		names:  make(map[ownedName]string),
		dbs:    make(map[string]*database.Database),
	}
}

// Address returns the factory's spender identity.
func (f *Factory) Address() ir.Address { return f.cfg.Address }

// ConfiguredPrice returns the current price of one database.
func (f *Factory) ConfiguredPrice() uint64 { return f.price }

// UpdatePrice changes the price. Only the admin may call it.
// Emits CreateDatabasePriceUpdated{price}.
func (f *Factory) UpdatePrice(caller ir.Address, price uint64) error {
	if caller != f.cfg.Admin {
		return ir.Errorf(ir.ErrUnauthorized, "only %s may update the price", f.cfg.Admin.Hex())
	}
	if price > math.MaxInt64 {
		return ir.Errorf(ir.ErrInvalidArgument, "price %d out of range", price)
	}
	f.price = price
	f.sink.Emit(ir.Event{
		Kind:   ir.EventCreatePriceUpdated,
		Fields: ir.IRObject{"price": ir.UintValue(price)},
	})
	return nil
}

// IsNameTaken reports whether owner already holds a database called name.
func (f *Factory) IsNameTaken(owner ir.Address, name ir.Word) bool {
	_, ok := f.names[ownedName{owner, name}]
	return ok
}

// AuthorizeCreation collects the configured price from payer on behalf of
// owner. Ledger errors (Balance, Allowance) are returned unchanged.
func (f *Factory) AuthorizeCreation(payer, owner ir.Address) (PaymentReceipt, error) {
	if owner.IsZero() {
		return PaymentReceipt{}, ir.Errorf(ir.ErrInvalidOwner, "invalid owner address")
	}
	if f.price > 0 {
		if err := f.ledger.TransferFrom(f.cfg.Address, payer, f.cfg.Treasury, f.price); err != nil {
			return PaymentReceipt{}, err
		}
	}
	return PaymentReceipt{Payer: payer, Payee: f.cfg.Treasury, Amount: f.price}, nil
}

// Create provisions a database owned and paid for by caller.
func (f *Factory) Create(caller ir.Address, name ir.Word) (*database.Database, error) {
	return f.CreateFrom(caller, name, caller)
}

// CreateFrom provisions a database for owner. The owner pays. Checks run in
// order: owner, name, payment; nothing is charged for a rejected request.
// Emits DatabaseCreated{name, by, database}.
func (f *Factory) CreateFrom(caller ir.Address, name ir.Word, owner ir.Address) (*database.Database, error) {
	if owner.IsZero() {
		return nil, ir.Errorf(ir.ErrInvalidOwner, "invalid owner address")
	}
	if name.IsZero() {
		return nil, ir.Errorf(ir.ErrInvalidName, "database name must not be empty")
	}
	if f.IsNameTaken(owner, name) {
		return nil, ir.Errorf(ir.ErrDuplicateName, "duplicate database name %q for owner %s", name.Text(), owner.Hex()).
			With("owner", owner.Hex())
	}
	if _, err := f.AuthorizeCreation(owner, owner); err != nil {
		return nil, err
	}

	id := ir.DatabaseID(owner, name, f.nonce)
	f.nonce++
	db := database.New(id, name, owner, database.WithPolicy(f.cfg.Policy), database.WithSink(f.sink))
	f.names[ownedName{owner, name}] = id
	f.dbs[id] = db
	f.order = append(f.order, id)

	f.sink.Emit(ir.Event{
		Kind:  ir.EventDatabaseCreated,
		Index: uint64(len(f.order) - 1),
		Fields: ir.IRObject{
			"name":     ir.IRString(name.Text()),
			"by":       ir.IRString(owner.Hex()),
			"caller":   ir.IRString(caller.Hex()),
			"database": ir.IRString(id),
		},
	})
	return db, nil
}

// Get returns a database by ID.
func (f *Factory) Get(id string) (*database.Database, error) {
	db, ok := f.dbs[id]
	if !ok {
		return nil, ir.Errorf(ir.ErrDatabaseNotFound, "database %s does not exist", id).With("database", id)
	}
	return db, nil
}

// Lookup resolves an owner's database by name.
func (f *Factory) Lookup(owner ir.Address, name ir.Word) (*database.Database, error) {
	id, ok := f.names[ownedName{owner, name}]
	if !ok {
		return nil, ir.Errorf(ir.ErrDatabaseNotFound, "owner %s has no database %q", owner.Hex(), name.Text())
	}
	return f.dbs[id], nil
}

// Databases yields all databases in creation order.
func (f *Factory) Databases() iter.Seq[*database.Database] {
	return func(yield func(*database.Database) bool) {
		for _, id := range f.order {
			if !yield(f.dbs[id]) {
				return
			}
		}
	}
}

// Count returns the number of databases created.
func (f *Factory) Count() int {
	return len(f.order)
}
