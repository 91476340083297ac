package engine

import (
	"github.com/roach88/chaindb/internal/database"
	"github.com/roach88/chaindb/internal/factory"
	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/token"
)

// world is the state the engine executes calls against: the token ledger,
// the factory and every database it created. All of them emit into one
// recorder, which the engine drains after each call.
//
// Only the Run loop (or Restore, before Run starts) touches a world.
type world struct {
	events  *database.Recorder
	ledger  *token.Ledger
	factory *factory.Factory
}

func newWorld(cfg Config) *world {
	rec := &database.Recorder{}
	ledger := token.NewLedger(cfg.Admin, rec)
	f := factory.New(factory.Config{
		Address:  cfg.FactoryAddress,
		Admin:    cfg.Admin,
		Treasury: cfg.Treasury,
		Price:    cfg.Price,
		Policy:   cfg.Policy,
	}, ledger, rec)
	return &world{events: rec, ledger: ledger, factory: f}
}

// callContext is what an action sees of the call it serves.
type callContext struct {
	caller ir.Address
	args   ir.IRObject
	db     *database.Database // set for actions that target a database
	gas    *GasMeter
	sched  GasSchedule
}

// chargeWords pays for n words about to be written. Call before mutating.
func (c *callContext) chargeWords(n int) error {
	return c.gas.Charge(int64(n)*c.sched.PerWord, "write")
}

// chargeRows pays for n rows a read returns.
func (c *callContext) chargeRows(n int) error {
	return c.gas.Charge(int64(n)*c.sched.PerRow, "read")
}

// run executes one action. On failure the recorded events are discarded
// and nil result and events are returned.
func (w *world) run(act action, inv ir.Invocation, sched GasSchedule) (ir.IRObject, []ir.Event, int64, error) {
	w.events.Reset()
	c := &callContext{
		caller: inv.Caller,
		args:   inv.Args,
		gas:    NewGasMeter(inv.GasLimit),
		sched:  sched,
	}
	if err := c.gas.Charge(sched.Base, "base"); err != nil {
		return nil, nil, c.gas.Used(), err
	}
	if act.database {
		db, err := w.factory.Get(inv.Database)
		if err != nil {
			return nil, nil, c.gas.Used(), err
		}
		c.db = db
	}

	result, err := act.run(w, c)
	if err != nil {
		w.events.Reset()
		return nil, nil, c.gas.Used(), err
	}
	if result == nil {
		result = ir.IRObject{}
	}
	return result, w.events.Events(), c.gas.Used(), nil
}
