package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/chaindb/internal/database"
	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/journal"
)

// Config fixes the world an engine executes against.
type Config struct {
	Admin          ir.Address      // token admin and factory admin
	FactoryAddress ir.Address      // spender identity the factory charges through
	Treasury       ir.Address      // receives creation payments
	Price          uint64          // initial price of one database
	Policy         database.Policy // access policy of new databases
	Gas            GasSchedule
}

// Call is one request to the engine.
type Call struct {
	Action   ir.ActionRef
	Database string // target database ID, for Database.* actions
	Caller   ir.Address
	Args     ir.IRObject
	GasLimit int64 // 0 uses the schedule's limit
}

// Receipt is the outcome of a call: the invocation as it was stamped and
// its completion. Journaled is true when a mutating call was written to
// the journal.
type Receipt struct {
	Invocation ir.Invocation `json:"invocation"`
	Completion ir.Completion `json:"completion"`
	Journaled  bool          `json:"journaled"`
}

// Succeeded reports whether the call committed.
func (r Receipt) Succeeded() bool {
	return r.Completion.OutputCase == ir.OutputSuccess
}

// Engine is the single-writer execution loop.
//
// Callers submit work through Execute from any goroutine; Run executes it
// one call at a time in submission order. Mutating calls get a fresh seq
// from the clock and are journaled (invocation, completion and events in
// one transaction) before their caller is answered. Reads run at the
// current seq and leave no trace.
//
// A failed call changes nothing and emits no events, but a failed mutating
// call is still journaled with its error code as the output case.
//
// If a journal write fails the engine halts: the caller and every call
// after it get ErrHalted.
//
// Thread-safety model:
//   - Execute, Stop: safe from any goroutine
//   - Run: exactly one goroutine
//   - Restore: before Run
type Engine struct {
	cfg      Config
	journal  *journal.Journal // nil runs in memory only
	clock    *Clock
	queue    *requestQueue
	sessions SessionGenerator
	session  string
	world    *world
	running  atomic.Bool
	halted   atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the engine's clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSessionGenerator replaces the UUIDv7 session generator.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(e *Engine) {
		e.sessions = g
	}
}

// New creates an engine over a fresh world. j may be nil for an engine
// that keeps nothing. A zero gas schedule is replaced by the default.
func New(cfg Config, j *journal.Journal, opts ...Option) *Engine {
	if cfg.Gas == (GasSchedule{}) {
		cfg.Gas = DefaultGasSchedule()
	}
	if cfg.Policy == "" {
		cfg.Policy = database.PolicyOpen
	}
	e := &Engine{
		cfg:      cfg,
		journal:  j,
		clock:    NewClock(),
		queue:    newRequestQueue(),
		sessions: UUIDv7Generator{},
		world:    newWorld(cfg),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.session = e.sessions.Generate()
	return e
}

// Session returns the token stamped on this engine's invocations.
func (e *Engine) Session() string {
	return e.session
}

// Seq returns the seq of the last mutating call.
func (e *Engine) Seq() int64 {
	return e.clock.Current()
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// QueueLen returns the number of calls waiting for the Run loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Execute submits call and waits for its receipt.
//
// A call that fails inside the world returns both its receipt and the
// *ir.Error that failed it. Unknown actions fail with ir.ErrUnknownAction
// and an empty receipt. If ctx ends first Execute returns ctx.Err(), but a
// call already queued still runs.
func (e *Engine) Execute(ctx context.Context, call Call) (Receipt, error) {
	r := request{call: call, reply: make(chan response, 1)}
	if !e.queue.Enqueue(r) {
		if e.halted.Load() {
			return Receipt{}, ErrHalted
		}
		return Receipt{}, ErrStopped
	}
	select {
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	case resp := <-r.reply:
		return resp.receipt, resp.err
	}
}

// Run starts the single-writer loop. Blocks until ctx is cancelled or
// Stop is called; calls still queued at that point fail with ErrStopped.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	slog.Info("engine starting", "session", e.session, "seq", e.clock.Current())

	for {
		if r, ok := e.queue.TryDequeue(); ok {
			receipt, err := e.process(ctx, r.call)
			r.reply <- response{receipt: receipt, err: err}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			failPending(e.queue.Close(), ErrStopped)
			return ctx.Err()

		case _, ok := <-e.queue.Wait():
			if !ok {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop shuts the engine down. Run returns once the call in progress, if
// any, has finished.
func (e *Engine) Stop() {
	failPending(e.queue.Close(), ErrStopped)
}

// Halted reports whether a journal write failure has stopped the engine.
func (e *Engine) Halted() bool {
	return e.halted.Load()
}

func failPending(pending []request, err error) {
	for _, r := range pending {
		r.reply <- response{err: err}
	}
}

// process executes one call. Called only from the Run loop.
func (e *Engine) process(ctx context.Context, call Call) (Receipt, error) {
	act, ok := actions[call.Action]
	if !ok {
		slog.Warn("unknown action", "action", call.Action)
		return Receipt{}, ir.Errorf(ir.ErrUnknownAction, "unknown action %q", call.Action).
			With("action", string(call.Action))
	}
	if err := checkText(call.Args); err != nil {
		return Receipt{}, err
	}
	if !act.mutating {
		return e.apply(call, act, e.clock.Current())
	}

	seq := e.clock.Next()
	receipt, callErr := e.apply(call, act, seq)
	if receipt.Invocation.ID == "" || e.journal == nil {
		return receipt, callErr
	}

	inserted, err := e.journal.WriteCall(ctx, receipt.Invocation, receipt.Completion)
	if err != nil {
		slog.Error("journal write failed",
			"action", call.Action,
			"seq", seq,
			"invocation", receipt.Invocation.ID,
			"error", err,
		)
		e.halted.Store(true)
		failPending(e.queue.Close(), ErrHalted)
		receipt.Journaled = false
		return receipt, fmt.Errorf("journal call at seq %d: %w: %w", seq, ErrHalted, err)
	}
	receipt.Journaled = inserted
	slog.Info("call journaled",
		"action", call.Action,
		"seq", seq,
		"output", receipt.Completion.OutputCase,
		"events", len(receipt.Completion.Events),
		"gas", receipt.Completion.GasUsed,
	)
	return receipt, callErr
}

// apply runs call against the world at seq and builds its records. The
// returned error is the call's own failure; the receipt is filled in
// either way unless the arguments cannot be hashed.
func (e *Engine) apply(call Call, act action, seq int64) (Receipt, error) {
	args := call.Args
	if args == nil {
		args = ir.IRObject{}
	}
	limit := call.GasLimit
	if limit <= 0 {
		limit = e.cfg.Gas.Limit
	}

	inv := ir.Invocation{
		Session:       e.session,
		Action:        call.Action,
		Database:      call.Database,
		Caller:        call.Caller,
		Args:          args,
		Seq:           seq,
		GasLimit:      limit,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	id, err := ir.InvocationID(inv.Database, inv.Action, inv.Caller, inv.Args, seq)
	if err != nil {
		return Receipt{}, ir.Errorf(ir.ErrInvalidArgument, "arguments are not canonical: %v", err)
	}
	inv.ID = id

	slog.Debug("executing call",
		"action", call.Action,
		"database", call.Database,
		"caller", call.Caller.Hex(),
		"seq", seq,
	)

	result, events, gasUsed, callErr := e.world.run(act, inv, e.cfg.Gas)
	comp := ir.Completion{
		InvocationID: id,
		OutputCase:   ir.OutputSuccess,
		Result:       result,
		GasUsed:      gasUsed,
		Seq:          seq,
		Events:       events,
	}
	if callErr != nil {
		comp.OutputCase = outputCase(callErr)
		comp.Result = errorResult(callErr)
		comp.Events = []ir.Event{}
		slog.Debug("call failed", "action", call.Action, "seq", seq, "error", callErr)
	}

	comp.ID, err = ir.CompletionID(id, comp.OutputCase, comp.Result, comp.Events, seq)
	if err != nil {
		return Receipt{}, ir.Errorf(ir.ErrInternal, "completion for %s: %v", id, err)
	}
	return Receipt{Invocation: inv, Completion: comp}, callErr
}

func outputCase(err error) string {
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	return string(ir.ErrInternal)
}

// errorResult records a failure in the completion. Only the code, message
// and details are kept, so the result stays deterministic.
func errorResult(err error) ir.IRObject {
	result := ir.IRObject{
		"error":   ir.IRString(outputCase(err)),
		"message": ir.IRString(err.Error()),
	}
	var e *ir.Error
	if !errors.As(err, &e) {
		return result
	}
	result["message"] = ir.IRString(e.Message)
	if len(e.Details) > 0 {
		details := make(ir.IRObject, len(e.Details))
		for k, v := range e.Details {
			details[k] = ir.IRString(v)
		}
		result["details"] = details
	}
	return result
}
