package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/journal"
	"github.com/roach88/chaindb/internal/testutil"
)

// Harness is the test execution engine.
// It drives a real engine over an in-memory journal with a fixed session.
type Harness struct {
	engine   *engine.Engine
	cfg      engine.Config
	session  string
	accounts map[string]ir.Address
	aliases  map[ir.Address]string // address -> "@alias"
	dbs      map[string]string     // "$name" -> database ID
	dbNames  map[string]string     // database ID -> "$name"
	logger   *slog.Logger
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger makes the harness log each step to logger. By default steps
// are not logged.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Create fresh engine over an in-memory journal
// 2. Execute setup steps (each must succeed)
// 3. Execute flow steps and check their expect clauses
// 4. Evaluate assertions
// 5. Restore a second engine from the journal and check it agrees
//
// The returned error reports a scenario that could not be executed at all;
// failed expectations are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a context bounding every call.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := testutil.EngineConfig()
	if err := scenario.Config.apply(&cfg); err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}

	h := &Harness{
		cfg:      cfg,
		session:  testutil.NewFixedSessionGenerator(scenario.Session).Generate(),
		accounts: testutil.Accounts(),
		dbs:      make(map[string]string),
		dbNames:  make(map[string]string),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	for alias, hex := range scenario.Accounts {
		addr, err := ir.ParseAddress(hex)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", alias, err)
		}
		h.accounts[alias] = addr
	}
	h.aliases = make(map[ir.Address]string, len(h.accounts))
	for alias, addr := range h.accounts {
		// Two aliases for one address: keep the smaller for stable traces.
		if prev, ok := h.aliases[addr]; !ok || "@"+alias < prev {
			h.aliases[addr] = "@" + alias
		}
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	h.engine = engine.New(cfg, j, engine.WithSessionGenerator(testutil.NewFixedSessionGenerator(h.session)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()
	defer func() {
		h.engine.Stop()
		<-done
	}()

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Harness: h}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	if err := h.verifyReplay(ctx, j); err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
	}

	for alias, id := range h.dbs {
		result.Databases[alias] = id
	}
	return result, nil
}

// executeSetup runs all setup steps. A setup step that does not succeed
// aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		receipt, err := h.execute(ctx, step, result)
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		if !receipt.Succeeded() {
			return fmt.Errorf("setup step %d: %s failed with %s: %s",
				i, step.Action, receipt.Completion.OutputCase, errorMessage(receipt))
		}
		h.logger.Info("setup step completed",
			"step", i,
			"action", step.Action,
			"seq", receipt.Invocation.Seq,
			"gas", receipt.Completion.GasUsed,
		)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Each step:
// 1. Resolves the caller, database and argument aliases
// 2. Submits the call to the engine and waits for its receipt
// 3. Records invocation and completion in the trace
// 4. Checks the receipt against the expect clause (default: Success)
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		receipt, err := h.execute(ctx, step.step(), result)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		expect := step.Expect
		if expect == nil {
			expect = &ExpectClause{Case: ir.OutputSuccess}
		}
		for _, msg := range h.checkExpect(receipt, expect) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"action", step.Invoke,
			"seq", receipt.Invocation.Seq,
			"output_case", receipt.Completion.OutputCase,
			"gas", receipt.Completion.GasUsed,
		)
	}
	return nil
}

// execute makes one call and traces it. Failures of the call itself are
// part of the receipt; the returned error means the call never ran.
func (h *Harness) execute(ctx context.Context, step ActionStep, result *Result) (engine.Receipt, error) {
	call, err := h.call(step)
	if err != nil {
		return engine.Receipt{}, err
	}

	receipt, err := h.engine.Execute(ctx, call)
	if err != nil && receipt.Invocation.ID == "" {
		return engine.Receipt{}, fmt.Errorf("%s: %w", step.Action, err)
	}
	if err != nil && ir.CodeOf(err) == "" {
		// Not a call failure: the journal or the engine itself failed.
		return engine.Receipt{}, fmt.Errorf("%s: %w", step.Action, err)
	}

	inv, comp := receipt.Invocation, receipt.Completion
	if receipt.Succeeded() && (call.Action == engine.ActionCreate || call.Action == engine.ActionCreateFrom) {
		h.bindDatabase(call.Args, comp.Result)
	}

	result.AddInvocationTrace(string(inv.Action), h.dbAlias(inv.Database), h.alias(inv.Caller), h.normalizeObject(inv.Args), inv.Seq)
	result.AddCompletionTrace(comp.OutputCase, h.normalizeObject(comp.Result), h.normalizeEvents(comp.Events), comp.GasUsed, comp.Seq)
	return receipt, nil
}

// call builds the engine call for step.
func (h *Harness) call(step ActionStep) (engine.Call, error) {
	caller := testutil.Admin
	if step.Caller != "" {
		addr, err := testutil.ResolveAddress(h.accounts, step.Caller)
		if err != nil {
			return engine.Call{}, fmt.Errorf("caller: %w", err)
		}
		caller = addr
	}
	db, err := h.resolveDatabase(step.Database)
	if err != nil {
		return engine.Call{}, err
	}
	args, err := h.convertArgs(step.Args)
	if err != nil {
		return engine.Call{}, fmt.Errorf("args: %w", err)
	}
	return engine.Call{
		Action:   ir.ActionRef(step.Action),
		Database: db,
		Caller:   caller,
		Args:     args,
		GasLimit: step.GasLimit,
	}, nil
}

// bindDatabase records the database a successful create made under
// "$<name>" and "$db".
func (h *Harness) bindDatabase(args, result ir.IRObject) {
	id, ok := result.String("database")
	if !ok {
		return
	}
	alias := "$db"
	if name, ok := args.String("name"); ok {
		alias = "$" + name
	}
	h.dbs[alias] = id
	h.dbs["$db"] = id
	h.dbNames[id] = alias
}

func (h *Harness) resolveDatabase(ref string) (string, error) {
	if !strings.HasPrefix(ref, "$") {
		return ref, nil
	}
	id, ok := h.dbs[ref]
	if !ok {
		return "", fmt.Errorf("database %s has not been created", ref)
	}
	return id, nil
}

func (h *Harness) dbAlias(id string) string {
	if alias, ok := h.dbNames[id]; ok {
		return alias
	}
	return id
}

func (h *Harness) alias(addr ir.Address) string {
	if alias, ok := h.aliases[addr]; ok {
		return alias
	}
	return addr.Hex()
}

// convertArgs converts YAML-parsed arguments to an IRObject, resolving
// "@alias" and "$database" references. A nil map yields an empty object.
func (h *Harness) convertArgs(args map[string]interface{}) (ir.IRObject, error) {
	if args == nil {
		return ir.IRObject{}, nil
	}
	// Null is rejected here with a clear message; it would otherwise fail
	// later while hashing the invocation.
	v, err := ir.FromGo(args, false)
	if err != nil {
		return nil, err
	}
	resolved, err := h.resolve(v)
	if err != nil {
		return nil, err
	}
	return resolved.(ir.IRObject), nil
}

func (h *Harness) resolve(v ir.IRValue) (ir.IRValue, error) {
	switch val := v.(type) {
	case ir.IRString:
		s := string(val)
		switch {
		case strings.HasPrefix(s, "@"):
			addr, err := testutil.ResolveAddress(h.accounts, s)
			if err != nil {
				return nil, err
			}
			return ir.IRString(addr.Hex()), nil
		case strings.HasPrefix(s, "$"):
			id, err := h.resolveDatabase(s)
			if err != nil {
				return nil, err
			}
			return ir.IRString(id), nil
		}
		return val, nil
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			r, err := h.resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			r, err := h.resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	}
	return v, nil
}

// normalize is the inverse of resolve: database IDs and known addresses
// become their aliases.
func (h *Harness) normalize(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		s := string(val)
		if alias, ok := h.dbNames[s]; ok {
			return ir.IRString(alias)
		}
		if addr, err := ir.ParseAddress(s); err == nil {
			if alias, ok := h.aliases[addr]; ok {
				return ir.IRString(alias)
			}
		}
		return val
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = h.normalize(elem)
		}
		return out
	case ir.IRObject:
		return h.normalizeObject(val)
	}
	return v
}

func (h *Harness) normalizeObject(obj ir.IRObject) ir.IRObject {
	out := make(ir.IRObject, len(obj))
	for k, v := range obj {
		out[k] = h.normalize(v)
	}
	return out
}

func (h *Harness) normalizeEvents(events []ir.Event) ir.IRArray {
	out := make(ir.IRArray, len(events))
	for i, ev := range events {
		out[i] = h.normalize(ev.Canonical())
	}
	return out
}

// checkExpect compares a receipt with its expect clause and returns one
// message per mismatch.
func (h *Harness) checkExpect(receipt engine.Receipt, expect *ExpectClause) []string {
	comp := receipt.Completion
	var msgs []string

	if comp.OutputCase != expect.Case {
		msg := fmt.Sprintf("expected case %s, got %s", expect.Case, comp.OutputCase)
		if !receipt.Succeeded() {
			msg += ": " + errorMessage(receipt)
		}
		return append(msgs, msg)
	}

	if expect.Result != nil {
		want, err := h.convertArgs(expect.Result)
		if err != nil {
			return append(msgs, fmt.Sprintf("expect.result: %v", err))
		}
		for _, key := range want.SortedKeys() {
			got, ok := comp.Result[key]
			if !ok {
				msgs = append(msgs, fmt.Sprintf("result field %q missing", key))
				continue
			}
			if !irEqual(got, want[key]) {
				msgs = append(msgs, fmt.Sprintf("result field %q = %s, want %s", key, canonicalText(h.normalize(got)), canonicalText(h.normalize(want[key]))))
			}
		}
	}

	if expect.Events != nil {
		kinds := make([]string, len(comp.Events))
		for i, ev := range comp.Events {
			kinds[i] = string(ev.Kind)
		}
		if strings.Join(kinds, ",") != strings.Join(expect.Events, ",") {
			msgs = append(msgs, fmt.Sprintf("events = %v, want %v", kinds, expect.Events))
		}
	}

	if expect.GasUsed != 0 && comp.GasUsed != expect.GasUsed {
		msgs = append(msgs, fmt.Sprintf("gas used = %d, want %d", comp.GasUsed, expect.GasUsed))
	}
	return msgs
}

// read makes a read call for a final_state assertion.
func (h *Harness) read(ctx context.Context, a Assertion) (ir.IRObject, error) {
	call, err := h.call(ActionStep{
		Action:   a.Action,
		Database: a.Database,
		Caller:   a.Caller,
		Args:     a.Args,
	})
	if err != nil {
		return nil, err
	}
	receipt, err := h.engine.Execute(ctx, call)
	if err != nil {
		return nil, err
	}
	return receipt.Completion.Result, nil
}

// verifyReplay restores a second engine from the journal the scenario
// wrote and checks it reaches the same seq.
func (h *Harness) verifyReplay(ctx context.Context, j *journal.Journal) error {
	replica := engine.New(h.cfg, j, engine.WithSessionGenerator(testutil.NewFixedSessionGenerator(h.session)))
	n, err := replica.Restore(ctx)
	if err != nil {
		return err
	}
	if replica.Seq() != h.engine.Seq() {
		return fmt.Errorf("restored %d calls to seq %d, engine is at seq %d", n, replica.Seq(), h.engine.Seq())
	}
	h.logger.Info("journal replayed", "calls", n, "seq", replica.Seq())
	return nil
}

func errorMessage(receipt engine.Receipt) string {
	if msg, ok := receipt.Completion.Result.String("message"); ok {
		return msg
	}
	return "no message"
}

func irEqual(a, b ir.IRValue) bool {
	ab, errA := ir.MarshalCanonical(a)
	bb, errB := ir.MarshalCanonical(b)
	return errors.Join(errA, errB) == nil && string(ab) == string(bb)
}

func canonicalText(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
