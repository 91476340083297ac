package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/chaindb/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type == TraceInvocation {
				fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Action, canonicalText(event.Args))
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks if the trace contains an invocation of action
// whose args include args (subset match).
func assertTraceContains(trace []TraceEvent, action string, args ir.IRObject) error {
	for _, event := range trace {
		if event.Type == TraceInvocation && event.Action == action && matchArgs(event.Args, args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %s", action, canonicalText(args)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, actions []string) error {
	// First position of each expected action, 1-indexed so 0 means absent.
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != TraceInvocation {
			continue
		}
		for _, expected := range actions {
			if event.Action == expected && positions[expected] == 0 {
				positions[expected] = i + 1
			}
		}
	}

	for _, action := range actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(actions); i++ {
		prev, curr := actions[i-1], actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly count times.
func assertTraceCount(trace []TraceEvent, action string, count int) error {
	n := 0
	for _, event := range trace {
		if event.Type == TraceInvocation && event.Action == action {
			n++
		}
	}

	if n != count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", count, action),
			Actual:   fmt.Sprintf("%d occurrences", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares the result of a read call with the expected
// values (subset match).
func assertFinalState(action string, got, want ir.IRObject) error {
	for _, key := range want.SortedKeys() {
		actual, ok := got[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s result field %q to exist", action, key),
				Actual:   fmt.Sprintf("fields present: %v", got.SortedKeys()),
			}
		}
		if !irEqual(actual, want[key]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s result field %q = %s", action, key, canonicalText(want[key])),
				Actual:   fmt.Sprintf("%s result field %q = %s", action, key, canonicalText(actual)),
			}
		}
	}
	return nil
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected ir.IRObject) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists || !irEqual(got, want) {
			return false
		}
	}
	return true
}

// AssertionContext provides context for evaluating assertions.
// Harness resolves aliases and makes the reads of final_state assertions;
// without it only trace assertions over alias-free args can be evaluated.
type AssertionContext struct {
	Ctx     context.Context
	Harness *Harness
}

// expectedArgs converts assertion args the way the trace shows them:
// references resolved, then aliased again.
func (actx *AssertionContext) expectedArgs(args map[string]interface{}) (ir.IRObject, error) {
	if actx == nil || actx.Harness == nil {
		v, err := ir.FromGo(args, false)
		if err != nil {
			return nil, err
		}
		obj, _ := v.(ir.IRObject)
		return obj, nil
	}
	obj, err := actx.Harness.convertArgs(args)
	if err != nil {
		return nil, err
	}
	return actx.Harness.normalizeObject(obj), nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			var args ir.IRObject
			if args, err = actx.expectedArgs(assertion.Args); err == nil {
				err = assertTraceContains(result.Trace, assertion.Action, args)
			}
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion.Actions)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion.Action, assertion.Count)
		case AssertFinalState:
			err = evaluateFinalState(result, assertion, actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}

		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateFinalState(result *Result, a Assertion, actx *AssertionContext) error {
	if actx == nil || actx.Harness == nil {
		return fmt.Errorf("final_state requires a running harness")
	}
	h := actx.Harness
	got, err := h.read(actx.Ctx, a)
	if err != nil {
		return fmt.Errorf("final_state read %s: %w", a.Action, err)
	}
	result.State[a.Action] = h.normalizeObject(got)

	want, err := h.convertArgs(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}
	return assertFinalState(a.Action, got, want)
}
