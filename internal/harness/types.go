package harness

import "github.com/roach88/chaindb/internal/ir"

// Trace event types.
const (
	TraceInvocation = "invocation"
	TraceCompletion = "completion"
)

// TraceEvent is one entry of a scenario trace: the invocation of a call or
// its completion. Database IDs and known addresses are shown by alias
// ("$name", "@alias") so traces stay readable and stable.
type TraceEvent struct {
	Type string `json:"type"` // "invocation" or "completion"
	Seq  int64  `json:"seq"`

	// Invocation fields
	Action   string      `json:"action,omitempty"`
	Database string      `json:"database,omitempty"`
	Caller   string      `json:"caller,omitempty"`
	Args     ir.IRObject `json:"args,omitempty"`

	// Completion fields
	OutputCase string      `json:"output_case,omitempty"`
	Result     ir.IRObject `json:"result,omitempty"`
	Events     ir.IRArray  `json:"events,omitempty"`
	GasUsed    int64       `json:"gas_used,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses, assertions and the replay check pass.
	Pass bool `json:"pass"`

	// Trace contains all invocations and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the result of every final_state read, by action name.
	State map[string]ir.IRObject `json:"state,omitempty"`

	// Databases maps each database alias ("$name") to its ID.
	Databases map[string]string `json:"databases,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		State:     make(map[string]ir.IRObject),
		Databases: make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(action, database, caller string, args ir.IRObject, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:     TraceInvocation,
		Seq:      seq,
		Action:   action,
		Database: database,
		Caller:   caller,
		Args:     args,
	})
}

// AddCompletionTrace adds a completion to the trace.
func (r *Result) AddCompletionTrace(outputCase string, result ir.IRObject, events ir.IRArray, gasUsed, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       TraceCompletion,
		Seq:        seq,
		OutputCase: outputCase,
		Result:     result,
		Events:     events,
		GasUsed:    gasUsed,
	})
}
