package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chaindb/internal/database"
	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario drives the engine through a flow of calls and asserts on the
// resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the fixed session token stamped on every invocation.
	// If empty, testutil.DefaultSession is used.
	Session string `yaml:"session,omitempty"`

	// Config overrides the test engine configuration.
	Config *ConfigOverrides `yaml:"config,omitempty"`

	// Accounts adds or replaces account aliases. Values are hex addresses.
	// The well-known testutil accounts are always available.
	Accounts map[string]string `yaml:"accounts,omitempty"`

	// Setup contains calls made before the main flow, typically funding and
	// provisioning. Every setup call must succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the calls under test, each with an optional expectation.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// ConfigOverrides replaces parts of testutil.EngineConfig.
type ConfigOverrides struct {
	Price  *uint64       `yaml:"price,omitempty"`
	Policy string        `yaml:"policy,omitempty"`
	Gas    *GasOverrides `yaml:"gas,omitempty"`
}

// GasOverrides replaces the non-zero parts of the default gas schedule.
type GasOverrides struct {
	Limit   int64 `yaml:"limit,omitempty"`
	Base    int64 `yaml:"base,omitempty"`
	PerWord int64 `yaml:"per_word,omitempty"`
	PerRow  int64 `yaml:"per_row,omitempty"`
}

// apply writes the overrides into cfg.
func (o *ConfigOverrides) apply(cfg *engine.Config) error {
	if o == nil {
		return nil
	}
	if o.Price != nil {
		cfg.Price = *o.Price
	}
	if o.Policy != "" {
		p, err := database.ParsePolicy(o.Policy)
		if err != nil {
			return err
		}
		cfg.Policy = p
	}
	if g := o.Gas; g != nil {
		if g.Limit != 0 {
			cfg.Gas.Limit = g.Limit
		}
		if g.Base != 0 {
			cfg.Gas.Base = g.Base
		}
		if g.PerWord != 0 {
			cfg.Gas.PerWord = g.PerWord
		}
		if g.PerRow != 0 {
			cfg.Gas.PerRow = g.PerRow
		}
	}
	return nil
}

// ActionStep represents a single call made during setup.
type ActionStep struct {
	// Action is the action name (e.g., "Token.mint").
	Action string `yaml:"action"`

	// Database references the target database of a Database.* action:
	// "$db" for the most recently created database, "$<name>" for a
	// database created in this scenario, or a literal database ID.
	Database string `yaml:"database,omitempty"`

	// Caller is an account alias or hex address. Defaults to admin.
	Caller string `yaml:"caller,omitempty"`

	// Args contains the call arguments. Strings of the form "@alias" are
	// replaced with the account's hex address, "$name" with a database ID.
	Args map[string]interface{} `yaml:"args"`

	// GasLimit caps the call's gas. Zero uses the schedule's limit.
	GasLimit int64 `yaml:"gas_limit,omitempty"`
}

// FlowStep represents a step in the main test flow.
// Each step invokes an action and optionally validates the completion.
type FlowStep struct {
	// Invoke is the action name to call.
	Invoke string `yaml:"invoke"`

	Database string                 `yaml:"database,omitempty"`
	Caller   string                 `yaml:"caller,omitempty"`
	Args     map[string]interface{} `yaml:"args"`
	GasLimit int64                  `yaml:"gas_limit,omitempty"`

	// Expect specifies the expected completion.
	// If nil, the call must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// step returns the flow step in setup form.
func (s FlowStep) step() ActionStep {
	return ActionStep{
		Action:   s.Invoke,
		Database: s.Database,
		Caller:   s.Caller,
		Args:     s.Args,
		GasLimit: s.GasLimit,
	}
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is the expected output case ("Success" or an error code such as
	// "TableNotFound").
	Case string `yaml:"case"`

	// Result contains expected result field values.
	// This is a subset match - only specified fields are validated.
	Result map[string]interface{} `yaml:"result,omitempty"`

	// Events lists the expected event kinds in emission order.
	// If nil, events are not checked; an empty list expects none.
	Events []string `yaml:"events,omitempty"`

	// GasUsed is the exact gas the call must consume. Zero skips the check.
	GasUsed int64 `yaml:"gas_used,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check action appears in trace with args
	// - "trace_order": Check actions appear in order
	// - "trace_count": Check action appears exactly N times
	// - "final_state": Make a read call and verify its result
	Type string `yaml:"type"`

	// Action is the action name (trace_contains, trace_count, final_state).
	Action string `yaml:"action,omitempty"`

	// Args are the expected action arguments (trace_contains, subset match)
	// or the arguments of the read call (final_state).
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Database and Caller address the read call (final_state).
	Database string `yaml:"database,omitempty"`
	Caller   string `yaml:"caller,omitempty"`

	// Expect contains expected result values (final_state, subset match).
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\ `) {
		return fmt.Errorf("name %q must not contain spaces or path separators", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for alias, hex := range s.Accounts {
		if _, err := ir.ParseAddress(hex); err != nil {
			return fmt.Errorf("accounts.%s: %w", alias, err)
		}
	}

	for i, step := range s.Setup {
		if step.Action == "" {
			return fmt.Errorf("setup[%d]: action is required", i)
		}
		if step.Args == nil {
			return fmt.Errorf("setup[%d]: args is required (use empty map if no args)", i)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for final_state", index)
		}
		if engine.IsMutating(ir.ActionRef(a.Action)) {
			return fmt.Errorf("assertions[%d]: final_state action %s is not a read", index, a.Action)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
