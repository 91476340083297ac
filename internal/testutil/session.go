package testutil

import "github.com/roach88/chaindb/internal/engine"

// DefaultSession is the token used when a scenario names none.
const DefaultSession = "test-session-default"

// FixedSessionGenerator generates the same session token every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// an engine restarted over the same journal with the same generator stamps
// byte-identical invocations.
//
// Unlike engine.FixedGenerator, which returns tokens in sequence and panics
// once they run out, this generator never runs dry.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	token string
}

var _ engine.SessionGenerator = (*FixedSessionGenerator)(nil)

// NewFixedSessionGenerator creates a new fixed session generator.
//
// The token is typically set in the scenario YAML:
//
//	session: "test-session-bacon"
//
// If token is empty, Generate() returns DefaultSession.
func NewFixedSessionGenerator(token string) *FixedSessionGenerator {
	if token == "" {
		token = DefaultSession
	}
	return &FixedSessionGenerator{token: token}
}

// Generate returns the fixed session token.
func (g *FixedSessionGenerator) Generate() string {
	return g.token
}
