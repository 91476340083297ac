package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

func TestFixedSessionGenerator_ReturnsSameToken(t *testing.T) {
	gen := NewFixedSessionGenerator("test-session-123")

	assert.Equal(t, "test-session-123", gen.Generate())
	assert.Equal(t, "test-session-123", gen.Generate())
	assert.Equal(t, "test-session-123", gen.Generate())
}

func TestFixedSessionGenerator_EmptyTokenDefault(t *testing.T) {
	gen := NewFixedSessionGenerator("")
	assert.Equal(t, DefaultSession, gen.Generate())
}

func TestFixedSessionGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedSessionGenerator("thread-safe-token")

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				assert.Equal(t, "thread-safe-token", gen.Generate())
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestFixedSessionGenerator_StampsEngineSession(t *testing.T) {
	e := engine.New(EngineConfig(), nil, engine.WithSessionGenerator(NewFixedSessionGenerator("s-1")))
	assert.Equal(t, "s-1", e.Session())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)

	r, err := e.Execute(ctx, engine.Call{
		Action: engine.ActionMint,
		Caller: Admin,
		Args:   ir.IRObject{"to": ir.IRString(Alice.Hex()), "amount": ir.IRInt(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", r.Invocation.Session)
}
