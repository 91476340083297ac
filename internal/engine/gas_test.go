package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaindb/internal/ir"
)

func TestGasMeter_WithinLimit(t *testing.T) {
	m := NewGasMeter(100)

	require.NoError(t, m.Charge(40, "base"))
	require.NoError(t, m.Charge(60, "words"))

	assert.Equal(t, int64(100), m.Used())
	assert.Equal(t, int64(0), m.Remaining())
}

func TestGasMeter_ExceedingConsumesNothing(t *testing.T) {
	m := NewGasMeter(100)
	require.NoError(t, m.Charge(90, "base"))

	err := m.Charge(20, "words")
	require.Error(t, err)
	assert.True(t, ir.IsCode(err, ir.ErrOutOfGas))

	var e *ir.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "100", e.Details["limit"])
	assert.Equal(t, "90", e.Details["used"])
	assert.Equal(t, "20", e.Details["needed"])

	assert.Equal(t, int64(90), m.Used(), "failed charge must not consume gas")
}

func TestGasMeter_ZeroLimit(t *testing.T) {
	m := NewGasMeter(0)
	require.NoError(t, m.Charge(0, "noop"))
	assert.True(t, ir.IsCode(m.Charge(1, "base"), ir.ErrOutOfGas))
}

func TestGasMeter_NegativeCharge(t *testing.T) {
	m := NewGasMeter(10)
	assert.True(t, ir.IsCode(m.Charge(-1, "refund"), ir.ErrInternal))
	assert.Equal(t, int64(0), m.Used())
}

func TestDefaultGasSchedule(t *testing.T) {
	s := DefaultGasSchedule()
	assert.Greater(t, s.Limit, s.Base)
	assert.Positive(t, s.PerWord)
	assert.Positive(t, s.PerRow)
}
