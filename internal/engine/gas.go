package engine

import (
	"strconv"

	"github.com/roach88/chaindb/internal/ir"
)

// GasSchedule prices the work a call does.
//
// A call pays Base up front. Writes pay PerWord for every storage word they
// write, charged before anything is mutated. Reads pay PerRow for every row
// they return, charged after the read.
type GasSchedule struct {
	Limit   int64 `json:"limit"`    // default per-call limit
	Base    int64 `json:"base"`     // charged on every call
	PerWord int64 `json:"per_word"` // per word written
	PerRow  int64 `json:"per_row"`  // per row returned by a read
}

// DefaultGasSchedule returns the schedule used when none is configured.
func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		Limit:   100_000,
		Base:    100,
		PerWord: 20,
		PerRow:  10,
	}
}

// GasMeter tracks gas used by one call against its limit.
//
// A charge that would exceed the limit fails with ir.ErrOutOfGas and
// consumes nothing; Used keeps the total of the charges that succeeded.
type GasMeter struct {
	limit int64
	used  int64
}

// NewGasMeter creates a meter with the given limit.
func NewGasMeter(limit int64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Charge consumes amount gas for the named step.
func (m *GasMeter) Charge(amount int64, step string) error {
	if amount < 0 {
		return ir.Errorf(ir.ErrInternal, "negative gas charge %d for %s", amount, step)
	}
	if amount > m.limit-m.used {
		return ir.Errorf(ir.ErrOutOfGas, "%s needs %d gas, %d of %d left", step, amount, m.limit-m.used, m.limit).
			With("limit", strconv.FormatInt(m.limit, 10)).
			With("used", strconv.FormatInt(m.used, 10)).
			With("needed", strconv.FormatInt(amount, 10))
	}
	m.used += amount
	return nil
}

// Used returns the gas consumed so far.
func (m *GasMeter) Used() int64 {
	return m.used
}

// Limit returns the meter's limit.
func (m *GasMeter) Limit() int64 {
	return m.limit
}

// Remaining returns the gas still available.
func (m *GasMeter) Remaining() int64 {
	return m.limit - m.used
}
