package engine

import "sync/atomic"

// Clock is the engine's logical clock. Every mutating call is stamped with
// a strictly increasing seq; reads observe the current value without
// advancing it.
//
// Wall-clock time never orders anything in chaindb: the journal and replay
// rely on seq alone.
//
// Thread-safety: safe for concurrent use, although only the Run loop
// advances it in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at 0. The first call gets seq 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, for resuming after replay.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued seq without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// advanceTo moves the clock forward to seq. It never moves backwards.
func (c *Clock) advanceTo(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
