package database

import "github.com/roach88/chaindb/internal/ir"

// Sink receives the lifecycle event of every successful mutation.
type Sink interface {
	Emit(ev ir.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ir.Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev ir.Event) {
	f(ev)
}

// Recorder is a Sink that keeps events in emission order.
type Recorder struct {
	events []ir.Event
}

// Emit appends ev.
func (r *Recorder) Emit(ev ir.Event) {
	r.events = append(r.events, ev)
}

// Events returns the recorded events. Never nil.
func (r *Recorder) Events() []ir.Event {
	out := make([]ir.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.events = nil
}

type discard struct{}

func (discard) Emit(ir.Event) {}
