package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Execute once the engine has shut down.
var ErrStopped = errors.New("engine stopped")

// ErrRunning is returned by Restore when the Run loop has already started.
var ErrRunning = errors.New("engine already running")

// ErrHalted is returned once a journal write has failed. The world in
// memory holds a call the journal lacks, so the engine refuses all further
// work; a new engine restored from the journal picks up from its last
// durable call.
var ErrHalted = errors.New("engine halted: journal write failed")

// ReplayError reports a journaled call whose re-execution did not
// reproduce the recorded outcome. The journal and the code that replays it
// disagree, so the restored state cannot be trusted.
type ReplayError struct {
	// Seq is the logical time of the diverging call.
	Seq int64

	// InvocationID identifies the journaled invocation.
	InvocationID string

	// Field names what differed: "invocation_id", "output_case", "events",
	// "result" or "completion_id".
	Field string

	Recorded string
	Replayed string
}

// Error implements the error interface.
func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay diverged at seq %d (invocation %s): %s recorded %s, replayed %s",
		e.Seq, e.InvocationID, e.Field, e.Recorded, e.Replayed)
}

// IsReplayError reports whether err is a ReplayError.
// Uses errors.As to handle wrapped errors.
func IsReplayError(err error) bool {
	var re *ReplayError
	return errors.As(err, &re)
}
