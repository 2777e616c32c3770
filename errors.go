package paxos

import "fmt"

// ErrBusy is returned to a client-facing caller when the dispatcher queue
// exceeds Config.BusyThreshold (spec §7, LocalOverload). In-protocol
// messages are never rejected this way.
var ErrBusy = fmt.Errorf("paxos: replica busy")

// ErrInactive is returned by Propose when the local Proposer is not the
// current leader (state INACTIVE).
var ErrInactive = fmt.Errorf("paxos: proposer inactive")

// FatalError wraps the two fatal error classes from spec §7:
// ProtocolViolation (an invariant of §3 would break) and StorageFailure (a
// durability write failed). Both are unrecoverable for the replica: it is
// safer to crash than to keep running with corrupted state.
type FatalError struct {
	Class string // "ProtocolViolation" or "StorageFailure"
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("paxos: fatal %s: %v", e.Class, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func protocolViolation(format string, args ...interface{}) *FatalError {
	return &FatalError{Class: "ProtocolViolation", Err: fmt.Errorf(format, args...)}
}

func storageFailure(err error) *FatalError {
	return &FatalError{Class: "StorageFailure", Err: err}
}

// isStale reports whether a message or request belongs to a view behind
// the given current view; such messages are dropped silently everywhere
// (spec §7, StaleMessage) and never logged as errors.
func isStale(msgView, currentView int32) bool {
	return msgView < currentView
}
