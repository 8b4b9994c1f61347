package raft

import "fmt"

// Status is the closed set of outcomes a core operation can report.
type Status int

const (
	StatusOK Status = iota
	StatusNotLeader
	StatusNotFound
	StatusIoError
	StatusInvalidArg
	StatusNoMemory
	StatusCorruption
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "Ok"
	case StatusNotLeader:
		return "NotLeader"
	case StatusNotFound:
		return "NotFound"
	case StatusIoError:
		return "IoError"
	case StatusInvalidArg:
		return "InvalidArg"
	case StatusNoMemory:
		return "NoMemory"
	case StatusCorruption:
		return "Corruption"
	case StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Error is the error type every exported Node operation returns on failure.
// Callers distinguish cases with errors.Is against the package-level
// sentinels below, or errors.As to recover the Status directly.
type Error struct {
	Status Status
	Op     string
	Err    error
}

func newError(status Status, op string, cause error) *Error {
	return &Error{Status: status, Op: op, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("raft: %s: %s: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("raft: %s: %s", e.Op, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotLeader) (and the other sentinels below)
// match any *Error carrying the same Status, regardless of Op or Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status
}

// Sentinels for errors.Is comparisons. These never carry an Op or a cause;
// real errors returned from the API wrap the same Status with context.
var (
	ErrNotLeader  = &Error{Status: StatusNotLeader}
	ErrNotFound   = &Error{Status: StatusNotFound}
	ErrIoError    = &Error{Status: StatusIoError}
	ErrInvalidArg = &Error{Status: StatusInvalidArg}
	ErrNoMemory   = &Error{Status: StatusNoMemory}
	ErrCorruption = &Error{Status: StatusCorruption}
	ErrStopped    = &Error{Status: StatusStopped}
)
