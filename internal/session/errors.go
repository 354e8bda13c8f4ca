package session

import (
	"errors"
	"fmt"
)

var (
	ErrClosed             = errors.New("session closed")
	ErrChannelNotOpen     = errors.New("channel not open")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	ErrStaleNegotiation   = errors.New("stale or invalid session description")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrAlreadyStarted     = errors.New("session already started")
)

// Error is a failed session operation.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func wrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
