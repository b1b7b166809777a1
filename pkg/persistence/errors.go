package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("persistence unavailable")

	// ErrPoolTimeout is returned when no pooled connection became free in time.
	ErrPoolTimeout = errors.New("timed out acquiring connection")

	// ErrPoolClosed is returned when borrowing from a closed connection pool.
	ErrPoolClosed = errors.New("connection pool closed")

	// ErrLockContention is returned when a file lock could not be taken in time.
	ErrLockContention = errors.New("lock contention")

	// ErrCorrupt is returned when stored data cannot be decoded.
	ErrCorrupt = errors.New("stored data is corrupt")

	// ErrClosed is returned by gateway methods after Close.
	ErrClosed = errors.New("gateway closed")
)

// Error is an infrastructure failure raised by a gateway.
type Error struct {
	Provider string
	Op       string
	Err      error
}

// NewError wraps err as a gateway error. It returns nil for a nil err and
// leaves an existing *Error untouched.
func NewError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return &Error{Provider: provider, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsInfrastructure reports whether err originated in a gateway.
func IsInfrastructure(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
