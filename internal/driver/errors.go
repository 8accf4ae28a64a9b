package driver

import (
	"errors"
	"fmt"
)

var (
	ErrNullDriver         = errors.New("driver: null driver reference")
	ErrDriverUnavailable  = errors.New("driver: driver not available")
	ErrPreconditionFailed = errors.New("driver: precondition failed")
	ErrNoDriverAttached   = errors.New("driver: no driver attached")
	ErrDriverAttached     = errors.New("driver: driver already attached")
	ErrInvalidMode        = errors.New("driver: invalid attach mode")
)

// PreconditionError is returned when an explicit attach is refused.
// It matches ErrPreconditionFailed under errors.Is.
type PreconditionError struct {
	Driver  string
	Request Request
	Reason  string
	Err     error
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("driver %q precondition failed (condition=%d): %s", e.Driver, e.Request.Condition, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}
