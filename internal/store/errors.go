package store

import (
	"errors"
	"fmt"
)

// Code is a machine readable failure reason.
type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeUniqueViolation Code = "unique_violation"
	CodeForeignKey      Code = "foreign_key_violation"
	CodeStateConflict   Code = "state_conflict"
	CodeExpired         Code = "expired"
)

// Error is returned by store implementations for failures the caller is
// expected to act on. Anything else is an infrastructure failure.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error for op.
func NewError(op string, code Code, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// IsCode reports whether err is a store Error with code.
func IsCode(err error, code Code) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.Code == code
}
