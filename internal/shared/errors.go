package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the operation would duplicate existing state.
	ErrConflict = errors.New("conflict")
	// ErrPrecondition indicates a capacity or state precondition failed.
	ErrPrecondition = errors.New("precondition failed")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
)
