package common

import "errors"

// Domain error taxonomy. Services return these (possibly wrapped); handlers
// map them onto HTTP statuses and envelope codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid transition")
)
