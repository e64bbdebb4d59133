package apperr

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	ErrService   = errors.New("knowledge service failure")
	ErrMalformed = errors.New("malformed knowledge service reply")
)
