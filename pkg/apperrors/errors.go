package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownReference = errors.New("unknown translation reference")
	ErrUnavailable      = errors.New("storage unavailable")
)
