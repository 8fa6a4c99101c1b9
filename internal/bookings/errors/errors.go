package errors

import "errors"

// Sentinels returned by the booking repository. The service maps them to
// application errors.
var (
	ErrNotFound        = errors.New("booking not found")
	ErrInvalidID       = errors.New("booking id is not a valid object id")
	ErrVersionMismatch = errors.New("booking changed since it was read")
)
