package rate

import "errors"

var (
	// ErrInvalidConfig is returned by constructors for non-positive limits.
	ErrInvalidConfig = errors.New("rate: invalid config")
	// ErrEmptyKey is returned when a caller passes an empty key or identifier.
	ErrEmptyKey = errors.New("rate: empty key")
)
