package threshold

import "errors"

var (
	// ErrOutOfRange is returned when a channel bound is outside [0,255]
	// or min exceeds max.
	ErrOutOfRange = errors.New("threshold: range out of bounds")

	// ErrUnknownKey is returned by Store.Update for unrecognized keys.
	ErrUnknownKey = errors.New("threshold: unknown key")
)
