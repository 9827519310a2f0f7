package dispatch

import "errors"

// ErrInvalidMode is returned when a requested processing mode is not one
// of the defined modes. The current mode is left unchanged.
var ErrInvalidMode = errors.New("dispatch: invalid processing mode")
