package link

import "errors"

var (
	// ErrClosed is returned when sending on a closed session.
	ErrClosed = errors.New("link: session closed")

	// ErrUnknownKind is returned by New for an unsupported link kind.
	ErrUnknownKind = errors.New("link: unknown kind")

	// ErrStale is returned when the controller has gone quiet for too long.
	ErrStale = errors.New("link: controller stale")

	// ErrBadFrame wraps a frame that arrived intact but did not decode.
	ErrBadFrame = errors.New("link: bad frame")
)
