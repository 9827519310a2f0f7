package telemetry

import "errors"

var (
	// ErrNonFinite is reported for records carrying NaN or Inf, which JSON
	// cannot represent.
	ErrNonFinite = errors.New("telemetry: non-finite value")

	// ErrUnknownCodec is returned by CodecByName.
	ErrUnknownCodec = errors.New("telemetry: unknown codec")
)
