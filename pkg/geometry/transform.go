package geometry

// RawMeasurement is one detected target as reported by the frame processor.
type RawMeasurement struct {
	CentroidX        float64 `json:"cx"`     // Pixel column of the bounding-box center
	CentroidY        float64 `json:"cy"`     // Pixel row of the bounding-box center
	Width            float64 `json:"width"`  // Bounding-box width in pixels
	Height           float64 `json:"height"` // Bounding-box height in pixels (informational)
	LeftToRightRatio float64 `json:"ratio"`  // Left part area / right part area
}

// CameraTargetInfo is the physical estimate of one target in the camera frame.
type CameraTargetInfo struct {
	X     float64 // Distance along the optical axis, feet
	Y     float64 // Lateral offset, positive left
	Z     float64 // Vertical offset, positive up
	Theta float64 // Heading proxy (see BearingEstimator)
}

// Transform converts one measurement using the default bearing estimator.
//
// y and z are small-angle pinhole approximations; accuracy degrades off axis.
// x ignores the lateral/vertical offset of the target: width alone cannot
// separate distance from off-axis position.
//
// A zero width yields x = +Inf. NaN and Inf inputs propagate to the output
// unchanged; consumers must tolerate non-finite values.
func Transform(m RawMeasurement, in Intrinsics) CameraTargetInfo {
	return TransformWith(m, in, RatioBearing{})
}

// TransformWith converts one measurement using the given bearing estimator.
// A nil estimator falls back to RatioBearing.
func TransformWith(m RawMeasurement, in Intrinsics, bearing BearingEstimator) CameraTargetInfo {
	if bearing == nil {
		bearing = RatioBearing{}
	}
	return CameraTargetInfo{
		X:     in.DistanceConstant / m.Width,
		Y:     -(m.CentroidX - in.CenterCol) / in.FocalLengthPixels,
		Z:     (m.CentroidY - in.CenterRow) / in.FocalLengthPixels,
		Theta: bearing.Bearing(m, in),
	}
}

// TransformAll converts measurements in order, one estimate per measurement.
func TransformAll(ms []RawMeasurement, in Intrinsics, bearing BearingEstimator) []CameraTargetInfo {
	out := make([]CameraTargetInfo, 0, len(ms))
	for _, m := range ms {
		out = append(out, TransformWith(m, in, bearing))
	}
	return out
}
