package geometry

// BearingEstimator computes the theta field of a target estimate.
// Integrators with a real heading algorithm plug it in here.
type BearingEstimator interface {
	Bearing(m RawMeasurement, in Intrinsics) float64
}

// RatioBearing reports the left-to-right area ratio verbatim.
//
// This is a placeholder, not an angle: the ratio only correlates with the
// viewing angle of a paired target. Kept so downstream consumers see the
// same value the robot code was written against.
type RatioBearing struct{}

// Bearing implements BearingEstimator.
func (RatioBearing) Bearing(m RawMeasurement, _ Intrinsics) float64 {
	return m.LeftToRightRatio
}

// BearingFunc adapts a plain function to BearingEstimator.
type BearingFunc func(m RawMeasurement, in Intrinsics) float64

// Bearing implements BearingEstimator.
func (f BearingFunc) Bearing(m RawMeasurement, in Intrinsics) float64 {
	return f(m, in)
}
