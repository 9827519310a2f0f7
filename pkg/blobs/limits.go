// Package blobs turns thresholded blob bounding boxes into paired targets.
//
// A target is two tape strips side by side. Each strip arrives as a part
// (one contour's bounding box plus its fill ratio). Parts are filtered on
// size, shape and fullness; vertically split halves of one strip are merged;
// then horizontally spaced, vertically aligned parts are combined into
// targets. Pure Go: callers supply boxes, no image access happens here.
package blobs

// Limits holds the filter and pairing thresholds.
type Limits struct {
	// Part size, pixels
	MinWidth, MaxWidth   float64
	MinHeight, MaxHeight float64

	// Part height/width, exclusive bounds. The low end admits strips split
	// in two by an obstruction.
	MinAspect, MaxAspect float64

	// Fraction of the box covered by mask pixels, inclusive bounds.
	MinFill, MaxFill float64

	// Split-strip merge: relative width error, relative centroid-x error,
	// and the merged height/width window (exclusive).
	SplitWidthError float64
	SplitXError     float64
	SplitMinAspect  float64
	SplitMaxAspect  float64

	// Pair combination: relative top/bottom misalignment, and centroid
	// spacing as multiples of the pair height (exclusive).
	AlignError float64
	MinSpacing float64
	MaxSpacing float64

	// Targets reported per frame.
	MaxTargets int
}

// DefaultLimits returns the thresholds tuned for the 640x480 stream.
func DefaultLimits() Limits {
	return Limits{
		MinWidth:  4,
		MaxWidth:  250,
		MinHeight: 5,
		MaxHeight: 250,

		MinAspect: 0.3,
		MaxAspect: 6.0,

		MinFill: 0.70,
		MaxFill: 1.0,

		SplitWidthError: 0.075,
		SplitXError:     0.04,
		SplitMinAspect:  2.0,
		SplitMaxAspect:  6.0,

		AlignError: 0.25,
		MinSpacing: 0.5,
		MaxSpacing: 2.25,

		MaxTargets: 3,
	}
}
