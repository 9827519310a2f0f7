// Package geometry converts pixel-space target measurements into
// camera-relative physical estimates.
//
// Coordinate frame:
//   - +x is out the camera's optical axis
//   - +y is to the left of the image
//   - +z is to the top of the image
//
// The pixel frame has columns growing to the right and rows growing
// downward; the conversion below is the only place that flips axes.
package geometry

import (
	"fmt"
	"math"
)

// Default camera geometry for the 640x480 tracking stream.
const (
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480

	// DefaultDistanceConstant is target width (ft) times focal length (px),
	// fitted from range logs. Distance in feet = K / pixel width.
	DefaultDistanceConstant = 6329.113924

	// DefaultHorizontalFOV is the horizontal field of view in radians (60°).
	DefaultHorizontalFOV = 60.0 * math.Pi / 180.0
)

// Intrinsics holds the fixed camera parameters used by Transform.
type Intrinsics struct {
	FrameWidth        int     // Frame width in pixels
	FrameHeight       int     // Frame height in pixels
	FocalLengthPixels float64 // Focal length in pixels
	CenterCol         float64 // Optical center column (pixels)
	CenterRow         float64 // Optical center row (pixels)
	DistanceConstant  float64 // K in x = K / width
}

// DefaultIntrinsics returns the 640x480 geometry with the center at the
// middle of the central pixel pair (w/2 - 0.5, h/2 - 0.5).
func DefaultIntrinsics() Intrinsics {
	return NewIntrinsics(DefaultFrameWidth, DefaultFrameHeight,
		FocalLengthFromFOV(DefaultFrameWidth, DefaultHorizontalFOV))
}

// NewIntrinsics builds intrinsics for a frame size with the optical center
// at the image middle and the default distance constant.
func NewIntrinsics(width, height int, focalLengthPixels float64) Intrinsics {
	return Intrinsics{
		FrameWidth:        width,
		FrameHeight:       height,
		FocalLengthPixels: focalLengthPixels,
		CenterCol:         float64(width)/2.0 - 0.5,
		CenterRow:         float64(height)/2.0 - 0.5,
		DistanceConstant:  DefaultDistanceConstant,
	}
}

// FocalLengthFromFOV returns the pinhole focal length in pixels for a
// frame width and horizontal field of view (radians).
func FocalLengthFromFOV(width int, hfov float64) float64 {
	return (float64(width) / 2.0) / math.Tan(hfov/2.0)
}

// Validate checks that the intrinsics can produce finite output for
// finite, non-degenerate measurements.
func (in Intrinsics) Validate() error {
	if in.FrameWidth <= 0 || in.FrameHeight <= 0 {
		return fmt.Errorf("geometry: frame size must be positive, got %dx%d", in.FrameWidth, in.FrameHeight)
	}
	if !(in.FocalLengthPixels > 0) || math.IsInf(in.FocalLengthPixels, 0) {
		return fmt.Errorf("geometry: focal length must be positive and finite, got %v", in.FocalLengthPixels)
	}
	if !(in.DistanceConstant > 0) || math.IsInf(in.DistanceConstant, 0) {
		return fmt.Errorf("geometry: distance constant must be positive and finite, got %v", in.DistanceConstant)
	}
	return nil
}
