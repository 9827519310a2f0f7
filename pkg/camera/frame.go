package camera

import (
	"errors"
	"fmt"
	"time"
)

// BytesPerPixel of the BGR24 layout.
const BytesPerPixel = 3

// ErrEmptyFrame is returned by Validate for frames without pixels.
var ErrEmptyFrame = errors.New("camera: empty frame")

// Frame is one captured image. Pixels must not be modified after the frame
// has been published.
type Frame struct {
	Seq        uint64 // Assigned by the mailbox, increasing
	CapturedAt int64  // Monotonic capture time, nanoseconds
	Width      int
	Height     int
	Pixels     []byte // BGR24, row-major, Width*Height*3 bytes
}

// Validate checks the pixel buffer matches the frame size.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pixels) == 0 {
		return ErrEmptyFrame
	}
	if want := f.Width * f.Height * BytesPerPixel; len(f.Pixels) != want {
		return fmt.Errorf("camera: frame %dx%d has %d bytes, want %d", f.Width, f.Height, len(f.Pixels), want)
	}
	return nil
}

// Clock stamps captures with monotonic nanoseconds since the clock started.
// Stamps from one Clock are comparable; wall-clock changes do not affect them.
type Clock struct {
	base time.Time
}

// NewClock starts a clock.
func NewClock() *Clock {
	return &Clock{base: time.Now()}
}

// Now returns nanoseconds since the clock started.
func (c *Clock) Now() int64 {
	return int64(time.Since(c.base))
}
