// Package dispatch runs the per-frame vision loop: process the frame,
// convert detections to camera-frame estimates, aggregate one update per
// frame, and send it to the robot controller when a connection is attached.
package dispatch

import (
	"context"

	"github.com/teslashibe/go-targetlink/pkg/camera"
	"github.com/teslashibe/go-targetlink/pkg/geometry"
	"github.com/teslashibe/go-targetlink/pkg/telemetry"
	"github.com/teslashibe/go-targetlink/pkg/threshold"
)

// Result is the output of processing one frame.
type Result struct {
	Display      []byte // Encoded display image for the selected mode, may be nil
	Measurements []geometry.RawMeasurement
}

// FrameProcessor detects targets in a frame.
type FrameProcessor interface {
	Process(frame camera.Frame, mode Mode, th threshold.Config) (Result, error)
}

// ProcessorFunc adapts a function to FrameProcessor.
type ProcessorFunc func(frame camera.Frame, mode Mode, th threshold.Config) (Result, error)

// Process implements FrameProcessor.
func (f ProcessorFunc) Process(frame camera.Frame, mode Mode, th threshold.Config) (Result, error) {
	return f(frame, mode, th)
}

// Connection is an established channel to the robot controller.
// Send must be safe for use from the frame goroutine while the link's own
// goroutines run.
type Connection interface {
	ID() string
	Send(msg *telemetry.Message) error
}

// FrameListener receives frame-arrival notifications from the host.
type FrameListener interface {
	OnFrame(frame camera.Frame) *telemetry.VisionUpdate
}

// FrameSource yields frames until it is closed or ctx is done.
type FrameSource interface {
	Next(ctx context.Context) (camera.Frame, bool)
}

// State of the dispatcher's connection.
type State int

const (
	Idle   State = iota // No connection attached; updates are dropped
	Active              // Connection attached; updates are sent
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}
