package events

import (
	"time"

	"github.com/teslashibe/go-targetlink/pkg/geometry"
	"github.com/teslashibe/go-targetlink/pkg/telemetry"
)

// Topics
const (
	TopicRate  = "vision:rate"
	TopicFrame = "vision:frame"
	TopicLink  = "link:state"
)

// RateEvent reports the frame rate, measured over a window of frames.
type RateEvent struct {
	FPS    float64   `json:"fps"`
	Frames uint64    `json:"frames"` // Total frames processed so far
	At     time.Time `json:"at"`
}

// FrameEvent describes one processed frame.
type FrameEvent struct {
	Seq          uint64                    `json:"seq"`
	Mode         string                    `json:"mode"`
	Update       *telemetry.VisionUpdate   `json:"-"`
	Measurements []geometry.RawMeasurement `json:"measurements"`
	Sent         bool                      `json:"sent"`
	Display      []byte                    `json:"-"` // JPEG, may be nil
}

// LinkEvent reports a connection change.
type LinkEvent struct {
	Active bool   `json:"active"`
	ConnID string `json:"conn_id,omitempty"`
}

// OnRate subscribes fn to rate events.
func (b *Bus) OnRate(fn func(RateEvent)) error {
	return b.Subscribe(TopicRate, fn)
}

// OnFrame subscribes fn to frame events.
func (b *Bus) OnFrame(fn func(FrameEvent)) error {
	return b.Subscribe(TopicFrame, fn)
}

// OnLink subscribes fn to link events.
func (b *Bus) OnLink(fn func(LinkEvent)) error {
	return b.Subscribe(TopicLink, fn)
}
