// Package telemetry aggregates per-frame target estimates and encodes them
// for the robot controller.
package telemetry

import (
	"github.com/teslashibe/go-targetlink/pkg/geometry"
)

// VisionUpdate is the telemetry for exactly one processed frame.
// It is built once by the frame loop and not mutated after hand-off.
type VisionUpdate struct {
	CapturedAt int64 // Monotonic capture time, nanoseconds
	targets    []geometry.CameraTargetInfo
}

// NewVisionUpdate starts an empty update for a frame captured at capturedAt.
func NewVisionUpdate(capturedAt int64) *VisionUpdate {
	return &VisionUpdate{CapturedAt: capturedAt}
}

// Add appends a target estimate. Order is insertion order.
func (u *VisionUpdate) Add(info geometry.CameraTargetInfo) {
	u.targets = append(u.targets, info)
}

// Len returns the number of targets.
func (u *VisionUpdate) Len() int {
	return len(u.targets)
}

// Targets returns a copy of the target estimates.
func (u *VisionUpdate) Targets() []geometry.CameraTargetInfo {
	out := make([]geometry.CameraTargetInfo, len(u.targets))
	copy(out, u.targets)
	return out
}
