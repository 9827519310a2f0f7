// Package camera provides frame acquisition for the vision loop.
//
// Frames carry raw BGR24 pixels and a monotonic capture stamp. The capture
// side publishes into a single-slot Mailbox; the frame loop always takes
// the newest frame and older unconsumed frames are dropped, never queued.
package camera

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds capture parameters.
type Config struct {
	// Source is a device index ("0"), a file path, or a stream URL.
	Source string `json:"source"`

	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality of the display image, 1-100
}

// Capture limits.
const (
	MaxWidth  = 1920
	MaxHeight = 1080
)

// DefaultConfig returns the 640x480 tracking configuration.
func DefaultConfig() Config {
	return Config{
		Source:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   75,
	}
}

// DeviceIndex returns the source as a device index when it is numeric.
func (c Config) DeviceIndex() (int, bool) {
	n, err := strconv.Atoi(c.Source)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsLive reports whether the source is a device or a network stream.
// Live sources are reopened when they fail; a file source ending is the
// end of the run.
func (c Config) IsLive() bool {
	if _, ok := c.DeviceIndex(); ok {
		return true
	}
	return strings.Contains(c.Source, "://")
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Source == "" {
		errors = append(errors, "source is required")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
