// Package threshold holds the HSV color-threshold configuration shared
// between the operator surface and the frame loop.
//
// Writers publish whole immutable Config values; the frame loop takes one
// Snapshot per frame and never observes a half-applied update.
package threshold

import (
	"fmt"
)

// Channel bounds.
const (
	ChannelMin = 0
	ChannelMax = 255
)

// Range is an inclusive channel range.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Full returns the [0,255] range.
func Full() Range {
	return Range{Min: ChannelMin, Max: ChannelMax}
}

// Contains reports whether v lies in the range.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) validate(name string) error {
	if r.Min < ChannelMin || r.Max > ChannelMax || r.Min > r.Max {
		return fmt.Errorf("%w: %s=[%d,%d]", ErrOutOfRange, name, r.Min, r.Max)
	}
	return nil
}

// Config is one HSV threshold triple.
type Config struct {
	H Range `json:"h" yaml:"h"`
	S Range `json:"s" yaml:"s"`
	V Range `json:"v" yaml:"v"`
}

// Default returns the full-range configuration used when none is supplied.
func Default() Config {
	return Config{H: Full(), S: Full(), V: Full()}
}

// Validate checks every channel is inside [0,255] with Min <= Max.
func (c Config) Validate() error {
	if err := c.H.validate("h"); err != nil {
		return err
	}
	if err := c.S.validate("s"); err != nil {
		return err
	}
	return c.V.validate("v")
}

// Lower returns the lower bounds as (h, s, v).
func (c Config) Lower() (int, int, int) {
	return c.H.Min, c.S.Min, c.V.Min
}

// Upper returns the upper bounds as (h, s, v).
func (c Config) Upper() (int, int, int) {
	return c.H.Max, c.S.Max, c.V.Max
}
