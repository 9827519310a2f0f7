package telemetry

import (
	"math"

	"github.com/teslashibe/go-targetlink/pkg/geometry"
)

// nudge is added to near-integral y/z values so the wire text always carries
// a fractional part (2 encodes as 2.0000001, not 2). The controller parser
// reads these fields as doubles.
const nudge = 1e-7

// Doubleize nudges v by 1e-7 when its remainder mod 1 is below 1e-7.
// The remainder keeps the sign of v, so every negative value is nudged too.
// NaN and Inf are returned unchanged.
func Doubleize(v float64) float64 {
	if math.Mod(v, 1) < nudge {
		return v + nudge
	}
	return v
}

// Record is the wire form of one target.
type Record struct {
	X     float64 `json:"x" cbor:"x"`
	Y     float64 `json:"y" cbor:"y"`
	Z     float64 `json:"z" cbor:"z"`
	Theta float64 `json:"theta" cbor:"theta"`
}

// NewRecord converts an estimate to its wire form. Only y and z are nudged.
func NewRecord(info geometry.CameraTargetInfo) Record {
	return Record{
		X:     info.X,
		Y:     Doubleize(info.Y),
		Z:     Doubleize(info.Z),
		Theta: info.Theta,
	}
}

// Finite reports whether every field is finite.
func (r Record) Finite() bool {
	for _, v := range [...]float64{r.X, r.Y, r.Z, r.Theta} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Records converts all targets of an update in order.
func Records(u *VisionUpdate) []Record {
	out := make([]Record, 0, u.Len())
	for _, t := range u.targets {
		out = append(out, NewRecord(t))
	}
	return out
}
