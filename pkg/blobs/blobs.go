package blobs

import (
	"fmt"
	"image"
	"math"

	"github.com/teslashibe/go-targetlink/pkg/geometry"
)

// Part is one candidate strip.
type Part struct {
	Box       image.Rectangle
	Fill      float64 // Mask pixels / box area; not measured for merged parts
	Generated bool    // Merged from two split halves
}

// Width of the part box in pixels.
func (p Part) Width() float64 { return float64(p.Box.Dx()) }

// Height of the part box in pixels.
func (p Part) Height() float64 { return float64(p.Box.Dy()) }

// Centroid returns the box center.
func (p Part) Centroid() (float64, float64) {
	return float64(p.Box.Min.X+p.Box.Max.X) / 2.0, float64(p.Box.Min.Y+p.Box.Max.Y) / 2.0
}

func (p Part) area() float64 {
	return float64(p.Box.Dx() * p.Box.Dy())
}

// Rejection is a part that failed a filter.
type Rejection struct {
	Part   Part
	Reason string
}

// Target is a combined pair of parts.
type Target struct {
	Box       image.Rectangle // Union of both parts
	CentroidX float64
	CentroidY float64
	Ratio     float64 // Left part area / right part area
	Left      Part
	Right     Part
}

// Measurement converts the target for the coordinate transform.
func (t Target) Measurement() geometry.RawMeasurement {
	return geometry.RawMeasurement{
		CentroidX:        t.CentroidX,
		CentroidY:        t.CentroidY,
		Width:            float64(t.Box.Dx()),
		Height:           float64(t.Box.Dy()),
		LeftToRightRatio: t.Ratio,
	}
}

// Classify splits parts into accepted and rejected, preserving order.
func Classify(parts []Part, lim Limits) ([]Part, []Rejection) {
	accepted := make([]Part, 0, len(parts))
	var rejected []Rejection

	for _, p := range parts {
		if reason := check(p, lim); reason != "" {
			rejected = append(rejected, Rejection{Part: p, Reason: reason})
			continue
		}
		accepted = append(accepted, p)
	}
	return accepted, rejected
}

func check(p Part, lim Limits) string {
	w, h := p.Width(), p.Height()
	if w < lim.MinWidth || w > lim.MaxWidth || h < lim.MinHeight || h > lim.MaxHeight {
		return "size"
	}
	if aspect := h / w; aspect <= lim.MinAspect || aspect >= lim.MaxAspect {
		return fmt.Sprintf("shape %.2f", aspect)
	}
	if p.Fill < lim.MinFill || p.Fill > lim.MaxFill {
		return fmt.Sprintf("fullness %.2f", p.Fill)
	}
	return ""
}

// PairSplit appends a merged part for every pair of parts that look like
// the upper and lower halves of one strip: near-equal width, same column,
// and a combined height/width in the split window. The originals are kept.
func PairSplit(parts []Part, lim Limits) []Part {
	out := append([]Part(nil), parts...)
	n := len(parts)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := parts[i], parts[j]

			maxW := math.Max(a.Width(), b.Width())
			if math.Abs(a.Width()-b.Width())/maxW >= lim.SplitWidthError {
				continue
			}
			ax, _ := a.Centroid()
			bx, _ := b.Centroid()
			if !(math.Abs(ax-bx)/math.Max(ax, bx) < lim.SplitXError) {
				continue
			}

			top := min(a.Box.Min.Y, b.Box.Min.Y)
			bottom := max(a.Box.Max.Y, b.Box.Max.Y)
			h := bottom - top
			if aspect := float64(h) / maxW; aspect <= lim.SplitMinAspect || aspect >= lim.SplitMaxAspect {
				continue
			}

			left := min(a.Box.Min.X, b.Box.Min.X)
			out = append(out, Part{
				Box:       image.Rect(left, top, left+int(maxW), bottom),
				Generated: true,
			})
		}
	}
	return out
}

// Combine pairs non-overlapping parts whose tops and bottoms line up and
// whose centroids are spaced as a target's two strips are.
func Combine(parts []Part, lim Limits) []Target {
	var targets []Target

	for i := 0; i < len(parts); i++ {
		for j := i + 1; j < len(parts); j++ {
			a, b := parts[i], parts[j]
			if !a.Box.Intersect(b.Box).Empty() {
				continue
			}

			maxH := math.Max(a.Height(), b.Height())
			errTop := math.Abs(float64(a.Box.Min.Y-b.Box.Min.Y)) / maxH
			errBottom := math.Abs(float64(a.Box.Max.Y-b.Box.Max.Y)) / maxH
			if !(errTop < lim.AlignError && errBottom < lim.AlignError) {
				continue
			}

			pairH := float64(max(a.Box.Max.Y, b.Box.Max.Y) - min(a.Box.Min.Y, b.Box.Min.Y))
			ax, _ := a.Centroid()
			bx, _ := b.Centroid()
			spacing := math.Abs(ax - bx)
			if !(lim.MinSpacing*pairH < spacing && spacing < lim.MaxSpacing*pairH) {
				continue
			}

			left, right := a, b
			if b.Box.Min.X <= a.Box.Min.X {
				left, right = b, a
			}
			box := a.Box.Union(b.Box)
			targets = append(targets, Target{
				Box:       box,
				CentroidX: float64(box.Min.X + box.Dx()/2),
				CentroidY: float64(box.Min.Y + box.Dy()/2),
				Ratio:     left.area() / right.area(),
				Left:      left,
				Right:     right,
			})
		}
	}
	return targets
}

// Extraction is the full result of one frame's analysis.
type Extraction struct {
	Parts    []Part      // Accepted parts, including merged halves
	Rejected []Rejection // Parts that failed a filter
	Targets  []Target    // Every target found, in discovery order
}

// Extract runs classify, split merging and pair combination.
func Extract(parts []Part, lim Limits) Extraction {
	accepted, rejected := Classify(parts, lim)
	accepted = PairSplit(accepted, lim)
	return Extraction{
		Parts:    accepted,
		Rejected: rejected,
		Targets:  Combine(accepted, lim),
	}
}

// Measurements returns at most limit targets as raw measurements.
// A non-positive limit returns all of them.
func (e Extraction) Measurements(limit int) []geometry.RawMeasurement {
	n := len(e.Targets)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]geometry.RawMeasurement, 0, n)
	for _, t := range e.Targets[:n] {
		out = append(out, t.Measurement())
	}
	return out
}
