package geometry

import (
	"math"
	"testing"
)

func centeredIntrinsics(f, k float64) Intrinsics {
	return Intrinsics{
		FrameWidth:        640,
		FrameHeight:       480,
		FocalLengthPixels: f,
		CenterCol:         320,
		CenterRow:         240,
		DistanceConstant:  k,
	}
}

func TestTransform_OnAxis(t *testing.T) {
	in := centeredIntrinsics(554.26, 6329.113924)
	m := RawMeasurement{CentroidX: 320, CentroidY: 240, Width: 50, LeftToRightRatio: 0.5}

	got := Transform(m, in)

	if got.Y != 0 {
		t.Errorf("Y = %v, want 0", got.Y)
	}
	if got.Z != 0 {
		t.Errorf("Z = %v, want 0", got.Z)
	}
	if want := 6329.113924 / 50; got.X != want {
		t.Errorf("X = %v, want %v", got.X, want)
	}
	if got.Theta != 0.5 {
		t.Errorf("Theta = %v, want 0.5", got.Theta)
	}
}

func TestTransform_AxisConventions(t *testing.T) {
	in := centeredIntrinsics(100, 1000)

	tests := []struct {
		name  string
		m     RawMeasurement
		wantY float64
		wantZ float64
		wantX float64
	}{
		{"right of center is negative y", RawMeasurement{CentroidX: 420, CentroidY: 240, Width: 10}, -1, 0, 100},
		{"left of center is positive y", RawMeasurement{CentroidX: 220, CentroidY: 240, Width: 10}, 1, 0, 100},
		{"below center is positive z", RawMeasurement{CentroidX: 320, CentroidY: 290, Width: 20}, 0, 0.5, 50},
		{"above center is negative z", RawMeasurement{CentroidX: 320, CentroidY: 190, Width: 20}, 0, -0.5, 50},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Transform(tc.m, in)
			if got.X != tc.wantX || got.Y != tc.wantY || got.Z != tc.wantZ {
				t.Errorf("got (%v, %v, %v), want (%v, %v, %v)", got.X, got.Y, got.Z, tc.wantX, tc.wantY, tc.wantZ)
			}
		})
	}
}

func TestTransform_DistancePositive(t *testing.T) {
	in := DefaultIntrinsics()
	for _, w := range []float64{1, 4, 37.5, 250, 640} {
		got := Transform(RawMeasurement{Width: w}, in)
		if !(got.X > 0) {
			t.Errorf("width %v: X = %v, want > 0", w, got.X)
		}
	}
}

func TestTransform_ZeroWidth(t *testing.T) {
	got := Transform(RawMeasurement{CentroidX: 10, CentroidY: 10}, DefaultIntrinsics())
	if !math.IsInf(got.X, 1) {
		t.Errorf("X = %v, want +Inf", got.X)
	}
}

func TestTransform_NaNPropagates(t *testing.T) {
	got := Transform(RawMeasurement{CentroidX: math.NaN(), CentroidY: 240, Width: 10}, DefaultIntrinsics())
	if !math.IsNaN(got.Y) {
		t.Errorf("Y = %v, want NaN", got.Y)
	}
	if math.IsNaN(got.X) {
		t.Errorf("X should be unaffected, got NaN")
	}
}

func TestTransformAll_PreservesOrder(t *testing.T) {
	in := centeredIntrinsics(100, 1000)
	ms := []RawMeasurement{{Width: 10}, {Width: 20}, {Width: 40}}

	got := TransformAll(ms, in, nil)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []float64{100, 50, 25} {
		if got[i].X != want {
			t.Errorf("got[%d].X = %v, want %v", i, got[i].X, want)
		}
	}

	if empty := TransformAll(nil, in, nil); len(empty) != 0 {
		t.Errorf("TransformAll(nil) len = %d", len(empty))
	}
}

func TestTransformWith_CustomBearing(t *testing.T) {
	bearing := BearingFunc(func(m RawMeasurement, in Intrinsics) float64 {
		return math.Atan2(m.CentroidX-in.CenterCol, in.FocalLengthPixels)
	})
	in := centeredIntrinsics(100, 1000)

	got := TransformWith(RawMeasurement{CentroidX: 420, Width: 10, LeftToRightRatio: 3}, in, bearing)
	if want := math.Pi / 4; math.Abs(got.Theta-want) > 1e-12 {
		t.Errorf("Theta = %v, want %v", got.Theta, want)
	}
}

func TestDefaultIntrinsics(t *testing.T) {
	in := DefaultIntrinsics()
	if in.CenterCol != 319.5 || in.CenterRow != 239.5 {
		t.Errorf("center = (%v, %v), want (319.5, 239.5)", in.CenterCol, in.CenterRow)
	}
	if math.Abs(in.FocalLengthPixels-554.2562584220407) > 1e-6 {
		t.Errorf("focal = %v", in.FocalLengthPixels)
	}
	if err := in.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestIntrinsics_Validate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Intrinsics)
	}{
		{"zero width", func(in *Intrinsics) { in.FrameWidth = 0 }},
		{"zero focal", func(in *Intrinsics) { in.FocalLengthPixels = 0 }},
		{"nan focal", func(in *Intrinsics) { in.FocalLengthPixels = math.NaN() }},
		{"negative K", func(in *Intrinsics) { in.DistanceConstant = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := DefaultIntrinsics()
			tc.mut(&in)
			if err := in.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
