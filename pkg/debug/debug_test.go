package debug

import "testing"

func TestFoundTarget(t *testing.T) {
	got := FoundTarget(358, 271, 71, 36, 0.914)
	want := "Found target at 358.00, 271.00...size 71.00, 36.00... ratio 0.91"
	if got != want {
		t.Errorf("FoundTarget() = %q, want %q", got, want)
	}
}
