package dispatch

import (
	"fmt"
	"strings"
)

// Mode selects what the frame processor renders for display.
// Target extraction and telemetry are identical in every mode.
type Mode int32

const (
	ModeRaw         Mode = iota // Camera image as captured
	ModeThresholded             // Binary threshold mask with part boxes
	ModeTargets                 // Camera image with target markers
	ModeTargetsPlus             // Targets plus accepted/rejected parts
)

var modeNames = [...]string{"raw", "thresholded", "targets", "targets-plus"}

var modeLabels = [...]string{"Raw image", "Thresholded image", "Targets", "Targets plus"}

// Modes returns every mode in order.
func Modes() []Mode {
	return []Mode{ModeRaw, ModeThresholded, ModeTargets, ModeTargetsPlus}
}

// Names returns the mode names in order.
func Names() []string {
	out := make([]string, len(modeNames))
	copy(out, modeNames[:])
	return out
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= ModeRaw && m <= ModeTargetsPlus
}

// Name returns the short name ("raw", "thresholded", ...).
func (m Mode) Name() string {
	if !m.Valid() {
		return fmt.Sprintf("mode(%d)", int32(m))
	}
	return modeNames[m]
}

// Label returns the human-readable label shown in the UI.
func (m Mode) Label() string {
	if !m.Valid() {
		return m.Name()
	}
	return modeLabels[m]
}

func (m Mode) String() string { return m.Name() }

// ParseMode converts a raw mode number, rejecting values outside the enum.
func ParseMode(v int) (Mode, error) {
	m := Mode(v)
	if v < int(ModeRaw) || v > int(ModeTargetsPlus) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMode, v)
	}
	return m, nil
}

// ParseModeName converts a mode name (case-insensitive, "_" accepted for "-").
func ParseModeName(name string) (Mode, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for i, s := range modeNames {
		if s == n {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, name)
}
