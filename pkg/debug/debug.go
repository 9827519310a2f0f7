// Package debug provides global debug logging flags
package debug

import "fmt"

// Enabled turns on debug logging and the dashboard request log.
var Enabled bool

// Targets controls whether every found target is printed.
// The line format is read by the range calibration scripts; keep it stable.
// Use --debug-targets to enable.
var Targets bool

// FoundTarget formats a calibration line for one target.
func FoundTarget(cx, cy, w, h, ratio float64) string {
	return fmt.Sprintf("Found target at %.2f, %.2f...size %.2f, %.2f... ratio %.2f", cx, cy, w, h, ratio)
}

// TargetLog prints a calibration line only if target debugging is enabled
func TargetLog(cx, cy, w, h, ratio float64) {
	if Targets {
		fmt.Println(FoundTarget(cx, cy, w, h, ratio))
	}
}
