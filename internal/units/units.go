// Package units provides calibration between video pixels and frames and
// physical distance and time, plus shared constants for speed units.
package units

import (
	"fmt"
	"math"
)

// Speed unit constants
const (
	MMPS = "mm_per_sec"
	CMPS = "cm_per_sec"
	MPS  = "m_per_sec"
)

// ValidUnits contains all valid speed unit values
var ValidUnits = []string{MMPS, CMPS, MPS}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mm_per_sec, cm_per_sec, m_per_sec"
}

// ConvertSpeed converts a speed from millimetres per second to the target units.
// Analyses compute speeds in mm/s.
func ConvertSpeed(speedMMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case CMPS:
		return speedMMPS / 10
	case MPS:
		return speedMMPS / 1000
	default:
		return speedMMPS
	}
}

// Calibration relates video units to physical units for one recording.
type Calibration struct {
	FPS     float64 // frames per second
	PxPerMM float64 // pixels per millimetre
}

// Validate checks both constants are positive and finite.
func (c Calibration) Validate() error {
	if !(c.FPS > 0) || math.IsInf(c.FPS, 0) {
		return fmt.Errorf("fps must be positive, got %g", c.FPS)
	}
	if !(c.PxPerMM > 0) || math.IsInf(c.PxPerMM, 0) {
		return fmt.Errorf("px_per_mm must be positive, got %g", c.PxPerMM)
	}
	return nil
}

// FramesRounded converts seconds to the nearest whole number of frames.
func (c Calibration) FramesRounded(sec float64) int {
	return int(math.Round(sec * c.FPS))
}

// FramesTruncated converts seconds to whole frames, dropping any fraction.
func (c Calibration) FramesTruncated(sec float64) int {
	return int(sec * c.FPS)
}

// Seconds converts a frame count to seconds.
func (c Calibration) Seconds(frames int) float64 {
	return float64(frames) / c.FPS
}

// PxToMM converts a pixel distance to millimetres.
func (c Calibration) PxToMM(px float64) float64 {
	return px / c.PxPerMM
}

// MMToPx converts millimetres to pixels.
func (c Calibration) MMToPx(mm float64) float64 {
	return mm * c.PxPerMM
}
