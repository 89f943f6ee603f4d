package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name      string
		speedMMPS float64
		units     string
		expected  float64
	}{
		{"300 mm/s to cm/s", 300, CMPS, 30},
		{"300 mm/s to m/s", 300, MPS, 0.3},
		{"300 mm/s to mm/s", 300, MMPS, 300},
		{"unknown units default to mm/s", 300, "unknown", 300},
		{"0 mm/s to m/s", 0, MPS, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedMMPS, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedMMPS, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		unit     string
		expected bool
	}{
		{MMPS, true},
		{CMPS, true},
		{MPS, true},
		{"mph", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.unit); got != tt.expected {
			t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
		}
	}
	if GetValidUnitsString() != "mm_per_sec, cm_per_sec, m_per_sec" {
		t.Errorf("GetValidUnitsString() = %q", GetValidUnitsString())
	}
}

func TestCalibration(t *testing.T) {
	c := Calibration{FPS: 30, PxPerMM: 2}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if got := c.FramesRounded(0.5); got != 15 {
		t.Errorf("FramesRounded(0.5) = %d, want 15", got)
	}
	if got := c.FramesTruncated(0.19); got != 5 {
		t.Errorf("FramesTruncated(0.19) = %d, want 5", got)
	}
	if got := c.FramesRounded(0.19); got != 6 {
		t.Errorf("FramesRounded(0.19) = %d, want 6", got)
	}
	if got := c.PxToMM(20); got != 10 {
		t.Errorf("PxToMM(20) = %v, want 10", got)
	}
	if got := c.MMToPx(5); got != 10 {
		t.Errorf("MMToPx(5) = %v, want 10", got)
	}
	if got := c.Seconds(45); got != 1.5 {
		t.Errorf("Seconds(45) = %v, want 1.5", got)
	}

	for _, bad := range []Calibration{{0, 1}, {30, 0}, {math.NaN(), 1}, {30, math.Inf(1)}} {
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", bad)
		}
	}
}
