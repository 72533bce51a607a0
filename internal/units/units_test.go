package units

import (
	"math"
	"testing"
)

func TestCountsToRadians(t *testing.T) {
	tests := []struct {
		name     string
		counts   float64
		expected float64
	}{
		{"zero", 0, 0},
		{"half turn", 508, math.Pi},
		{"full turn", 1016, 2 * math.Pi},
		{"negative quarter turn", -254, -math.Pi / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CountsToRadians(tt.counts)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("CountsToRadians(%f) = %f, want %f", tt.counts, result, tt.expected)
			}
		})
	}
}

func TestRadiansToCounts(t *testing.T) {
	tests := []struct {
		rad      float64
		expected int
	}{
		{0, 0},
		{math.Pi, 508},
		{-math.Pi / 2, -254},
		{2 * math.Pi, CountsPerRevolution},
	}

	for _, tt := range tests {
		if got := RadiansToCounts(tt.rad); got != tt.expected {
			t.Errorf("RadiansToCounts(%f) = %d, want %d", tt.rad, got, tt.expected)
		}
	}
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, expected float64
	}{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{2 * math.Pi, 0},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{math.Pi, -math.Pi},
	}

	for _, tt := range tests {
		result := WrapAngle(tt.in)
		if math.Abs(result-tt.expected) > 1e-12 {
			t.Errorf("WrapAngle(%f) = %f, want %f", tt.in, result, tt.expected)
		}
	}
}
