// Package units provides the MCO encoder scale and angle unit conversions
package units

import "math"

// CountsPerRevolution is the number of encoder counts in one full turn of the
// MCO pendulum. The device reports both angle and angular velocity in counts.
const CountsPerRevolution = 1016

// CountsToRadians converts raw encoder counts to radians. The result is not
// wrapped, so 1016 counts is 2π.
func CountsToRadians(counts float64) float64 {
	return counts * 2 * math.Pi / CountsPerRevolution
}

// RadiansToCounts converts an angle in radians to the nearest whole number
// of encoder counts.
func RadiansToCounts(rad float64) int {
	return int(math.Round(rad * CountsPerRevolution / (2 * math.Pi)))
}

// WrapAngle maps an angle in radians onto [-π, π).
func WrapAngle(rad float64) float64 {
	w := math.Mod(rad+math.Pi, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	return w - math.Pi
}
