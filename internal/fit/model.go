// Package fit fits parametric models to time series with nonlinear least
// squares and plots the result.
package fit

import (
	"fmt"
	"math"
)

// Model is a scalar function of time with a fixed number of parameters.
type Model interface {
	NumParams() int
	Eval(t float64, p []float64) float64
}

// Gradienter is implemented by models that can compute their partial
// derivatives with respect to the parameters. grad has length NumParams.
type Gradienter interface {
	Gradient(grad []float64, t float64, p []float64)
}

// Params are the parameters of a damped oscillator in the order used by
// DampedOscillator.
type Params struct {
	A      float64 // amplitude, rad
	Phi0   float64 // phase, rad
	Beta   float64 // damping rate, 1/s
	OmegaD float64 // damped angular frequency, rad/s
}

// DefaultGuess is the starting point used when no guess is supplied.
func DefaultGuess() Params {
	return Params{A: 0.5, Phi0: 0, Beta: 0.2, OmegaD: 2 * math.Pi / 0.55}
}

// Slice returns p as a parameter vector.
func (p Params) Slice() []float64 {
	return []float64{p.A, p.Phi0, p.Beta, p.OmegaD}
}

// ParamsFrom converts a parameter vector back to Params.
func ParamsFrom(v []float64) (Params, error) {
	if len(v) != 4 {
		return Params{}, fmt.Errorf("expected 4 parameters, got %d", len(v))
	}
	return Params{A: v[0], Phi0: v[1], Beta: v[2], OmegaD: v[3]}, nil
}

func (p Params) String() string {
	return fmt.Sprintf("A=%g phi0=%g beta=%g omegad=%g", p.A, p.Phi0, p.Beta, p.OmegaD)
}

// DampedOscillator is A·exp(−β·t)·cos(ω_d·t − φ0) with parameters
// (A, φ0, β, ω_d).
type DampedOscillator struct{}

func (DampedOscillator) NumParams() int { return 4 }

func (DampedOscillator) Eval(t float64, p []float64) float64 {
	return p[0] * math.Exp(-p[2]*t) * math.Cos(p[3]*t-p[1])
}

func (DampedOscillator) Gradient(grad []float64, t float64, p []float64) {
	a, phi0, beta, omega := p[0], p[1], p[2], p[3]
	decay := math.Exp(-beta * t)
	s, c := math.Sincos(omega*t - phi0)

	grad[0] = decay * c
	grad[1] = a * decay * s
	grad[2] = -t * a * decay * c
	grad[3] = -t * a * decay * s
}
