package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/mco/internal/monitoring"
)

var (
	// ErrNoConvergence is returned when the iteration limit is reached
	// before the step or cost tolerances are met.
	ErrNoConvergence = errors.New("fit did not converge")
	// ErrSingularJacobian is returned when JᵀJ at the solution cannot be
	// inverted, so no covariance can be estimated.
	ErrSingularJacobian = errors.New("singular jacobian at solution")
	// ErrInsufficientData is returned for mismatched inputs or fewer data
	// points than parameters.
	ErrInsufficientData = errors.New("insufficient data for fit")
)

const maxLambda = 1e16

// Settings controls the Levenberg–Marquardt iteration.
type Settings struct {
	// MaxIterations bounds the number of trial steps.
	MaxIterations int
	// Xtol stops when the step is small relative to the parameters.
	Xtol float64
	// Ftol stops when an accepted step reduces the cost by a small fraction.
	Ftol float64
	// Lambda is the initial damping.
	Lambda float64
}

// DefaultSettings returns the settings used when nil is passed to CurveFit.
func DefaultSettings() *Settings {
	return &Settings{
		MaxIterations: 1000,
		Xtol:          1.5e-8,
		Ftol:          1.5e-8,
		Lambda:        1e-3,
	}
}

// Result is the outcome of a successful fit.
type Result struct {
	Params     []float64
	Cov        *mat.SymDense
	SSR        float64
	Iterations int
}

// Variances returns the diagonal of the covariance matrix.
func (r *Result) Variances() []float64 {
	n, _ := r.Cov.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Cov.At(i, i)
	}
	return out
}

// StdErrs returns the one-sigma parameter uncertainties.
func (r *Result) StdErrs() []float64 {
	out := r.Variances()
	for i, v := range out {
		out[i] = math.Sqrt(v)
	}
	return out
}

// CurveFit finds parameters of model minimizing the sum of squared
// residuals y[i] − model(t[i]) starting from guess. The covariance is
// inv(JᵀJ) scaled by the residual variance SSR/(m−n).
func CurveFit(model Model, t, y, guess []float64, settings *Settings) (*Result, error) {
	n := model.NumParams()
	m := len(t)
	if len(y) != m {
		return nil, fmt.Errorf("%w: %d times, %d values", ErrInsufficientData, m, len(y))
	}
	if len(guess) != n {
		return nil, fmt.Errorf("%w: guess has %d parameters, model needs %d", ErrInsufficientData, len(guess), n)
	}
	if m < n {
		return nil, fmt.Errorf("%w: %d points for %d parameters", ErrInsufficientData, m, n)
	}
	if settings == nil {
		settings = DefaultSettings()
	}

	p := append([]float64(nil), guess...)
	trial := make([]float64, n)
	resid := make([]float64, m)
	ssr := residuals(resid, model, t, y, p)

	jac := mat.NewDense(m, n, nil)
	var jtj mat.SymDense
	damped := mat.NewSymDense(n, nil)
	var grad, delta mat.VecDense
	var chol mat.Cholesky

	lambda := settings.Lambda
	iter := 0
	converged := false

	for !converged && iter < settings.MaxIterations {
		jacobian(jac, model, t, p)
		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(m, resid))

		for iter < settings.MaxIterations {
			iter++
			if lambda > maxLambda {
				// no damping yields a descent step; p is as good as it gets
				converged = true
				break
			}

			damped.CopySym(&jtj)
			for i := 0; i < n; i++ {
				damped.SetSym(i, i, jtj.At(i, i)*(1+lambda))
			}
			if ok := chol.Factorize(damped); !ok {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(&delta, &grad); err != nil {
				lambda *= 10
				continue
			}

			for i := range trial {
				trial[i] = p[i] + delta.AtVec(i)
			}
			small := stepIsSmall(delta.RawVector().Data, p, settings.Xtol)
			trialResid := make([]float64, m)
			trialSSR := residuals(trialResid, model, t, y, trial)

			if trialSSR < ssr && !math.IsNaN(trialSSR) {
				reduction := ssr - trialSSR
				copy(p, trial)
				resid = trialResid
				prev := ssr
				ssr = trialSSR
				lambda /= 10
				if small || reduction <= settings.Ftol*prev {
					converged = true
				}
				break
			}

			lambda *= 10
			if small {
				converged = true
				break
			}
		}
	}

	if !converged {
		return nil, fmt.Errorf("%w after %d iterations (ssr=%g)", ErrNoConvergence, iter, ssr)
	}
	monitoring.Debugf("fit converged after %d iterations, ssr=%g", iter, ssr)

	cov, err := covariance(jac, model, t, p, ssr, m, n)
	if err != nil {
		return nil, err
	}
	return &Result{Params: p, Cov: cov, SSR: ssr, Iterations: iter}, nil
}

func covariance(jac *mat.Dense, model Model, t, p []float64, ssr float64, m, n int) (*mat.SymDense, error) {
	jacobian(jac, model, t, p)
	var jtj mat.SymDense
	jtj.SymOuterK(1, jac.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&jtj); !ok {
		return nil, ErrSingularJacobian
	}
	cov := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularJacobian, err)
	}

	scale := math.Inf(1)
	if m > n {
		scale = ssr / float64(m-n)
	}
	cov.ScaleSym(scale, cov)
	return cov, nil
}

func residuals(dst []float64, model Model, t, y, p []float64) float64 {
	for i := range t {
		dst[i] = y[i] - model.Eval(t[i], p)
	}
	return floats.Dot(dst, dst)
}

// jacobian fills dst with ∂model(t[i])/∂p[j].
func jacobian(dst *mat.Dense, model Model, t, p []float64) {
	if g, ok := model.(Gradienter); ok {
		row := make([]float64, model.NumParams())
		for i, ti := range t {
			g.Gradient(row, ti, p)
			dst.SetRow(i, row)
		}
		return
	}
	fd.Jacobian(dst, func(out, x []float64) {
		for i, ti := range t {
			out[i] = model.Eval(ti, x)
		}
	}, p, &fd.JacobianSettings{Formula: fd.Central})
}

func stepIsSmall(step, p []float64, xtol float64) bool {
	return floats.Norm(step, 2) <= xtol*(floats.Norm(p, 2)+xtol)
}
