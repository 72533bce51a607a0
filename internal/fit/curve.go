package fit

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultCurvePoints is the resolution of prediction curves.
const DefaultCurvePoints = 10001

// Curve evaluates model with params at n evenly spaced times in [t0, t1].
func Curve(model Model, params []float64, t0, t1 float64, n int) (ts, ys []float64) {
	if n < 2 {
		n = 2
	}
	ts = floats.Span(make([]float64, n), t0, t1)
	ys = make([]float64, n)
	for i, t := range ts {
		ys[i] = model.Eval(t, params)
	}
	return ts, ys
}

// ResidualStats returns the mean and standard deviation of the residuals of
// model against s.
func ResidualStats(model Model, params []float64, s *Series) (mean, std float64) {
	resid := make([]float64, s.Len())
	residuals(resid, model, s.T, s.Y, params)
	return stat.MeanStdDev(resid, nil)
}
