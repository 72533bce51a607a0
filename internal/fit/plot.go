package fit

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PlotWidth and PlotHeight are the saved figure size.
const (
	PlotWidth  = 10 * vg.Inch
	PlotHeight = 6 * vg.Inch
)

// Title formats the optimized parameters as the figure title.
func Title(p Params) string {
	return fmt.Sprintf("Optimized values: A = %.2f rad, φ0 = %.2f rad, β = %.2f s⁻¹, ωd = %.2f rad/s",
		p.A, p.Phi0, p.Beta, p.OmegaD)
}

func toXYs(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts
}

// RenderPlot overlays the measured series with the guess and fitted
// oscillator curves.
func RenderPlot(s *Series, guess, fitted Params) (*plot.Plot, error) {
	if s.Len() == 0 {
		return nil, ErrInsufficientData
	}
	var model DampedOscillator
	t0, t1 := s.TimeSpan()
	y0, y1 := s.ValueSpan()

	p := plot.New()
	p.Title.Text = Title(fitted)
	p.X.Label.Text = "t [s]"
	p.Y.Label.Text = "Angular Position φ [rad]"
	p.Add(plotter.NewGrid())

	data, err := plotter.NewScatter(toXYs(s.T, s.Y))
	if err != nil {
		return nil, err
	}
	data.GlyphStyle.Color = color.Black
	data.GlyphStyle.Shape = draw.CircleGlyph{}
	data.GlyphStyle.Radius = vg.Points(1.5)

	guessLine, err := plotter.NewLine(toXYs(Curve(model, guess.Slice(), t0, t1, DefaultCurvePoints)))
	if err != nil {
		return nil, err
	}
	guessLine.LineStyle.Color = color.RGBA{R: 255, A: 255}
	guessLine.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}

	fitLine, err := plotter.NewLine(toXYs(Curve(model, fitted.Slice(), t0, t1, DefaultCurvePoints)))
	if err != nil {
		return nil, err
	}
	fitLine.LineStyle.Color = color.RGBA{B: 255, A: 255}

	p.Add(data, guessLine, fitLine)
	p.Legend.Add("Data", data)
	p.Legend.Add("Guess", guessLine)
	p.Legend.Add("Fit", fitLine)
	p.Legend.Left = true
	p.Legend.Top = false

	p.X.Min, p.X.Max = t0, t1
	p.Y.Min, p.Y.Max = y0, y1
	return p, nil
}

// SavePlot writes p to path; the format follows the file extension.
func SavePlot(p *plot.Plot, path string) error {
	if err := p.Save(PlotWidth, PlotHeight, path); err != nil {
		return fmt.Errorf("failed to save plot to %s: %w", path, err)
	}
	return nil
}
