package phasespace

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderPreview writes an interactive HTML scatter of sf to w. The polar
// projection is drawn on x/y axes like the static figure.
func RenderPreview(w io.Writer, sf *SampleFile, polar bool) error {
	if len(sf.Samples) == 0 {
		return ErrNoSamples
	}

	pts := CartesianPoints(sf)
	xName, yName := "Angle (rad)", "Angular Velocity (rad/s)"
	rmax := RadialLimit(sf)
	xMin, xMax := -math.Pi, math.Pi
	if polar {
		pts = PolarPoints(sf)
		xName, yName = "ω cos θ (rad/s)", "ω sin θ (rad/s)"
		xMin, xMax = -rmax, rmax
	}

	data := make([]opts.ScatterData, 0, len(pts))
	for _, pt := range pts {
		data = append(data, opts.ScatterData{Value: []interface{}{pt.X, pt.Y}})
	}

	subtitle := fmt.Sprintf("samples=%d", len(sf.Samples))
	if sf.Header.HasFrequency {
		subtitle += fmt.Sprintf(" frequency=%.2f", sf.Header.Frequency)
	}
	if sf.Header.HasAmplitude {
		subtitle += fmt.Sprintf(" amplitude=%d", sf.Header.Amplitude)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: sf.Path, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: sf.Path, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: xMin, Max: xMax, Name: xName, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: -rmax, Max: rmax, Name: yName, NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("samples", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}
	return nil
}
