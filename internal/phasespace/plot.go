package phasespace

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/mco/internal/fsutil"
	"github.com/banshee-data/mco/internal/monitoring"
	"github.com/banshee-data/mco/internal/security"
)

// ErrNoSamples is returned when a sample file has no data rows.
var ErrNoSamples = errors.New("no samples to plot")

var (
	sampleColor = color.RGBA{B: 255, A: 255}
	guideColor  = color.Gray{Y: 200}
)

// Options selects the projection and whether the figure is saved.
type Options struct {
	Polar bool
	Save  bool
}

// Output lists the files a Plot call produced.
type Output struct {
	PDF     string
	Preview string
}

// Plotter renders sample files. Saved figures go next to the data file;
// previews go to PreviewDir.
type Plotter struct {
	FS         fsutil.FileSystem
	PreviewDir string
	Width      vg.Length
	Height     vg.Length
}

// NewPlotter returns a Plotter on the real filesystem.
func NewPlotter(previewDir string) *Plotter {
	return &Plotter{
		FS:         fsutil.OSFileSystem{},
		PreviewDir: previewDir,
		Width:      6 * vg.Inch,
		Height:     6 * vg.Inch,
	}
}

// Plot reads path and renders its phase-space plot. With opts.Save the
// figure is written to path+".pdf" first; the interactive preview is then
// written to PreviewDir and its location logged.
func (p *Plotter) Plot(path string, opts Options) (*Output, error) {
	fsys := p.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	sf, err := ReadSampleFile(fsys, path)
	if err != nil {
		return nil, err
	}

	fig, err := Render(sf, opts.Polar)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	if opts.Save {
		out.PDF = path + ".pdf"
		if err := p.writeFigure(fsys, fig, out.PDF, "pdf"); err != nil {
			return nil, err
		}
		monitoring.Logf("saved figure to %s", out.PDF)
	}

	out.Preview, err = p.writePreview(fsys, sf, opts.Polar)
	if err != nil {
		return out, err
	}
	monitoring.Logf("plot preview written to %s", out.Preview)
	return out, nil
}

func (p *Plotter) size() (vg.Length, vg.Length) {
	w, h := p.Width, p.Height
	if w <= 0 {
		w = 6 * vg.Inch
	}
	if h <= 0 {
		h = w
	}
	return w, h
}

func (p *Plotter) writeFigure(fsys fsutil.FileSystem, fig *plot.Plot, name, format string) (err error) {
	w, h := p.size()
	wt, err := fig.WriterTo(w, h, format)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", format, err)
	}

	f, err := fsys.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := wt.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (p *Plotter) writePreview(fsys fsutil.FileSystem, sf *SampleFile, polar bool) (name string, err error) {
	dir := p.PreviewDir
	if dir == "" {
		dir = "."
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create preview dir: %w", err)
	}

	name = filepath.Join(dir, security.SanitizeFilename(filepath.Base(sf.Path))+".html")
	f, err := fsys.Create(name)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := RenderPreview(f, sf, polar); err != nil {
		return "", err
	}
	return name, nil
}

// Render builds the phase-space figure for sf in the cartesian or polar
// projection.
func Render(sf *SampleFile, polar bool) (*plot.Plot, error) {
	if len(sf.Samples) == 0 {
		return nil, ErrNoSamples
	}
	if polar {
		return renderPolar(sf)
	}
	return renderCartesian(sf)
}

func newScatter(pts plotter.XYs) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = sampleColor
	s.GlyphStyle.Radius = vg.Points(0.75)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	return s, nil
}

// CartesianPoints returns (angle, velocity) pairs in radian units.
func CartesianPoints(sf *SampleFile) plotter.XYs {
	angles, velocities := sf.Angles(), sf.Velocities()
	pts := make(plotter.XYs, len(angles))
	for i := range angles {
		pts[i].X = angles[i]
		pts[i].Y = velocities[i]
	}
	return pts
}

func renderCartesian(sf *SampleFile) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = sf.Path
	p.X.Label.Text = "Angle (radians)"
	p.Y.Label.Text = "Angular Velocity (radians/second)"

	s, err := newScatter(CartesianPoints(sf))
	if err != nil {
		return nil, err
	}
	p.Add(s)

	// angles are not wrapped; the view is what restricts them
	p.X.Min = -math.Pi
	p.X.Max = math.Pi
	return p, nil
}

// PolarPoints projects each sample onto the plane with the angle as the
// angular coordinate and the speed as the radius.
func PolarPoints(sf *SampleFile) plotter.XYs {
	angles, velocities := sf.Angles(), sf.Velocities()
	pts := make(plotter.XYs, len(angles))
	for i := range angles {
		r := math.Abs(velocities[i])
		pts[i].X = r * math.Cos(angles[i])
		pts[i].Y = r * math.Sin(angles[i])
	}
	return pts
}

// RadialLimit is the polar plot's outer radius: the ceiling of the largest
// speed in rad/s, and at least 1.
func RadialLimit(sf *SampleFile) float64 {
	rmax := 0.0
	for _, v := range sf.Velocities() {
		rmax = math.Max(rmax, math.Abs(v))
	}
	return math.Max(1, math.Ceil(rmax))
}

func renderPolar(sf *SampleFile) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = sf.Path
	p.X.Label.Text = "ω cos θ (radians/second)"
	p.Y.Label.Text = "ω sin θ (radians/second)"

	rmax := RadialLimit(sf)

	// guide rings at quarters of the radial limit and spokes every 45°
	for k := 1; k <= 4; k++ {
		ring, err := plotter.NewLine(circle(rmax*float64(k)/4, 181))
		if err != nil {
			return nil, err
		}
		ring.LineStyle.Color = guideColor
		p.Add(ring)
	}
	for k := 0; k < 8; k++ {
		theta := float64(k) * math.Pi / 4
		spoke, err := plotter.NewLine(plotter.XYs{{}, {X: rmax * math.Cos(theta), Y: rmax * math.Sin(theta)}})
		if err != nil {
			return nil, err
		}
		spoke.LineStyle.Color = guideColor
		p.Add(spoke)
	}

	s, err := newScatter(PolarPoints(sf))
	if err != nil {
		return nil, err
	}
	p.Add(s)

	p.X.Min, p.X.Max = -rmax, rmax
	p.Y.Min, p.Y.Max = -rmax, rmax
	return p, nil
}

func circle(r float64, n int) plotter.XYs {
	pts := make(plotter.XYs, n)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / float64(n-1)
		pts[i].X = r * math.Cos(theta)
		pts[i].Y = r * math.Sin(theta)
	}
	return pts
}
