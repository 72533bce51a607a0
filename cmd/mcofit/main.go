package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"
	"unicode/utf8"

	"github.com/banshee-data/mco/internal/catalog"
	"github.com/banshee-data/mco/internal/fit"
	"github.com/banshee-data/mco/internal/monitoring"
	"github.com/banshee-data/mco/internal/version"
)

var (
	dataFile    = flag.String("data", "damped_undriven.dat", "Two-column time/angle data file")
	delimFlag   = flag.String("delim", `\t`, `Column delimiter: a single character, \t, or "ws" for any whitespace`)
	skipRows    = flag.Int("skip", fit.DefaultSkipRows, "Header rows to skip")
	guessA      = flag.Float64("A", fit.DefaultGuess().A, "Initial amplitude guess (rad)")
	guessPhi0   = flag.Float64("phi0", fit.DefaultGuess().Phi0, "Initial phase guess (rad)")
	guessBeta   = flag.Float64("beta", fit.DefaultGuess().Beta, "Initial damping rate guess (1/s)")
	guessOmegaD = flag.Float64("omegad", fit.DefaultGuess().OmegaD, "Initial damped angular frequency guess (rad/s)")
	maxIter     = flag.Int("maxiter", fit.DefaultSettings().MaxIterations, "Iteration limit for the optimizer")
	outFile     = flag.String("out", "fit.png", "Plot output; the extension selects the format (.png, .pdf, .svg)")
	catalogFlag = flag.String("catalog", "", "SQLite catalog to record the fit in")
	verbose     = flag.Bool("verbose", false, "Log debug detail")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("mcofit"))
		return
	}

	monitoring.SetLogger(log.Printf)
	monitoring.SetVerbose(*verbose)

	delim, err := parseDelimiter(*delimFlag)
	if err != nil {
		log.Fatal(err)
	}

	job := fitJob{
		DataPath: *dataFile,
		Delim:    delim,
		Skip:     *skipRows,
		Guess:    fit.Params{A: *guessA, Phi0: *guessPhi0, Beta: *guessBeta, OmegaD: *guessOmegaD},
		MaxIter:  *maxIter,
		OutPath:  *outFile,
		Catalog:  *catalogFlag,
	}
	if err := job.run(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case `\t`, "tab":
		return '\t', nil
	case "ws", "":
		return 0, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

type fitJob struct {
	DataPath string
	Delim    rune
	Skip     int
	Guess    fit.Params
	MaxIter  int
	OutPath  string
	Catalog  string
}

// run fits the data file and prints the guess, the fit and the parameter
// variances, one line each.
func (j fitJob) run(stdout io.Writer) error {
	f, err := os.Open(j.DataPath)
	if err != nil {
		return err
	}
	series, err := fit.LoadSeries(f, j.Delim, j.Skip)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", j.DataPath, err)
	}

	g := j.Guess
	fmt.Fprintln(stdout, g.A, g.Phi0, g.Beta, g.OmegaD)

	settings := fit.DefaultSettings()
	if j.MaxIter > 0 {
		settings.MaxIterations = j.MaxIter
	}
	var model fit.DampedOscillator
	res, err := fit.CurveFit(model, series.T, series.Y, g.Slice(), settings)
	if err != nil {
		return err
	}
	opt, err := fit.ParamsFrom(res.Params)
	if err != nil {
		return err
	}
	vars := res.Variances()

	fmt.Fprintln(stdout, opt.A, opt.Phi0, opt.Beta, opt.OmegaD)
	fmt.Fprintln(stdout, vars[0], vars[1], vars[2], vars[3])

	mean, std := fit.ResidualStats(model, res.Params, series)
	monitoring.Logf("fit of %d points: %d iterations, ssr=%.4g, residual mean=%.3g std=%.3g",
		series.Len(), res.Iterations, res.SSR, mean, std)

	if j.OutPath != "" {
		p, err := fit.RenderPlot(series, g, opt)
		if err != nil {
			return err
		}
		if err := fit.SavePlot(p, j.OutPath); err != nil {
			return err
		}
		monitoring.Logf("wrote plot to %s", j.OutPath)
	}

	if j.Catalog != "" {
		cat, err := catalog.Open(j.Catalog)
		if err != nil {
			return err
		}
		defer cat.Close()
		rec := &catalog.FitRecord{
			DataPath:   j.DataPath,
			Points:     series.Len(),
			SSR:        res.SSR,
			Iterations: res.Iterations,
			CreatedAt:  time.Now(),
		}
		copy(rec.Params[:], res.Params)
		copy(rec.Variances[:], vars)
		if err := cat.RecordFit(rec); err != nil {
			return err
		}
	}
	return nil
}
