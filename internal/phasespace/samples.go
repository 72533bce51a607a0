// Package phasespace reads collected MCO sample files and renders angle
// versus angular-velocity plots of them.
package phasespace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/mco/internal/fsutil"
	"github.com/banshee-data/mco/internal/units"
)

// ErrMalformed is returned for a sample row that is not three integers.
var ErrMalformed = errors.New("malformed sample row")

// Sample is one device report in raw encoder counts.
type Sample struct {
	Cycle    int
	Angle    int
	Velocity int
}

// Header carries the drive settings recorded at the top of a sample file.
// HasFrequency and HasAmplitude report whether the lines were present.
type Header struct {
	Frequency    float64
	Amplitude    int
	HasFrequency bool
	HasAmplitude bool
}

// SampleFile is a parsed collection file.
type SampleFile struct {
	Path    string
	Header  Header
	Samples []Sample
}

// ReadSampleFile opens and parses path.
func ReadSampleFile(fsys fsutil.FileSystem, path string) (*SampleFile, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sf, err := ParseSamples(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sf.Path = path
	return sf, nil
}

// ParseSamples parses a sample table: optional "# Frequency = f" and
// "# Amplitude = n" comment lines followed by whitespace-delimited
// "counter angle velocity" rows. Other comment lines and blank lines are
// ignored.
func ParseSamples(r io.Reader) (*SampleFile, error) {
	sf := &SampleFile{}
	scan := bufio.NewScanner(r)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			parseHeaderLine(&sf.Header, line)
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected 3 columns, got %d", ErrMalformed, lineNo, len(fields))
		}
		var vals [3]int
		for i, field := range fields {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: column %d: %w", ErrMalformed, lineNo, i+1, err)
			}
			vals[i] = v
		}
		sf.Samples = append(sf.Samples, Sample{Cycle: vals[0], Angle: vals[1], Velocity: vals[2]})
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return sf, nil
}

func parseHeaderLine(h *Header, line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "#")), "=")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "frequency":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			h.Frequency = v
			h.HasFrequency = true
		}
	case "amplitude":
		if v, err := strconv.Atoi(value); err == nil {
			h.Amplitude = v
			h.HasAmplitude = true
		}
	}
}

// Angles returns the sample angles in radians.
func (sf *SampleFile) Angles() []float64 {
	out := make([]float64, len(sf.Samples))
	for i, s := range sf.Samples {
		out[i] = units.CountsToRadians(float64(s.Angle))
	}
	return out
}

// Velocities returns the sample angular velocities in radians per second.
func (sf *SampleFile) Velocities() []float64 {
	out := make([]float64, len(sf.Samples))
	for i, s := range sf.Samples {
		out[i] = units.CountsToRadians(float64(s.Velocity))
	}
	return out
}
