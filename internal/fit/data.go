package fit

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// DefaultSkipRows is the number of header lines in a recorded series.
const DefaultSkipRows = 2

// Series is a measured angular position φ(t).
type Series struct {
	T []float64
	Y []float64
}

// Len returns the number of points.
func (s *Series) Len() int { return len(s.T) }

// TimeSpan returns the first and last time in the series.
func (s *Series) TimeSpan() (float64, float64) {
	return floats.Min(s.T), floats.Max(s.T)
}

// ValueSpan returns the smallest and largest measured value.
func (s *Series) ValueSpan() (float64, float64) {
	return floats.Min(s.Y), floats.Max(s.Y)
}

// LoadSeries reads a two-column delimited table of time and value, skipping
// the first skip lines. A zero delim splits on whitespace. Blank lines are
// ignored.
func LoadSeries(r io.Reader, delim rune, skip int) (*Series, error) {
	s := &Series{}
	scan := bufio.NewScanner(r)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		if lineNo <= skip {
			continue
		}
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}

		var fields []string
		if delim == 0 {
			fields = strings.Fields(line)
		} else {
			fields = strings.Split(line, string(delim))
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 columns, got %d", lineNo, len(fields))
		}

		t, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: time: %w", lineNo, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: value: %w", lineNo, err)
		}
		s.T = append(s.T, t)
		s.Y = append(s.Y, y)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrInsufficientData)
	}
	return s, nil
}
