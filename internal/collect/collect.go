// Package collect records cycle-aligned raw sample streams from the MCO into
// flat data files.
package collect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/mco/internal/device"
	"github.com/banshee-data/mco/internal/fsutil"
	"github.com/banshee-data/mco/internal/monitoring"
	"github.com/banshee-data/mco/internal/timeutil"
)

// ErrSyncTimeout is returned when no cycle boundary is seen within the
// configured number of lines or time.
var ErrSyncTimeout = errors.New("timed out waiting for cycle boundary")

// Defaults for the synchronization bound.
const (
	DefaultSyncTimeout  = 10 * time.Second
	DefaultSyncMaxLines = 4 * device.SamplesPerCycle
)

// Device is the part of device.Client the collector drives.
type Device interface {
	Frequency() (float64, error)
	Amplitude() (int, error)
	SetReporting(on bool) error
	ReadLine() (string, error)
}

// Collector captures N drive cycles of samples into a file.
type Collector struct {
	Device Device
	FS     fsutil.FileSystem
	Clock  timeutil.Clock

	// SyncTimeout and SyncMaxLines bound the wait for the first cycle
	// boundary. Zero values use the defaults.
	SyncTimeout  time.Duration
	SyncMaxLines int
}

// Result describes a completed collection.
type Result struct {
	Path      string
	Cycles    int
	Lines     int
	Frequency float64
	Amplitude int
	// Skipped is the number of lines discarded before the cycle boundary.
	Skipped  int
	Started  time.Time
	Finished time.Time
}

// New returns a Collector for dev writing through the real filesystem.
func New(dev Device) *Collector {
	return &Collector{
		Device: dev,
		FS:     fsutil.OSFileSystem{},
		Clock:  timeutil.RealClock{},
	}
}

// Header formats the two comment lines that open every data file.
func Header(frequency float64, amplitude int) string {
	return fmt.Sprintf("# Frequency = %0.2f\n# Amplitude = %d\n", frequency, amplitude)
}

// Collect records exactly cycles*256 sample lines into path: the lines that
// follow the first line whose cycle counter is the 255 sentinel, so the file
// starts on a cycle boundary. The frequency and amplitude
// header is queried from the device on each call. Once reporting has been
// enabled it is always disabled again before returning, and the file is
// always closed; a partially written file is left in place on error.
func (c *Collector) Collect(ctx context.Context, cycles int, path string) (res *Result, err error) {
	if cycles <= 0 {
		return nil, fmt.Errorf("cycle count must be positive, got %d", cycles)
	}

	clock := c.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	fsys := c.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	lines := device.SamplesPerCycle * cycles
	monitoring.Logf("Saving %d data points to file '%s'.", lines, path)

	res = &Result{Path: path, Cycles: cycles, Started: clock.Now()}

	res.Frequency, err = c.Device.Frequency()
	if err != nil {
		return nil, fmt.Errorf("failed to query frequency: %w", err)
	}
	res.Amplitude, err = c.Device.Amplitude()
	if err != nil {
		return nil, fmt.Errorf("failed to query amplitude: %w", err)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	defer func() {
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("failed to write %s: %w", path, ferr)
		}
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
		if err != nil {
			res = nil
		}
	}()

	if _, err := w.WriteString(Header(res.Frequency, res.Amplitude)); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	if err := c.Device.SetReporting(true); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := c.Device.SetReporting(false); rerr != nil && err == nil {
			err = rerr
		}
	}()

	skipped, err := c.synchronize(ctx, clock)
	if err != nil {
		return nil, err
	}
	res.Skipped = skipped

	for res.Lines < lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := c.Device.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("failed to read sample %d of %d: %w", res.Lines+1, lines, err)
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return nil, fmt.Errorf("failed to write sample: %w", err)
		}
		res.Lines++
	}

	res.Finished = clock.Now()
	return res, nil
}

// synchronize discards lines up to and including the first one whose first
// field is the sentinel cycle counter. It returns the number of lines
// dropped before the sentinel. Lines that do not start with an
// integer and read timeouts count towards the bound but are otherwise
// ignored.
func (c *Collector) synchronize(ctx context.Context, clock timeutil.Clock) (int, error) {
	maxLines := c.SyncMaxLines
	if maxLines <= 0 {
		maxLines = DefaultSyncMaxLines
	}
	timeout := c.SyncTimeout
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}

	start := clock.Now()
	for skipped := 0; ; skipped++ {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		if skipped >= maxLines {
			return skipped, fmt.Errorf("%w: no counter %d in %d lines", ErrSyncTimeout, device.SentinelCounter, skipped)
		}
		if elapsed := clock.Since(start); elapsed > timeout {
			return skipped, fmt.Errorf("%w: no counter %d after %s", ErrSyncTimeout, device.SentinelCounter, elapsed)
		}

		line, err := c.Device.ReadLine()
		if err != nil {
			if errors.Is(err, device.ErrReadTimeout) {
				monitoring.Debugf("sync: read timeout after %d lines", skipped)
				continue
			}
			return skipped, fmt.Errorf("failed to read while synchronizing: %w", err)
		}

		if counter, ok := cycleCounter(line); ok && counter == device.SentinelCounter {
			return skipped, nil
		}
		monitoring.Debugf("sync: skipping %q", line)
	}
}

// cycleCounter parses the first whitespace-delimited field of a sample line.
func cycleCounter(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return n, true
}
