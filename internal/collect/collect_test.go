package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mco/internal/device"
	"github.com/banshee-data/mco/internal/fsutil"
	"github.com/banshee-data/mco/internal/timeutil"
)

// stream builds n sample lines whose cycle counter starts at first.
func stream(first, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d %d %d\n", (first+i)%256, 10*i, -i)
	}
	return b.String()
}

func newCollector(t *testing.T, replies string) (*Collector, *device.TestableSerialPort, *fsutil.MemoryFileSystem) {
	t.Helper()
	port := device.NewTestableSerialPort()
	port.AddReadData([]byte(replies))
	fsys := fsutil.NewMemoryFileSystem()
	c := &Collector{
		Device: device.NewClient(port),
		FS:     fsys,
		Clock:  timeutil.NewMockClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)),
	}
	return c, port, fsys
}

func TestCollect_AlignsToCycleBoundary(t *testing.T) {
	// the stream starts at 254, so 254 and 255 are dropped
	c, port, fsys := newCollector(t, "2.50\n400\n"+stream(254, 2+2*256+10))

	res, err := c.Collect(context.Background(), 2, "run.dat")
	require.NoError(t, err)

	assert.Equal(t, "freq?\nampl?\nrept 1\nrept 0\n", port.Written())
	assert.Equal(t, 2, res.Cycles)
	assert.Equal(t, 512, res.Lines)
	assert.Equal(t, 1, res.Skipped)
	assert.InDelta(t, 2.5, res.Frequency, 1e-12)
	assert.Equal(t, 400, res.Amplitude)

	data, err := fsys.ReadFile("run.dat")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2+512)
	assert.Equal(t, "# Frequency = 2.50", lines[0])
	assert.Equal(t, "# Amplitude = 400", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "0 "), "first sample %q", lines[2])
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "255 "), "last sample %q", lines[len(lines)-1])

	// lines are copied verbatim
	assert.Equal(t, strings.Split(stream(254, 2+512), "\n")[2:2+512], lines[2:])
}

func TestCollect_SkipsNoiseBeforeSentinel(t *testing.T) {
	noise := "ok\n\nrept on\n12 3 4\n"
	c, _, fsys := newCollector(t, "1.00\n250\n"+noise+stream(255, 1+256))

	res, err := c.Collect(context.Background(), 1, "noise.dat")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Skipped)

	data, err := fsys.ReadFile("noise.dat")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), Header(1.0, 250)+"0 "))
	assert.Equal(t, 2+256, strings.Count(string(data), "\n"))
}

func TestCollect_SyncLineBound(t *testing.T) {
	// counters 0..199 never reach 255
	c, port, fsys := newCollector(t, "1.00\n400\n"+stream(0, 200))
	c.SyncMaxLines = 150

	res, err := c.Collect(context.Background(), 1, "never.dat")
	assert.ErrorIs(t, err, ErrSyncTimeout)
	assert.Nil(t, res)

	// reporting is switched off and the header-only file is left behind
	assert.True(t, strings.HasSuffix(port.Written(), "rept 1\nrept 0\n"))
	data, err := fsys.ReadFile("never.dat")
	require.NoError(t, err)
	assert.Equal(t, Header(1.0, 400), string(data))
}

func TestCollect_SyncTimeBound(t *testing.T) {
	c, port, _ := newCollector(t, "1.00\n400\n")
	clock := timeutil.NewMockClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	clock.SetStep(time.Second)
	c.Clock = clock
	c.SyncTimeout = 5 * time.Second

	// every read times out; the wall-clock bound ends the wait
	_, err := c.Collect(context.Background(), 1, "quiet.dat")
	assert.ErrorIs(t, err, ErrSyncTimeout)
	assert.Less(t, port.ReadCalls, DefaultSyncMaxLines)
}

func TestCollect_ShortStream(t *testing.T) {
	c, port, fsys := newCollector(t, "1.00\n400\n"+stream(255, 1+100))

	_, err := c.Collect(context.Background(), 1, "short.dat")
	assert.ErrorIs(t, err, device.ErrReadTimeout)
	assert.True(t, strings.HasSuffix(port.Written(), "rept 0\n"))

	// partial data is kept
	data, err := fsys.ReadFile("short.dat")
	require.NoError(t, err)
	assert.Equal(t, 2+100, strings.Count(string(data), "\n"))
}

func TestCollect_Cancelled(t *testing.T) {
	c, port, _ := newCollector(t, "1.00\n400\n"+stream(255, 1+256))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Collect(ctx, 1, "cancel.dat")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.HasSuffix(port.Written(), "rept 0\n"))
}

func TestCollect_QueryFailures(t *testing.T) {
	c, port, fsys := newCollector(t, "fast\n")
	_, err := c.Collect(context.Background(), 1, "bad.dat")
	assert.Error(t, err)
	assert.NotContains(t, port.Written(), "rept")
	assert.False(t, fsys.Exists("bad.dat"), "no file before the header is known")

	c, _, _ = newCollector(t, "1.00\nloud\n")
	_, err = c.Collect(context.Background(), 1, "bad.dat")
	assert.Error(t, err)
}

func TestCollect_InvalidCycles(t *testing.T) {
	c, port, _ := newCollector(t, "")
	_, err := c.Collect(context.Background(), 0, "x.dat")
	assert.Error(t, err)
	assert.Empty(t, port.Written())
}

func TestCollect_ReadErrorDuringSync(t *testing.T) {
	c, port, _ := newCollector(t, "1.00\n400\n")
	port.TimeoutOnEmpty = false

	_, err := c.Collect(context.Background(), 1, "eof.dat")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSyncTimeout))
}

func TestCollect_Simulator(t *testing.T) {
	sim := device.NewSimulator()
	fsys := fsutil.NewMemoryFileSystem()
	c := New(device.NewClient(sim))
	c.FS = fsys

	res, err := c.Collect(context.Background(), 3, "sim.dat")
	require.NoError(t, err)
	assert.Equal(t, 768, res.Lines)
	assert.False(t, sim.Reporting())
	assert.False(t, res.Finished.Before(res.Started))

	data, err := fsys.ReadFile("sim.dat")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2+768)
	for i, line := range lines[2:] {
		counter, ok := cycleCounter(line)
		require.True(t, ok, "line %q", line)
		assert.Equal(t, i%256, counter)
	}
}

func TestCycleCounter(t *testing.T) {
	tests := []struct {
		line string
		want int
		ok   bool
	}{
		{"255 10 -3", 255, true},
		{"  7\t1 2", 7, true},
		{"", 0, false},
		{"ok", 0, false},
		{"2.5 1 1", 0, false},
	}
	for _, tt := range tests {
		got, ok := cycleCounter(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}
