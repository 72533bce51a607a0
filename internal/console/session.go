// Package console implements the interactive MCO console: a read-eval loop
// over typed commands that collects data, plots it and forwards everything
// else to the device.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mco/internal/catalog"
	"github.com/banshee-data/mco/internal/collect"
	"github.com/banshee-data/mco/internal/device"
	"github.com/banshee-data/mco/internal/fsutil"
	"github.com/banshee-data/mco/internal/monitoring"
	"github.com/banshee-data/mco/internal/phasespace"
	"github.com/banshee-data/mco/internal/timeutil"
)

// Prompt is printed before each command is read.
const Prompt = "-> "

// NoFilenameMessage is printed by p and l before any collection.
const NoFilenameMessage = "No filename given."

// saveByDefault applies when p or l is given without the "s" argument.
const saveByDefault = false

// ErrUsage reports a malformed console command. The session continues.
var ErrUsage = errors.New("usage")

// RunRecorder stores completed collections.
type RunRecorder interface {
	RecordRun(r *catalog.Run) error
}

// Options configures a Session. Zero values select the defaults used by the
// collect and phasespace packages.
type Options struct {
	Out          io.Writer
	FS           fsutil.FileSystem
	Clock        timeutil.Clock
	SyncTimeout  time.Duration
	SyncMaxLines int
	FlushBytes   int
	PreviewDir   string
	Catalog      RunRecorder
}

// Session is the state of one console run. The device client is owned by
// the caller, which closes it when the session ends.
type Session struct {
	ID string

	client    *device.Client
	collector *collect.Collector
	plotter   *phasespace.Plotter
	catalog   RunRecorder
	out       io.Writer

	flushBytes int
	filename   string
}

// NewSession prepares a session on client.
func NewSession(client *device.Client, opts Options) *Session {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	collector := collect.New(client)
	collector.FS = fsys
	if opts.Clock != nil {
		collector.Clock = opts.Clock
	}
	collector.SyncTimeout = opts.SyncTimeout
	collector.SyncMaxLines = opts.SyncMaxLines

	plotter := phasespace.NewPlotter(opts.PreviewDir)
	plotter.FS = fsys

	return &Session{
		ID:         uuid.NewString(),
		client:     client,
		collector:  collector,
		plotter:    plotter,
		catalog:    opts.Catalog,
		out:        out,
		flushBytes: opts.FlushBytes,
	}
}

// Filename returns the file the last collection wrote, or "" if none.
func (s *Session) Filename() string { return s.filename }

// Start identifies the device and prints its reply.
func (s *Session) Start() error {
	idn, err := s.client.Identify()
	if errors.Is(err, device.ErrReadTimeout) {
		fmt.Fprintf(s.out, "%s\n", idn)
		monitoring.Logf("device did not answer *idn? before the read timeout")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s\n", idn)
	return nil
}

// Run reads commands from in until quit, end of input, a fatal error or
// cancellation of ctx. Recoverable errors are printed and the loop
// continues.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scan := bufio.NewScanner(in)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scan.Err()
	}()

	for {
		fmt.Fprint(s.out, Prompt)

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(s.out)
			select {
			case err := <-readErr:
				return err
			default:
				return ctx.Err()
			}
		}

		quit, err := s.Dispatch(ctx, ParseCommand(line))
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			if !Recoverable(err) {
				return err
			}
		}
		if quit {
			return nil
		}
	}
}

// Recoverable reports whether err leaves the session usable: bad input,
// missing or malformed files, a read timeout or a failed synchronization.
// Anything else is a device transport failure.
func Recoverable(err error) bool {
	var pathErr *fs.PathError
	var numErr *strconv.NumError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrUsage),
		errors.Is(err, collect.ErrSyncTimeout),
		errors.Is(err, device.ErrReadTimeout),
		errors.Is(err, phasespace.ErrNoSamples),
		errors.Is(err, phasespace.ErrMalformed),
		errors.As(err, &pathErr),
		errors.As(err, &numErr):
		return true
	}
	return false
}

// Dispatch executes one command. quit is true only when the whole line is
// "quit"; "quit now" goes to the device like any other text.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (quit bool, err error) {
	if strings.TrimSpace(cmd.Raw) == "quit" {
		return true, nil
	}
	switch cmd.Verb {
	case "":
		return false, s.drain()
	case "c":
		return false, s.collect(ctx, cmd.Args)
	case "p", "l":
		return false, s.plot(cmd.Verb == "l", cmd.Args)
	case "f":
		_, err := s.client.Flush(s.flushBytes)
		return false, err
	default:
		return false, s.passThrough(cmd.Raw)
	}
}

// drain prints one pending line from the device.
func (s *Session) drain() error {
	line, err := s.client.ReadLine()
	if err != nil && !errors.Is(err, device.ErrReadTimeout) {
		return err
	}
	fmt.Fprintln(s.out, line)
	return nil
}

func (s *Session) passThrough(raw string) error {
	if err := s.client.Send(raw); err != nil {
		return err
	}
	return s.drain()
}

func (s *Session) collect(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: c N filename", ErrUsage)
	}
	cycles, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: cycle count %q is not an integer", ErrUsage, args[0])
	}
	if cycles <= 0 {
		return fmt.Errorf("%w: cycle count must be positive, got %d", ErrUsage, cycles)
	}

	s.filename = args[1]
	res, err := s.collector.Collect(ctx, cycles, s.filename)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Wrote %d lines to %s (skipped %d before sync).\n", res.Lines, res.Path, res.Skipped)

	if s.catalog != nil {
		run := &catalog.Run{
			SessionID:  s.ID,
			Path:       res.Path,
			Cycles:     res.Cycles,
			Lines:      res.Lines,
			Frequency:  res.Frequency,
			Amplitude:  res.Amplitude,
			Skipped:    res.Skipped,
			StartedAt:  res.Started,
			FinishedAt: res.Finished,
		}
		if err := s.catalog.RecordRun(run); err != nil {
			monitoring.Logf("failed to record run in catalog: %v", err)
		}
	}
	return nil
}

func (s *Session) plot(polar bool, args []string) error {
	if s.filename == "" {
		fmt.Fprintln(s.out, NoFilenameMessage)
		return nil
	}
	save := saveByDefault
	if len(args) > 0 && args[0] == "s" {
		save = true
	}

	out, err := s.plotter.Plot(s.filename, phasespace.Options{Polar: polar, Save: save})
	if err != nil {
		return err
	}
	if out.PDF != "" {
		fmt.Fprintf(s.out, "Saved %s\n", out.PDF)
	}
	fmt.Fprintf(s.out, "Plot: %s\n", out.Preview)
	return nil
}
