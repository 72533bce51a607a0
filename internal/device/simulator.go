package device

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/mco/internal/units"
)

// SamplesPerCycle is the number of reports the MCO emits per drive cycle.
// The cycle counter runs 0..255 and the line with counter 255 closes a cycle.
const SamplesPerCycle = 256

// SentinelCounter marks the last sample of a drive cycle.
const SentinelCounter = SamplesPerCycle - 1

// Simulator is an in-process stand-in for the MCO used by "mco -dev" and by
// tests. It answers the query verbs the console uses and, while reporting is
// on, produces one "counter angle velocity" line per read of a steadily
// driven oscillator. Reads never block: an empty buffer reads as a timeout.
type Simulator struct {
	mu sync.Mutex

	Identity string

	frequency float64
	amplitude int
	reporting bool
	sample    int
	offset    int

	pending bytes.Buffer
	partial []byte

	readTimeout time.Duration
	commands    []string
	closed      bool
}

// NewSimulator returns a simulator at 1 Hz drive and amplitude 400 whose
// cycle counter starts part-way through a cycle.
func NewSimulator() *Simulator {
	return &Simulator{
		Identity:  "MCO simulator, rev 1",
		frequency: 1.0,
		amplitude: 400,
		offset:    100,
	}
}

// Commands returns every command line received so far.
func (s *Simulator) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Reporting reports whether streaming mode is on.
func (s *Simulator) Reporting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reporting
}

// Write accepts command bytes; each complete line is executed.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("serial port closed")
	}

	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(s.partial[:i]))
		s.partial = s.partial[i+1:]
		s.commands = append(s.commands, line)
		s.execute(line)
	}
	return len(p), nil
}

func (s *Simulator) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch strings.ToLower(fields[0]) {
	case "*idn?":
		s.reply(s.Identity)
	case "freq?":
		s.reply(fmt.Sprintf("%.2f", s.frequency))
	case "ampl?":
		s.reply(strconv.Itoa(s.amplitude))
	case "freq":
		if len(fields) > 1 {
			if v, err := strconv.ParseFloat(fields[1], 64); err == nil && v > 0 {
				s.frequency = v
			}
		}
		s.reply(fmt.Sprintf("%.2f", s.frequency))
	case "ampl":
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil && v >= 0 {
				s.amplitude = v
			}
		}
		s.reply(strconv.Itoa(s.amplitude))
	case "rept":
		// no reply, the sample stream is the acknowledgement
		s.reporting = len(fields) > 1 && fields[1] != "0"
	default:
		s.reply("?")
	}
}

func (s *Simulator) reply(line string) {
	s.pending.WriteString(line)
	s.pending.WriteByte('\n')
}

// nextSample appends one report line for a steady-state driven response.
func (s *Simulator) nextSample() {
	counter := (s.offset + s.sample) % SamplesPerCycle
	phase := 2 * math.Pi * float64(s.sample+s.offset) / SamplesPerCycle
	s.sample++

	omega := 2 * math.Pi * s.frequency
	amp := float64(s.amplitude) / 400.0
	angle := amp * math.Cos(phase-math.Pi/4)
	velocity := -amp * omega * math.Sin(phase-math.Pi/4)

	fmt.Fprintf(&s.pending, "%d %d %d\n",
		counter,
		units.RadiansToCounts(units.WrapAngle(angle)),
		units.RadiansToCounts(velocity))
}

// Read returns buffered replies and, while reporting, generated samples.
func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("serial port closed")
	}
	if s.pending.Len() == 0 && s.reporting {
		s.nextSample()
	}
	if s.pending.Len() == 0 {
		return 0, nil
	}
	return s.pending.Read(p)
}

// SetReadTimeout implements TimeoutSerialPorter. The simulator never waits,
// so the value is only recorded.
func (s *Simulator) SetReadTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = timeout
	return nil
}

// Close marks the simulator closed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
