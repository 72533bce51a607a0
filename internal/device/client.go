// Package device talks to the MCO (motor-controlled oscillator) over its
// line-oriented serial protocol: newline-terminated ASCII commands, one ASCII
// reply line per query, and a stream of sample lines while reporting is on.
package device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrWriteFailed is returned when the port accepts fewer bytes than sent.
	ErrWriteFailed = errors.New("failed to write to serial port")
	// ErrReadTimeout is returned when the port's read timeout elapses before
	// a full line arrives. Any partial line is returned alongside it.
	ErrReadTimeout = errors.New("serial read timed out")
)

// DefaultFlushBytes is how many bytes Flush discards by default.
const DefaultFlushBytes = 4096

// Client owns a serial port and reads it line by line. It is not safe for
// concurrent use; the console drives it from a single goroutine.
type Client struct {
	port   SerialPorter
	reader *bufio.Reader
}

// NewClient wraps port. The client takes ownership and closes it in Close.
func NewClient(port SerialPorter) *Client {
	return &Client{
		port:   port,
		reader: bufio.NewReader(timeoutReader{port}),
	}
}

// timeoutReader turns the zero-byte, nil-error read that serial ports return
// on timeout into ErrReadTimeout, which bufio passes through to the caller.
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrReadTimeout
	}
	return n, err
}

// Send writes command to the device, appending a newline if it has none.
func (c *Client) Send(command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := c.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// ReadLine reads one line from the device with the line terminator removed.
// On a read timeout the partial line (possibly empty) is returned together
// with ErrReadTimeout.
func (c *Client) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil {
		if errors.Is(err, ErrReadTimeout) {
			return line, ErrReadTimeout
		}
		return line, err
	}
	return line, nil
}

// Query sends command and returns the single reply line.
func (c *Client) Query(command string) (string, error) {
	if err := c.Send(command); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", command, err)
	}
	reply, err := c.ReadLine()
	if err != nil {
		return reply, fmt.Errorf("failed to read reply to %q: %w", command, err)
	}
	return reply, nil
}

// QueryFloat sends command and parses the reply as a float.
func (c *Client) QueryFloat(command string) (float64, error) {
	reply, err := c.Query(command)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse reply to %q: %w", command, err)
	}
	return v, nil
}

// QueryInt sends command and parses the reply as an integer.
func (c *Client) QueryInt(command string) (int, error) {
	reply, err := c.Query(command)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return 0, fmt.Errorf("failed to parse reply to %q: %w", command, err)
	}
	return v, nil
}

// Identify asks the device for its identification string.
func (c *Client) Identify() (string, error) {
	return c.Query("*idn?")
}

// Frequency returns the configured drive frequency.
func (c *Client) Frequency() (float64, error) {
	return c.QueryFloat("freq?")
}

// Amplitude returns the configured drive amplitude.
func (c *Client) Amplitude() (int, error) {
	return c.QueryInt("ampl?")
}

// SetReporting switches the device's streaming sample reports on or off.
func (c *Client) SetReporting(on bool) error {
	command := "rept 0"
	if on {
		command = "rept 1"
	}
	if err := c.Send(command); err != nil {
		return fmt.Errorf("failed to send %q: %w", command, err)
	}
	return nil
}

// Flush discards up to max bytes: whatever is already buffered plus at most
// one read from the port. It returns the number of bytes dropped. A read
// timeout is not an error here.
func (c *Client) Flush(max int) (int, error) {
	if max <= 0 {
		max = DefaultFlushBytes
	}

	n := c.reader.Buffered()
	if n > max {
		n = max
	}
	if _, err := c.reader.Discard(n); err != nil {
		return 0, err
	}
	if n == max {
		return n, nil
	}

	buf := make([]byte, max-n)
	m, err := c.port.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return n + m, err
	}
	return n + m, nil
}

// Close closes the underlying port.
func (c *Client) Close() error {
	return c.port.Close()
}
