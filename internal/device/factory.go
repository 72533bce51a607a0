package device

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// OpenSerial opens the real serial port at path and applies the configured
// read timeout. It satisfies SerialPortOpener.
func OpenSerial(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	if _, err := SetReadTimeout(port, opts.Timeout()); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}

	return port, nil
}

// SetReadTimeout applies d to port when it supports read timeouts. It
// reports whether the port did.
func SetReadTimeout(port SerialPorter, d time.Duration) (bool, error) {
	tp, ok := port.(TimeoutSerialPorter)
	if !ok {
		return false, nil
	}
	return true, tp.SetReadTimeout(d)
}
