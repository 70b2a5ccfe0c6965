package uartline

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by a Device when a read or write does not
	// complete within the configured timeout.
	ErrTimeout = errors.New("timeout")
	// ErrClosed is returned by a Device used after Close.
	ErrClosed = errors.New("device closed")
	// ErrUnsupported is returned by OpenPort on platforms without a
	// serial implementation.
	ErrUnsupported = errors.New("serial port not supported on this platform")
	// ErrLockPoisoned indicates a previous read loop unwound while
	// assembling a line. The partial line is lost; call Reset to recover.
	ErrLockPoisoned = errors.New("line buffer poisoned")
)

// IOError wraps a failure reported by the underlying device.
type IOError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the device error.
func (e *IOError) Unwrap() error {
	return e.Err
}

func ioError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}
