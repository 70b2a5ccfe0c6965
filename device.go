package uartline

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultDevice is the device path used by MustOpenDefault and by Open
	// when Config.Device is empty.
	DefaultDevice = "/dev/ttyUSB0"
	// DefaultBaudRate is used when Config.BaudRate is zero.
	DefaultBaudRate = 115200
	// DefaultReadTimeout keeps Read responsive: it returns after this much
	// idle time.
	DefaultReadTimeout = 100 * time.Millisecond
	// DefaultWriteTimeout bounds how long Send waits on a slow receiver.
	DefaultWriteTimeout = 1000 * time.Millisecond

	// ChunkSize is the largest number of bytes taken from the device per read.
	ChunkSize = 256
)

// Device is a duplex byte stream with independent read and write timeouts.
// Read and Write return ErrTimeout when their timeout expires.
type Device interface {
	io.ReadWriteCloser

	// SetReadTimeout sets how long Read waits for at least one byte.
	SetReadTimeout(timeout time.Duration) error

	// SetWriteTimeout sets how long Write waits for the device to accept data.
	SetWriteTimeout(timeout time.Duration) error

	// Flush blocks until written data has left any intermediate buffer.
	Flush() error
}

// Config holds configuration parameters for opening a Channel.
// Zero values are replaced by the package defaults.
type Config struct {
	Device       string
	BaudRate     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger // default: discard
}

func (c Config) withDefaults() Config {
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Logger == nil {
		c.Logger = nopLogger()
	}
	return c
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
