//go:build !linux

package uartline

import "time"

// Port is unavailable on this platform; OpenPort always fails.
type Port struct{}

// OpenPort reports ErrUnsupported.
func OpenPort(path string, baudRate int) (*Port, error) {
	return nil, ErrUnsupported
}

// Name returns an empty string.
func (p *Port) Name() string { return "" }

// SetReadTimeout reports ErrUnsupported.
func (p *Port) SetReadTimeout(timeout time.Duration) error { return ErrUnsupported }

// SetWriteTimeout reports ErrUnsupported.
func (p *Port) SetWriteTimeout(timeout time.Duration) error { return ErrUnsupported }

// Read reports ErrUnsupported.
func (p *Port) Read(b []byte) (int, error) { return 0, ErrUnsupported }

// Write reports ErrUnsupported.
func (p *Port) Write(b []byte) (int, error) { return 0, ErrUnsupported }

// Flush reports ErrUnsupported.
func (p *Port) Flush() error { return ErrUnsupported }

// Close is a no-op.
func (p *Port) Close() error { return nil }
