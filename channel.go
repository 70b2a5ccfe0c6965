package uartline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Channel exchanges CR-terminated text lines over a Device.
//
// Send may be called concurrently with Read. Read and Poll calls on the
// same Channel are serialized, so concurrent readers take turns and never
// split a line between them. Pending and Reset are safe from any goroutine.
//
// Because readers take turns, a second Read waits for the first one to
// finish draining. Under steady traffic that wait is not bounded by the
// read timeout; only a single reader gets the bounded-wait behaviour.
type Channel struct {
	dev    Device
	log    *slog.Logger
	readMu sync.Mutex
	buf    lineBuffer
}

// Open opens the serial device described by cfg and returns a Channel.
// Failures to open or configure the device are returned as *IOError.
func Open(cfg Config) (*Channel, error) {
	cfg = cfg.withDefaults()

	port, err := OpenPort(cfg.Device, cfg.BaudRate)
	if err != nil {
		return nil, ioError("open", err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, ioError("set read timeout", err)
	}
	if err := port.SetWriteTimeout(cfg.WriteTimeout); err != nil {
		port.Close()
		return nil, ioError("set write timeout", err)
	}

	cfg.Logger.Debug("serial port opened",
		"device", cfg.Device,
		"baud", cfg.BaudRate,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout)
	return NewChannel(port, cfg.Logger), nil
}

// MustOpenDefault opens DefaultDevice at DefaultBaudRate.
// It panics if the device cannot be opened; use Open to handle the error.
func MustOpenDefault() *Channel {
	ch, err := Open(Config{})
	if err != nil {
		panic(fmt.Sprintf("uartline: %v", err))
	}
	return ch
}

// NewChannel wraps an already configured device. A nil logger discards output.
func NewChannel(dev Device, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = nopLogger()
	}
	return &Channel{dev: dev, log: logger}
}

// Send writes text followed by CR LF and flushes the device.
// Callers that need lines to appear in a particular order must not call
// Send concurrently.
func (c *Channel) Send(text string) error {
	line := make([]byte, 0, len(text)+2)
	line = append(line, text...)
	line = append(line, '\r', '\n')

	if _, err := c.dev.Write(line); err != nil {
		return ioError("write", err)
	}
	if err := c.dev.Flush(); err != nil {
		return ioError("flush", err)
	}
	c.log.Debug("line sent", "bytes", len(line))
	return nil
}

// Read drains the device, calling onLine for every CR-terminated line, until
// a device read fails. A read timeout is the normal way for Read to return,
// so device errors are not reported; use Poll to observe them. Read only
// fails with ErrLockPoisoned.
//
// onLine runs on the calling goroutine and blocks further reads while it runs.
func (c *Channel) Read(onLine func(string)) error {
	ended, err := c.drain(context.Background(), onLine)
	if err != nil {
		return err
	}
	c.logReadEnd(ended)
	return nil
}

// Poll calls Read repeatedly until ctx is done or the device fails with an
// error other than a timeout. Cancellation is checked after every chunk
// and every read window, so Poll returns at most one read timeout after
// ctx is done, even while data keeps arriving.
func (c *Channel) Poll(ctx context.Context, onLine func(string)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ended, err := c.drain(ctx, onLine)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !errors.Is(ended, ErrTimeout) {
			c.logReadEnd(ended)
			return ioError("read", ended)
		}
	}
}

// Pending returns the line assembled so far, not yet terminated by CR.
func (c *Channel) Pending() (string, error) {
	return c.buf.snapshot()
}

// Reset discards any partial line and clears a poisoned buffer.
func (c *Channel) Reset() {
	c.buf.reset()
}

// Close closes the underlying device.
func (c *Channel) Close() error {
	return c.dev.Close()
}

// drain runs the read loop and returns the device error that ended it, or
// ctx's error when ctx is done between chunks. A panic escaping the loop
// poisons the buffer, since the rest of the chunk was never classified.
func (c *Channel) drain(ctx context.Context, onLine func(string)) (ended, err error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if err := c.buf.check(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			c.buf.poison()
			c.log.Error("read loop panicked, line buffer poisoned", "panic", r)
			panic(r)
		}
	}()

	chunk := make([]byte, ChunkSize)
	run := make([]byte, 0, ChunkSize)
	for {
		n, rerr := c.dev.Read(chunk)
		if n > 0 {
			if err := c.feed(chunk[:n], run, onLine); err != nil {
				return nil, err
			}
		}
		if rerr != nil {
			return rerr, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr, nil
		}
	}
}

// feed classifies p byte by byte. Printable bytes are collected in run and
// moved into the buffer on CR or at the end of p; everything else is dropped.
func (c *Channel) feed(p, run []byte, onLine func(string)) error {
	run = run[:0]
	for _, b := range p {
		switch {
		case b == carriageReturn:
			line, err := c.buf.take(run)
			if err != nil {
				return err
			}
			run = run[:0]
			onLine(line)
		case isPrintable(b):
			run = append(run, b)
		}
	}
	if len(run) == 0 {
		return nil
	}
	return c.buf.append(run)
}

func (c *Channel) logReadEnd(ended error) {
	if errors.Is(ended, ErrTimeout) {
		c.log.Debug("read window elapsed")
		return
	}
	c.log.Warn("read ended", "error", ended)
}
