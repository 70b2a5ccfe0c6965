package uartline

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Port is a Linux serial port in raw mode implementing Device.
// It is safe for concurrent use by multiple goroutines, and Close wakes
// any goroutine blocked in Read or Write.
type Port struct {
	name         string
	fd           int
	done         chan struct{}
	closeOnce    sync.Once
	pipeR        int // self-pipe read fd
	pipeW        int // self-pipe write fd
	readTimeout  atomic.Int64
	writeTimeout atomic.Int64
}

var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// OpenPort opens the device at path and configures it for raw 8N1 operation
// at the given baud rate. Timeouts start at the package defaults.
func OpenPort(path string, baudRate int) (port *Port, err error) {
	baud, ok := baudRates[baudRate]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", baudRate)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// prevent handle leaks
	defer func() {
		if err != nil {
			unix.Close(fd)
		}
	}()

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	// Readiness comes from poll, the fd stays non-blocking
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err = unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Create self-pipe for killability
	pipeFds := make([]int, 2)
	if err = unix.Pipe2(pipeFds, unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}

	port = &Port{
		name:  path,
		fd:    fd,
		done:  make(chan struct{}),
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
	}
	port.readTimeout.Store(int64(DefaultReadTimeout))
	port.writeTimeout.Store(int64(DefaultWriteTimeout))
	return port, nil
}

// Name returns the device path the port was opened with.
func (p *Port) Name() string {
	return p.name
}

// SetReadTimeout sets how long Read waits for the first byte.
// A zero or negative timeout waits until data arrives or the port is closed.
func (p *Port) SetReadTimeout(timeout time.Duration) error {
	if p.closed() {
		return ErrClosed
	}
	p.readTimeout.Store(int64(timeout))
	return nil
}

// SetWriteTimeout sets how long Write waits for the port to accept all data.
// A zero or negative timeout waits indefinitely.
func (p *Port) SetWriteTimeout(timeout time.Duration) error {
	if p.closed() {
		return ErrClosed
	}
	p.writeTimeout.Store(int64(timeout))
	return nil
}

// Read reads whatever is available, waiting up to the read timeout for at
// least one byte. It returns ErrTimeout if nothing arrived in time.
func (p *Port) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	deadline := deadlineFor(time.Duration(p.readTimeout.Load()))
	for {
		if err := p.wait(unix.POLLIN, deadline); err != nil {
			return 0, err
		}
		n, err := unix.Read(p.fd, b)
		switch {
		case err == unix.EAGAIN || err == unix.EINTR:
			continue
		case err == unix.EBADF:
			return 0, ErrClosed
		case err != nil:
			return 0, err
		case n == 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write writes all of b, waiting up to the write timeout in total.
// On ErrTimeout the returned count tells how much was accepted.
func (p *Port) Write(b []byte) (int, error) {
	deadline := deadlineFor(time.Duration(p.writeTimeout.Load()))
	written := 0
	for written < len(b) {
		if err := p.wait(unix.POLLOUT, deadline); err != nil {
			return written, err
		}
		n, err := unix.Write(p.fd, b[written:])
		switch {
		case err == unix.EAGAIN || err == unix.EINTR:
			continue
		case err == unix.EBADF:
			return written, ErrClosed
		case err != nil:
			return written, err
		}
		written += n
	}
	return written, nil
}

// Flush waits until all written output has been transmitted (tcdrain).
func (p *Port) Flush() error {
	if p.closed() {
		return ErrClosed
	}
	for {
		err := unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EBADF:
			return ErrClosed
		case err != nil:
			return fmt.Errorf("drain: %w", err)
		}
		return nil
	}
}

// Close closes the port and unblocks any Read or Write calls.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		// Wake up poll using self-pipe
		unix.Write(p.pipeW, []byte{1})
		err = unix.Close(p.fd)
		unix.Close(p.pipeR)
		unix.Close(p.pipeW)
	})
	return err
}

func (p *Port) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// wait blocks until the port is ready for events, the deadline passes or
// the port is closed. A zero deadline never expires.
func (p *Port) wait(events int16, deadline time.Time) error {
	for {
		if p.closed() {
			return ErrClosed
		}
		ms := -1
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return ErrTimeout
			}
			ms = int((remaining + time.Millisecond - 1) / time.Millisecond)
		}
		pfd := []unix.PollFd{
			{Fd: int32(p.fd), Events: events},
			{Fd: int32(p.pipeR), Events: unix.POLLIN},
		}
		n, err := unix.Poll(pfd, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			return ErrClosed
		}
		if pfd[0].Revents&unix.POLLNVAL != 0 {
			return ErrClosed
		}
		// HUP and ERR are reported by the following read or write
		if pfd[0].Revents&(events|unix.POLLHUP|unix.POLLERR) != 0 {
			return nil
		}
	}
}

func deadlineFor(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
