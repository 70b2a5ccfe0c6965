package uartline

import "sync"

const carriageReturn = 0x0d

// lineBuffer holds the line being assembled. Writers take the lock
// exclusively; snapshot only needs shared access. Once poisoned, every
// access fails with ErrLockPoisoned until reset.
type lineBuffer struct {
	mu       sync.RWMutex
	buf      []byte
	poisoned bool
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}

func (l *lineBuffer) append(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.poisoned {
		return ErrLockPoisoned
	}
	l.buf = append(l.buf, p...)
	return nil
}

// take appends tail, returns the completed line and clears the buffer in
// one exclusive section.
func (l *lineBuffer) take(tail []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.poisoned {
		return "", ErrLockPoisoned
	}
	l.buf = append(l.buf, tail...)
	// Only printable ASCII is ever appended, so this is valid UTF-8.
	line := string(l.buf)
	l.buf = l.buf[:0]
	return line, nil
}

func (l *lineBuffer) snapshot() (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.poisoned {
		return "", ErrLockPoisoned
	}
	return string(l.buf), nil
}

func (l *lineBuffer) check() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.poisoned {
		return ErrLockPoisoned
	}
	return nil
}

func (l *lineBuffer) poison() {
	l.mu.Lock()
	l.poisoned = true
	l.mu.Unlock()
}

func (l *lineBuffer) reset() {
	l.mu.Lock()
	l.buf = l.buf[:0]
	l.poisoned = false
	l.mu.Unlock()
}
