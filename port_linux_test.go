package uartline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

func openPTY(t *testing.T, readTimeout time.Duration) (*os.File, *Channel) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	ch, err := Open(Config{
		Device:      slave.Name(),
		BaudRate:    115200,
		ReadTimeout: readTimeout,
	})
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })
	return master, ch
}

func TestOpen_NonexistentDevice(t *testing.T) {
	ch, err := Open(Config{Device: filepath.Join(t.TempDir(), "ttyNOPE")})
	require.Nil(t, ch)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "open", ioErr.Op)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_UnsupportedBaudRate(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	_, err = Open(Config{Device: slave.Name(), BaudRate: 12345})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.Contains(t, err.Error(), "unsupported baud rate 12345")
}

func TestMustOpenDefault_PanicsWithoutDevice(t *testing.T) {
	if _, err := os.Stat(DefaultDevice); err == nil {
		t.Skipf("%s exists", DefaultDevice)
	}
	require.Panics(t, func() { MustOpenDefault() })
}

func TestChannel_SendOverPTY(t *testing.T) {
	master, ch := openPTY(t, 50*time.Millisecond)

	require.NoError(t, ch.Send("hello"))

	buf := make([]byte, 7)
	_, err := io.ReadFull(master, buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x68, 0x65, 0x6c, 0x6c, 0x6f, 0x0d, 0x0a}, buf)
}

func TestChannel_ReadOverPTY(t *testing.T) {
	master, ch := openPTY(t, 50*time.Millisecond)

	_, err := master.Write([]byte("A\nB\r\x01C\x02\r"))
	require.NoError(t, err)

	var lines []string
	require.NoError(t, ch.Read(func(line string) { lines = append(lines, line) }))
	require.Equal(t, []string{"AB", "C"}, lines)
}

func TestChannel_RoundTripOverPTY(t *testing.T) {
	master, ch := openPTY(t, 50*time.Millisecond)

	require.NoError(t, ch.Send("hello"))
	echo := make([]byte, 7)
	_, err := io.ReadFull(master, echo)
	require.NoError(t, err)

	_, err = master.Write(echo)
	require.NoError(t, err)

	var lines []string
	require.NoError(t, ch.Read(func(line string) { lines = append(lines, line) }))
	require.Equal(t, []string{"hello"}, lines)
}

func TestChannel_ReadReturnsAfterTimeout(t *testing.T) {
	_, ch := openPTY(t, 50*time.Millisecond)

	start := time.Now()
	require.NoError(t, ch.Read(func(string) { t.Fatal("unexpected line") }))
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	require.Less(t, elapsed, time.Second)
}

func TestChannel_PollReportsDisconnect(t *testing.T) {
	master, ch := openPTY(t, 50*time.Millisecond)

	errs := make(chan error, 1)
	go func() { errs <- ch.Poll(context.Background(), func(string) {}) }()

	// Simulate device disconnect by closing master
	require.NoError(t, master.Close())

	select {
	case err := <-errs:
		var ioErr *IOError
		require.ErrorAs(t, err, &ioErr)
		require.Equal(t, "read", ioErr.Op)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error after device disconnect")
	}
}

func TestChannel_CloseUnblocksPoll(t *testing.T) {
	_, ch := openPTY(t, time.Minute)

	errs := make(chan error, 1)
	go func() { errs <- ch.Poll(context.Background(), func(string) {}) }()

	// Give the goroutine a chance to block
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, ch.Close())

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for Poll to exit after Close")
	}

	// Close is idempotent and the port refuses further use
	require.NoError(t, ch.Close())
	require.ErrorIs(t, ch.Send("late"), ErrClosed)
}

func TestPort_ReadTimeout(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := OpenPort(slave.Name(), 9600)
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })
	require.Equal(t, slave.Name(), port.Name())
	require.NoError(t, port.SetReadTimeout(20*time.Millisecond))

	n, err := port.Read(make([]byte, ChunkSize))
	require.Zero(t, n)
	require.ErrorIs(t, err, ErrTimeout)
}
