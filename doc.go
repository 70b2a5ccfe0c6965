// Package uartline provides line-oriented text exchange over a UART.
//
// Outgoing lines are written as the text followed by CR LF and flushed.
// Incoming bytes are assembled into lines: a CR (0x0D) terminates a line,
// printable ASCII (0x20-0x7E) is accumulated, and every other byte,
// including LF, is dropped.
//
// Reading is designed for polling. Read drains whatever arrives until the
// device read timeout expires and then returns, so a caller can invoke it
// once per tick and stop simply by not calling it again. Poll wraps that
// pattern with a context.
//
// Features:
//   - Raw termios serial I/O on Linux with independent read and write timeouts
//   - CR-terminated line assembly with printable-ASCII filtering
//   - Buffer safe for concurrent Read, Pending and Reset callers
//   - Self-pipe mechanism so Close wakes a blocked Read
//   - PTY-based tests
//
// Only the Linux device implementation is provided. Other platforms can
// still use Channel through NewChannel with their own Device.
//
// Example usage:
//
//	ch, err := uartline.Open(uartline.Config{
//	    Device:   "/dev/ttyUSB0",
//	    BaudRate: 115200,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//
//	if err := ch.Send("C,START"); err != nil {
//	    log.Println("Send failed:", err)
//	}
//
//	// Drain lines once per tick
//	for range time.Tick(time.Second) {
//	    err := ch.Read(func(line string) {
//	        fmt.Println("Received:", line)
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	}
package uartline
