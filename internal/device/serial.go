// Package device implements SerialDevice using go.bug.st/serial, which
// carries the line protocol between the host and the STM32 motor controller.
package device

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	serial "go.bug.st/serial"
)

// ErrReadTimeout is returned by ReadLine when no full line arrived in time.
// The transport loop treats it as "no data this cycle", not a failure.
var ErrReadTimeout = errors.New("serial read timeout")

// SerialDevice implements Device using go.bug.st/serial. A single reader
// goroutine owns the port's read side and feeds complete lines into a
// channel, so ReadLine can time out without abandoning blocked goroutines.
type SerialDevice struct {
	port  serial.Port
	lines chan string
	errs  chan error
}

// NewSerialDevice opens a serial device with the given path and baudrate
// and starts its reader goroutine.
func NewSerialDevice(dev string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(dev, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial %s: %w", dev, err)
	}
	s := &SerialDevice{
		port:  p,
		lines: make(chan string, 16),
		errs:  make(chan error, 1),
	}
	go s.readLoop()
	return s, nil
}

// readLoop drains the port into the line channel until the port is closed.
func (s *SerialDevice) readLoop() {
	r := bufio.NewReader(s.port)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			select {
			case s.errs <- err:
			default:
			}
			close(s.lines)
			return
		}
		s.lines <- line
	}
}

// ReadLine returns the next full line from the port. With timeout <= 0 it
// blocks until a line or a read error; otherwise it returns ErrReadTimeout
// after the timeout without losing buffered data.
func (s *SerialDevice) ReadLine(timeout time.Duration) (string, error) {
	if timeout <= 0 {
		line, ok := <-s.lines
		if !ok {
			return "", s.readErr()
		}
		return line, nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", s.readErr()
		}
		return line, nil
	case <-t.C:
		return "", ErrReadTimeout
	}
}

func (s *SerialDevice) readErr() error {
	select {
	case err := <-s.errs:
		return err
	default:
		return errors.New("serial port closed")
	}
}

// WriteLine writes a single line followed by '\n' to the serial port.
func (s *SerialDevice) WriteLine(line string) error {
	if s.port == nil {
		return errors.New("serial port not open")
	}
	_, err := s.port.Write(append([]byte(line), '\n'))
	return err
}

// Close closes the underlying serial connection, which also unblocks and
// terminates the reader goroutine.
func (s *SerialDevice) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
