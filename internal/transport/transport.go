// Package transport moves commands to the motor controller over a serial
// link without ever blocking the control loop. A FIFO queue decouples the
// producers (control tick, manual moves) from the single writer loop, which
// also polls for inbound telemetry lines.
package transport

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"lasergimbal/internal/device"
	"lasergimbal/internal/event"
	"lasergimbal/internal/model"
	"lasergimbal/internal/protocol"
)

const (
	queueDepth      = 128
	cycleSleep      = 10 * time.Millisecond
	defaultPollRead = time.Millisecond
)

// Opener creates a Device for a port/baud pair. Injected so tests can
// substitute a fake device for real hardware.
type Opener func(port string, baud int) (device.Device, error)

// Serial is the asynchronous serial transport. Producers enqueue commands
// through Send; the loop goroutine drains the queue to the device and
// surfaces inbound lines as telemetry events.
type Serial struct {
	events      *event.Broadcaster
	open        Opener
	readTimeout time.Duration

	mu  sync.Mutex
	dev device.Device

	queue chan model.Command
	stop  chan struct{}
	wg    sync.WaitGroup
}

// New constructs a transport using the real serial device opener.
func New(cfg model.SerialConfig, events *event.Broadcaster) *Serial {
	return NewWithOpener(cfg, events, func(port string, baud int) (device.Device, error) {
		return device.NewSerialDevice(port, baud)
	})
}

// NewWithOpener constructs a transport with a custom device opener.
func NewWithOpener(cfg model.SerialConfig, events *event.Broadcaster, open Opener) *Serial {
	readTimeout := time.Duration(cfg.ReadTimeoutMs) * time.Millisecond
	if readTimeout <= 0 {
		readTimeout = defaultPollRead
	}
	return &Serial{
		events:      events,
		open:        open,
		readTimeout: readTimeout,
		queue:       make(chan model.Command, queueDepth),
		stop:        make(chan struct{}),
	}
}

// Connect opens the serial port. An already open port is closed first.
// Failures are reported both as a return value and a connection event.
func (s *Serial) Connect(port string, baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev != nil {
		_ = s.dev.Close()
		s.dev = nil
	}

	dev, err := s.open(port, baud)
	if err != nil {
		msg := fmt.Sprintf("connect failed: %v", err)
		log.Printf("[serial] %s", msg)
		s.events.Publish(model.ConnectionEvent(false, msg))
		return err
	}
	s.dev = dev

	msg := fmt.Sprintf("connected to %s @ %d", port, baud)
	log.Printf("[serial] %s", msg)
	s.events.Publish(model.ConnectionEvent(true, msg))
	return nil
}

// Disconnect closes the port if open.
func (s *Serial) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return
	}
	_ = s.dev.Close()
	s.dev = nil
	log.Printf("[serial] disconnected")
	s.events.Publish(model.ConnectionEvent(false, "serial disconnected"))
}

// Connected reports whether a port is currently open.
func (s *Serial) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev != nil
}

// Send enqueues a command for transmission and returns immediately. When
// the queue is full the command is dropped with a log line; the next tick
// regenerates a fresher one anyway.
func (s *Serial) Send(cmd model.Command) {
	select {
	case s.queue <- cmd:
	default:
		log.Printf("[serial] queue full, dropping %s%+d", cmd.Axis, cmd.Delta)
	}
}

// Start launches the transport loop goroutine.
func (s *Serial) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

// Stop terminates the loop, waits for it, and closes the port.
func (s *Serial) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.wg.Wait()
	s.Disconnect()
}

// run is the transport loop: drain the outbound queue in FIFO order, poll
// once for an inbound line, yield.
func (s *Serial) run() {
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.mu.Lock()
		dev := s.dev
		s.mu.Unlock()

		if dev != nil {
			s.drain(dev)
			s.poll(dev)
		}

		select {
		case <-s.stop:
			return
		case <-time.After(cycleSleep):
		}
	}
}

// drain writes all currently queued commands, preserving order.
func (s *Serial) drain(dev device.Device) {
	for {
		select {
		case cmd := <-s.queue:
			if err := dev.WriteLine(protocol.Encode(cmd)); err != nil {
				log.Printf("[serial] write error: %v", err)
				s.events.Status(fmt.Sprintf("serial write error: %v", err))
			}
		default:
			return
		}
	}
}

// poll performs one bounded read and emits a telemetry event when a full
// line is available.
func (s *Serial) poll(dev device.Device) {
	line, err := dev.ReadLine(s.readTimeout)
	if err != nil {
		if err != device.ErrReadTimeout {
			log.Printf("[serial] read error: %v", err)
		}
		return
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	log.Printf("[serial] rx %q", line)
	s.events.Publish(model.TelemetryEvent(line))
}
