// Package model defines shared message structures for the gimbal tracker.
package model

// Axis identifies one of the two gimbal axes.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

// Command is a single discrete actuation step in transport pulse units.
// It is produced once per accepted move and consumed exactly once by the
// serial transport.
type Command struct {
	Axis  Axis `json:"axis"`
	Delta int  `json:"delta"`
}

// TrackingMode selects which vision algorithm runs and whether the control
// tick is armed.
type TrackingMode string

const (
	ModeIdle          TrackingMode = "IDLE"
	ModeTracking      TrackingMode = "TRACKING"
	ModeBlueCentering TrackingMode = "BLUE_CENTERING"
	ModeTest          TrackingMode = "TEST"
)

// Valid reports whether m is a known tracking mode.
func (m TrackingMode) Valid() bool {
	switch m {
	case ModeIdle, ModeTracking, ModeBlueCentering, ModeTest:
		return true
	}
	return false
}

// EventType discriminates Event payloads.
type EventType string

const (
	EventStatus     EventType = "status"
	EventPosition   EventType = "position"
	EventConnection EventType = "connection"
	EventTelemetry  EventType = "telemetry"
	EventLimit      EventType = "limit"
)

// Event is the envelope pushed to display collaborators (dashboard clients).
// Delivery is fire-and-forget and lossy; consumers only need the latest.
type Event struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	X         float64   `json:"x,omitempty"`
	Y         float64   `json:"y,omitempty"`
	Connected bool      `json:"connected,omitempty"`
	Line      string    `json:"line,omitempty"`
}

// StatusEvent builds a status text event.
func StatusEvent(msg string) Event {
	return Event{Type: EventStatus, Message: msg}
}

// PositionEvent builds a servo position update event (degrees).
func PositionEvent(x, y float64) Event {
	return Event{Type: EventPosition, X: x, Y: y}
}

// ConnectionEvent builds a connection state change event.
func ConnectionEvent(connected bool, msg string) Event {
	return Event{Type: EventConnection, Connected: connected, Message: msg}
}

// TelemetryEvent builds an event carrying a raw inbound line from the
// motor controller.
func TelemetryEvent(line string) Event {
	return Event{Type: EventTelemetry, Line: line}
}

// LimitEvent builds a soft-limit violation event for one axis.
func LimitEvent(axis Axis, attempted float64) Event {
	return Event{Type: EventLimit, Message: string(axis), X: attempted}
}
