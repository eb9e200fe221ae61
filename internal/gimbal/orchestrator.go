// Package gimbal implements the control-loop core: error filtering, the
// fixed-rate PID tick, and the safety machinery (watchdog, adaptive
// deadzone and speed, soft limits) that stands between vision errors and
// serial commands.
package gimbal

import (
	"log"
	"math"
	"sync"
	"time"

	"lasergimbal/internal/event"
	"lasergimbal/internal/model"
	"lasergimbal/internal/pid"
)

// Sender is the outbound side of the serial transport as seen by the
// control loop: a non-blocking enqueue plus a connection flag that gates
// command emission.
type Sender interface {
	Send(cmd model.Command)
	Connected() bool
}

// TickRecorder receives one sample per executed control tick, for offline
// tuning analysis.
type TickRecorder interface {
	Log(errX, errY, outX, outY int, posX, posY, kp, ki, kd float64)
}

// Orchestrator runs the control loop at a fixed rate, independent of the
// camera frame rate. It owns the software servo position estimate and the
// two per-axis PID controllers.
type Orchestrator struct {
	cfg    model.ControlConfig
	sender Sender
	events *event.Broadcaster

	filter     *Filter
	pidX, pidY *pid.Controller

	mu               sync.Mutex
	servoX, servoY   float64
	enabled          bool
	invertX, invertY bool
	recorder         TickRecorder
	lastWarn         time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewOrchestrator constructs the control loop around a command sender and
// an event broadcaster. The position estimate starts at the mechanical
// center; control starts disabled.
func NewOrchestrator(cfg model.ControlConfig, sender Sender, events *event.Broadcaster) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		sender:  sender,
		events:  events,
		filter:  NewFilter(),
		pidX:    pid.New(cfg.Kp, cfg.Ki, cfg.Kd, cfg.MaxStepSlow, cfg.MaxIntegral),
		pidY:    pid.New(cfg.Kp, cfg.Ki, cfg.Kd, cfg.MaxStepSlow, cfg.MaxIntegral),
		servoX:  cfg.ServoCenter,
		servoY:  cfg.ServoCenter,
		invertX: cfg.InvertX,
		invertY: cfg.InvertY,
		stop:    make(chan struct{}),
	}
}

// Start launches the fixed-rate control ticker goroutine.
func (o *Orchestrator) Start() {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(time.Duration(o.cfg.TickMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-o.stop:
				return
			case <-ticker.C:
				o.tick()
			}
		}
	}()
}

// Stop terminates the ticker goroutine and waits for it to exit.
func (o *Orchestrator) Stop() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
	o.wg.Wait()
}

// HandleVisionError receives one raw error sample from the vision worker.
// Safe to call from the vision goroutine at any rate.
func (o *Orchestrator) HandleVisionError(errX, errY int) {
	o.filter.Update(errX, errY)
}

// SetControlEnabled arms or disarms the control tick.
func (o *Orchestrator) SetControlEnabled(enabled bool) {
	o.mu.Lock()
	o.enabled = enabled
	o.mu.Unlock()

	status := "control stopped"
	if enabled {
		status = "control started"
	}
	log.Printf("[control] %s", status)
	o.events.Status(status)
}

// SetInvert updates the per-axis inversion flags.
func (o *Orchestrator) SetInvert(invertX, invertY bool) {
	o.mu.Lock()
	o.invertX = invertX
	o.invertY = invertY
	o.mu.Unlock()
}

// SetTunings pushes new PID gains to both axes without resetting their
// accumulated state.
func (o *Orchestrator) SetTunings(kp, ki, kd float64) {
	o.mu.Lock()
	o.pidX.SetTunings(kp, ki, kd)
	o.pidY.SetTunings(kp, ki, kd)
	o.mu.Unlock()
	log.Printf("[control] pid tunings updated: kp=%.2f ki=%.2f kd=%.2f", kp, ki, kd)
}

// SetRecorder attaches a tick recorder. Pass nil to detach.
func (o *Orchestrator) SetRecorder(r TickRecorder) {
	o.mu.Lock()
	o.recorder = r
	o.mu.Unlock()
}

// Position returns the current software position estimate in degrees.
func (o *Orchestrator) Position() (x, y float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.servoX, o.servoY
}

// deadzone selects the pixel deadzone for the given error magnitude.
// Wide when close to the target, narrow when far.
func (o *Orchestrator) deadzone(magnitude float64) float64 {
	switch {
	case magnitude < o.cfg.DeadzoneNearThreshold:
		return o.cfg.DeadzoneNear
	case magnitude < o.cfg.DeadzoneFarThreshold:
		return o.cfg.DeadzoneMid
	default:
		return o.cfg.DeadzoneFar
	}
}

// maxStep selects the per-tick step cap for the given error magnitude.
// Far targets get the fast tiers, near targets the precise slow one.
func (o *Orchestrator) maxStep(magnitude float64) int {
	switch {
	case magnitude > o.cfg.SpeedVeryFastThreshold:
		return o.cfg.MaxStepVeryFast
	case magnitude > o.cfg.SpeedFastThreshold:
		return o.cfg.MaxStepFast
	case magnitude > o.cfg.SpeedMediumThreshold:
		return o.cfg.MaxStepMedium
	default:
		return o.cfg.MaxStepSlow
	}
}

// tick runs one control cycle. It never blocks: the only I/O is the
// non-blocking command enqueue on the sender.
func (o *Orchestrator) tick() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.enabled {
		return
	}

	if !o.sender.Connected() {
		if time.Since(o.lastWarn) > 2*time.Second {
			log.Printf("[control] serial not connected, holding")
			o.events.Status("warning: serial not connected")
			o.lastWarn = time.Now()
		}
		return
	}

	// Vision watchdog: with no fresh data, stop sending deltas rather than
	// chasing a stale error.
	watchdog := time.Duration(o.cfg.WatchdogTimeoutMs) * time.Millisecond
	if o.filter.Age() > watchdog {
		if x, y := o.filter.Current(); x != 0 || y != 0 {
			log.Printf("[control] vision signal lost > %v, suspending output", watchdog)
			o.filter.Zero()
		}
		return
	}

	errX, errY := o.filter.Current()
	magnitude := math.Hypot(float64(errX), float64(errY))

	dz := o.deadzone(magnitude)
	if math.Abs(float64(errX)) < dz && math.Abs(float64(errY)) < dz {
		return
	}

	if o.invertX {
		errX = -errX
	}
	if o.invertY {
		errY = -errY
	}

	stepCap := o.maxStep(magnitude)
	o.pidX.SetMaxStep(stepCap)
	o.pidY.SetMaxStep(stepCap)

	deltaX := o.pidX.Update(float64(errX))
	deltaY := o.pidY.Update(float64(errY))
	if deltaX == 0 && deltaY == 0 {
		return
	}

	// Pulse deltas become estimated degree changes through the calibration
	// factor, then pass the soft-limit gate. A clamped axis sends nothing
	// but its estimate still snaps to the bound.
	nextX := o.servoX + float64(deltaX)*o.cfg.StepToDegree
	nextY := o.servoY + float64(deltaY)*o.cfg.StepToDegree

	if nextX > o.cfg.ServoMaxLimit {
		nextX = o.cfg.ServoMaxLimit
		deltaX = 0
	} else if nextX < o.cfg.ServoMinLimit {
		nextX = o.cfg.ServoMinLimit
		deltaX = 0
	}
	if nextY > o.cfg.ServoMaxLimit {
		nextY = o.cfg.ServoMaxLimit
		deltaY = 0
	} else if nextY < o.cfg.ServoMinLimit {
		nextY = o.cfg.ServoMinLimit
		deltaY = 0
	}

	if deltaX != 0 {
		o.servoX = nextX
		o.sender.Send(model.Command{Axis: model.AxisX, Delta: deltaX})
	}
	if deltaY != 0 {
		o.servoY = nextY
		o.sender.Send(model.Command{Axis: model.AxisY, Delta: deltaY})
	}

	if o.recorder != nil {
		kp, ki, kd := o.pidX.Tunings()
		o.recorder.Log(errX, errY, deltaX, deltaY, o.servoX, o.servoY, kp, ki, kd)
	}

	o.events.Publish(model.PositionEvent(o.servoX, o.servoY))
}

// ManualMove nudges one axis by the configured manual step, in degrees,
// bypassing the control tick. direction is +1 or -1. Moves that would cross
// a soft limit are rejected without touching state.
func (o *Orchestrator) ManualMove(axis model.Axis, direction int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.sender.Connected() {
		log.Printf("[control] manual move ignored, serial not connected")
		o.events.Status("warning: serial not connected")
		return
	}

	degreeStep := o.cfg.ManualStepDeg * float64(direction)
	if (axis == model.AxisX && o.invertX) || (axis == model.AxisY && o.invertY) {
		degreeStep = -degreeStep
	}
	pulseStep := int(degreeStep * o.cfg.DegreeToPulse)

	pos := &o.servoX
	if axis == model.AxisY {
		pos = &o.servoY
	}

	next := *pos + degreeStep
	if next < o.cfg.ServoMinLimit || next > o.cfg.ServoMaxLimit {
		log.Printf("[control] manual move rejected: %s axis at limit (%.1f)", axis, next)
		o.events.Publish(model.LimitEvent(axis, next))
		return
	}

	*pos = next
	o.sender.Send(model.Command{Axis: axis, Delta: pulseStep})
	o.events.Publish(model.PositionEvent(o.servoX, o.servoY))
	log.Printf("[control] manual move %s -> %.1f deg", axis, next)
}

// SyncPosition resets both position estimates to the mechanical center and
// both PID controllers. Used after recalibration or reconnection so neither
// a runaway integral nor a stale position assumption survives.
func (o *Orchestrator) SyncPosition() {
	o.mu.Lock()
	o.servoX = o.cfg.ServoCenter
	o.servoY = o.cfg.ServoCenter
	o.pidX.Reset()
	o.pidY.Reset()
	x, y := o.servoX, o.servoY
	o.mu.Unlock()

	o.events.Publish(model.PositionEvent(x, y))
	o.events.Status("position re-synced to center")
	log.Printf("[control] position estimate reset to center")
}
