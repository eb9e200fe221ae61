// Package pid implements the per-axis feedback controller that turns a
// pixel error into a bounded pulse step for the gimbal servos.
package pid

import "math"

// Controller is a discrete PID controller. The error unit is pixels, the
// output unit is transport pulses. The integral term is clamped to avoid
// windup during sustained error; the derivative term is suppressed on the
// first update after construction or Reset so an undefined previous error
// never produces a kick.
type Controller struct {
	kp, ki, kd float64

	integral    float64
	prevError   float64
	firstRun    bool
	maxStep     int
	maxIntegral float64
}

// New constructs a controller with the given gains, per-update step cap and
// integral clamp.
func New(kp, ki, kd float64, maxStep int, maxIntegral float64) *Controller {
	c := &Controller{
		kp:          kp,
		ki:          ki,
		kd:          kd,
		maxStep:     maxStep,
		maxIntegral: maxIntegral,
	}
	c.Reset()
	return c
}

// Reset zeroes the integral and error history and re-arms the first-run
// derivative suppression. Gains and limits are kept.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.firstRun = true
}

// SetTunings updates the gains without touching accumulated state.
func (c *Controller) SetTunings(kp, ki, kd float64) {
	c.kp = kp
	c.ki = ki
	c.kd = kd
}

// Tunings returns the current gains.
func (c *Controller) Tunings() (kp, ki, kd float64) {
	return c.kp, c.ki, c.kd
}

// SetMaxStep adjusts the per-update output cap. The orchestrator re-sets it
// every tick from the adaptive speed schedule.
func (c *Controller) SetMaxStep(maxStep int) {
	c.maxStep = maxStep
}

// Integral exposes the accumulated integral, mainly for recording and tests.
func (c *Controller) Integral() float64 {
	return c.integral
}

// Update runs one PID step for the given error and returns the pulse delta.
// Outputs with magnitude below 1 collapse to 0 so noise never produces
// micro-dither commands.
func (c *Controller) Update(err float64) int {
	pTerm := err * c.kp

	c.integral += err
	c.integral = math.Max(-c.maxIntegral, math.Min(c.maxIntegral, c.integral))
	iTerm := c.integral * c.ki

	dTerm := 0.0
	if !c.firstRun {
		dTerm = (err - c.prevError) * c.kd
	} else {
		c.firstRun = false
	}
	c.prevError = err

	out := int(pTerm + iTerm + dTerm)

	if out > -1 && out < 1 {
		return 0
	}
	if out > c.maxStep {
		return c.maxStep
	}
	if out < -c.maxStep {
		return -c.maxStep
	}
	return out
}
