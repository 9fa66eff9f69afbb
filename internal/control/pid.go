// Package control implements the PID loop that couples two otherwise
// independent devices through explicit process points.
package control

import (
	"math/rand"
	"time"

	"github.com/steriline/plantsim/internal/device"
)

// ProcessPoint is the explicit read/write indirection the loop uses instead
// of closures over external state. The loop reads the measurement once and
// writes the output once per execution, synchronously.
type ProcessPoint interface {
	Read() float64
	Write(value float64)
}

// PID holds the tuning and integration state of one loop.
type PID struct {
	Kp, Ki, Kd     float64
	Setpoint       float64
	OutMin, OutMax float64

	integral float64
	prevErr  float64
	primed   bool
}

// Execute computes one PID iteration for the given elapsed interval and
// returns the clamped output. Integration is conditional: while the output
// sits on a clamp the integral holds, which keeps the loop from winding up.
func (p *PID) Execute(pv float64, elapsed time.Duration) float64 {
	dt := elapsed.Seconds()
	if dt <= 0 {
		return p.clamp(p.Kp*(p.Setpoint-pv) + p.Ki*p.integral)
	}

	err := p.Setpoint - pv

	derivative := 0.0
	if p.primed {
		derivative = (err - p.prevErr) / dt
	}
	p.prevErr = err
	p.primed = true

	candidate := p.integral + err*dt
	out := p.Kp*err + p.Ki*candidate + p.Kd*derivative
	clamped := p.clamp(out)
	if out == clamped {
		p.integral = candidate
	}
	return clamped
}

// Reset clears the integration state, e.g. when the loop re-enters service.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.primed = false
}

func (p *PID) clamp(out float64) float64 {
	if p.OutMax > p.OutMin {
		if out > p.OutMax {
			return p.OutMax
		}
		if out < p.OutMin {
			return p.OutMin
		}
	}
	return out
}

// Loop binds a PID to its measurement and output points.
type Loop struct {
	pid PID
	pv  ProcessPoint
	cv  ProcessPoint

	lastOut float64
	lastPV  float64
}

// NewLoop constructs a loop around the given points and tuning.
func NewLoop(pv, cv ProcessPoint, pid PID) *Loop {
	return &Loop{pid: pid, pv: pv, cv: cv}
}

// Execute runs one cycle: one read, one compute, one write.
func (l *Loop) Execute(elapsed time.Duration) float64 {
	l.lastPV = l.pv.Read()
	l.lastOut = l.pid.Execute(l.lastPV, elapsed)
	l.cv.Write(l.lastOut)
	return l.lastOut
}

// Setpoint returns the loop's current setpoint.
func (l *Loop) Setpoint() float64 { return l.pid.Setpoint }

// SetSetpoint retargets the loop.
func (l *Loop) SetSetpoint(sp float64) { l.pid.Setpoint = sp }

// Output returns the last written control output.
func (l *Loop) Output() float64 { return l.lastOut }

// PV returns the process variable sampled by the last Execute.
func (l *Loop) PV() float64 { return l.lastPV }

// Reset clears the loop's integration state.
func (l *Loop) Reset() { l.pid.Reset() }

// Controller wraps a Loop as a device so the scan driver can treat the
// control layer like any other hardware: the loop executes once per Update
// while the controller is running and freezes with the usual status gate.
type Controller struct {
	*device.Core
	loop *Loop
}

// NewController builds a controller device around an existing loop.
func NewController(id, name string, loop *Loop, rng *rand.Rand, opts ...device.Option) *Controller {
	c := &Controller{loop: loop}
	c.Core = device.NewCore(id, name, device.TypeController, rng, c, opts...)
	return c
}

// Loop exposes the wrapped loop for setpoint changes.
func (c *Controller) Loop() *Loop { return c.loop }

func (c *Controller) Reset() {
	c.loop.Reset()
	c.Publish("setpoint", device.Float(c.loop.Setpoint()))
	c.Publish("output", device.Float(0))
}

func (c *Controller) Step(elapsed time.Duration) {
	out := c.loop.Execute(elapsed)
	c.Publish("setpoint", device.Float(c.loop.Setpoint()))
	c.Publish("output", device.Float(out))
	c.Publish("pv", device.Float(c.loop.PV()))
}

// Halt writes a neutral output so the actuator is released.
func (c *Controller) Halt() {
	c.loop.cv.Write(c.loop.pid.OutMin)
	c.loop.Reset()
	c.Publish("output", device.Float(c.loop.pid.OutMin))
}

// Fault simulates a stuck output: the loop stops correcting and the last
// output is held.
func (c *Controller) Fault() {
	c.AddAlarm("OUTPUT_STUCK", "controller output frozen at last value", device.SeverityMajor)
	c.TripFault("OUTPUT_STUCK")
}
