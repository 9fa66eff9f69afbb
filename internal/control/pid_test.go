package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steriline/plantsim/internal/device"
)

// tank is a trivial first-order plant: the heater output drives the
// temperature toward ambient + gain*output.
type tank struct {
	temp   float64
	heater float64
}

func (p *tank) step(elapsed time.Duration) {
	target := 20.0 + 0.5*p.heater
	alpha := 1.0 - 1.0/(1.0+elapsed.Seconds()/10.0)
	p.temp += (target - p.temp) * alpha
}

type tankPV struct{ p *tank }

func (r tankPV) Read() float64   { return r.p.temp }
func (r tankPV) Write(f float64) {}

type tankCV struct{ p *tank }

func (w tankCV) Read() float64   { return w.p.heater }
func (w tankCV) Write(f float64) { w.p.heater = f }

func TestLoopConvergesToSetpoint(t *testing.T) {
	plant := &tank{temp: 20.0}
	loop := NewLoop(tankPV{plant}, tankCV{plant}, PID{
		Kp: 4.0, Ki: 0.2, Setpoint: 37.0, OutMin: 0, OutMax: 100,
	})

	for i := 0; i < 1200; i++ {
		loop.Execute(time.Second)
		plant.step(time.Second)
	}
	assert.InDelta(t, 37.0, plant.temp, 1.0)
}

func TestLoopOutputClampsAndDoesNotWindUp(t *testing.T) {
	plant := &tank{temp: 20.0}
	loop := NewLoop(tankPV{plant}, tankCV{plant}, PID{
		Kp: 10.0, Ki: 1.0, Setpoint: 90.0, OutMin: 0, OutMax: 100,
	})

	// The setpoint is unreachable fast; the output must sit on the clamp.
	for i := 0; i < 100; i++ {
		out := loop.Execute(time.Second)
		plant.step(time.Second)
		assert.LessOrEqual(t, out, 100.0)
		assert.GreaterOrEqual(t, out, 0.0)
	}

	// Dropping the setpoint must not leave a wound-up integral fighting the
	// turn-down: the output has to come off the clamp quickly.
	loop.SetSetpoint(30.0)
	var off bool
	for i := 0; i < 30 && !off; i++ {
		off = loop.Execute(time.Second) < 100.0
		plant.step(time.Second)
	}
	assert.True(t, off, "output stayed saturated after setpoint drop")
}

// countingPoint tallies every read and write crossing the process boundary.
type countingPoint struct {
	value  float64
	reads  int
	writes int
}

func (p *countingPoint) Read() float64 {
	p.reads++
	return p.value
}

func (p *countingPoint) Write(v float64) {
	p.writes++
	p.value = v
}

func TestControllerStepReadsAndWritesOnce(t *testing.T) {
	pv := &countingPoint{value: 20.0}
	cv := &countingPoint{}
	loop := NewLoop(pv, cv, PID{Kp: 2.0, Setpoint: 37.0, OutMin: 0, OutMax: 100})
	ctl := NewController("TIC-102", "Counting Loop", loop, nil)

	ctl.Initialize()
	require.True(t, ctl.Start())
	ctl.Update(time.Second)

	assert.Equal(t, 1, pv.reads)
	assert.Equal(t, 1, cv.writes)

	// The published pv is the sample Execute consumed, not a fresh read.
	assert.Equal(t, 20.0, ctl.Diagnostics()["pv"].Float())
	assert.Equal(t, 20.0, loop.PV())
}

func TestControllerDeviceGatesLoopExecution(t *testing.T) {
	plant := &tank{temp: 20.0}
	loop := NewLoop(tankPV{plant}, tankCV{plant}, PID{
		Kp: 2.0, Ki: 0.1, Setpoint: 37.0, OutMin: 0, OutMax: 100,
	})
	ctl := NewController("TIC-101", "Jacket Temp Loop", loop, nil)

	ctl.Initialize()
	assert.Equal(t, device.StatusReady, ctl.Status())

	// Not running: Update must not touch the plant.
	ctl.Update(time.Second)
	assert.Zero(t, plant.heater)

	require.True(t, ctl.Start())
	ctl.Update(time.Second)
	assert.Greater(t, plant.heater, 0.0)
	assert.Equal(t, loop.Output(), ctl.Diagnostics()["output"].Float())

	// Stop releases the actuator to the neutral output.
	require.True(t, ctl.Stop())
	assert.Zero(t, plant.heater)
}
