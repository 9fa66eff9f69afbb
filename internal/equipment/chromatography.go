package equipment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/steriline/plantsim/internal/device"
)

const (
	chromaFlowLPM        = 1.8
	chromaPressureBar    = 2.4
	chromaPressureWarn   = 3.0
	chromaPressureAlarm  = 3.5
	chromaBaselineAU     = 0.05
	chromaPeakAU         = 1.4
	chromaFoulingPerHour = 0.06 // column backpressure creep as it packs
)

// ChromatographySkid simulates a protein-capture chromatography skid:
// column pressure creeps up as the resin fouls, the UV trace rises toward a
// product peak, and processed volume accumulates from the flow reading.
type ChromatographySkid struct {
	*device.Core

	flow     device.LagChannel
	pressure device.LagChannel
	uv       device.LagChannel

	processedL   float64
	pressureWarn bool
}

func NewChromatographySkid(id, name string, rng *rand.Rand, opts ...device.Option) *ChromatographySkid {
	c := &ChromatographySkid{
		flow:     device.LagChannel{Value: 0, Target: chromaFlowLPM, Tau: 6 * time.Second, NoiseFrac: 0.005},
		pressure: device.LagChannel{Value: 0, Target: chromaPressureBar, Tau: 10 * time.Second, DriftPerHour: chromaFoulingPerHour, NoiseFrac: 0.004},
		uv:       device.LagChannel{Value: chromaBaselineAU, Target: chromaPeakAU, Tau: 4 * time.Minute, NoiseFrac: 0.01},
	}
	c.Core = device.NewCore(id, name, device.TypeProcessEquipment, rng, c, opts...)
	return c
}

// ProcessedVolume reports liters pushed through the column since the last
// Initialize.
func (c *ChromatographySkid) ProcessedVolume() float64 { return c.processedL }

func (c *ChromatographySkid) Reset() {
	c.flow.Reset(0)
	c.pressure.Reset(0)
	c.uv.Reset(chromaBaselineAU)
	c.processedL = 0
	c.pressureWarn = false
	c.publish(0, 0, chromaBaselineAU)
}

func (c *ChromatographySkid) Step(elapsed time.Duration) {
	rng := c.Rand()
	flow := c.flow.Advance(elapsed, rng)
	pressure := c.pressure.Advance(elapsed, rng)
	uv := c.uv.Advance(elapsed, rng)

	c.processedL += flow * elapsed.Minutes()
	c.publish(flow, pressure, uv)
	c.checkPressure(pressure)
}

// Halt closes the inlet valve: flow collapses, pressure bleeds off.
func (c *ChromatographySkid) Halt() {
	c.flow.Reset(0)
	c.pressure.Value = 0
	c.Publish("flow_lpm", device.Float(0))
}

// Fault simulates a blocked frit: backpressure spikes well past the alarm
// band.
func (c *ChromatographySkid) Fault() {
	spike := chromaPressureAlarm + 0.5
	if rng := c.Rand(); rng != nil {
		spike += rng.Float64() * 1.5
	}
	c.pressure.Value = spike
	c.pressure.Target = spike
	c.AddAlarm("COLUMN_BLOCKED",
		fmt.Sprintf("column backpressure spiked to %.2f bar", spike),
		device.SeverityCritical)
	c.TripFault("COLUMN_BLOCKED")
}

func (c *ChromatographySkid) publish(flow, pressure, uv float64) {
	c.Publish("flow_lpm", device.Float(flow))
	c.Publish("column_pressure_bar", device.Float(pressure))
	c.Publish("uv_absorbance_au", device.Float(uv))
	c.Publish("processed_volume_l", device.Float(c.processedL))
}

func (c *ChromatographySkid) checkPressure(pressure float64) {
	if pressure > chromaPressureAlarm {
		c.AddAlarm("OVERPRESSURE",
			fmt.Sprintf("column pressure %.2f bar above %.1f bar trip", pressure, chromaPressureAlarm),
			device.SeverityMajor)
		c.TripAlarm()
		return
	}
	switch {
	case pressure > chromaPressureWarn && !c.pressureWarn:
		c.pressureWarn = true
		c.AddAlarm("PRESSURE_CREEP",
			fmt.Sprintf("column pressure %.2f bar approaching trip", pressure),
			device.SeverityWarning)
		c.RaiseWarning()
	case pressure <= chromaPressureWarn && c.pressureWarn:
		c.pressureWarn = false
		c.ClearWarning()
	}
}
