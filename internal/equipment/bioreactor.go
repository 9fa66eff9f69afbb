// Package equipment holds the simulated process equipment. Every unit embeds
// *device.Core and expresses its numeric model as lag channels plus
// accumulators; thresholds degrade the unit through the shared status
// machine.
package equipment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/steriline/plantsim/internal/device"
)

const (
	reactorAmbientTemp   = 22.0
	reactorSetpointTemp  = 37.0
	reactorSetpointPH    = 7.0
	reactorSetpointDO    = 40.0
	reactorAgitationRPM  = 200.0
	reactorTempWarnBand  = 0.8
	reactorTempAlarmBand = 2.5
	reactorPHWarnBand    = 0.25
)

// Bioreactor simulates a stirred-tank bioreactor: jacket temperature, culture
// pH, dissolved oxygen and agitation, plus a culture-age accumulator.
type Bioreactor struct {
	*device.Core

	temp      device.LagChannel
	ph        device.LagChannel
	do        device.LagChannel
	agitation device.LagChannel

	cultureTime time.Duration
	tempWarn    bool
	phWarn      bool
	// Temperature interlocks arm only after the jacket first reaches the
	// control band, so the cold startup ramp cannot trip them.
	tempArmed bool
}

// NewBioreactor constructs the unit in Offline status.
func NewBioreactor(id, name string, rng *rand.Rand, opts ...device.Option) *Bioreactor {
	b := &Bioreactor{
		temp:      device.LagChannel{Value: reactorAmbientTemp, Target: reactorSetpointTemp, Tau: 5 * time.Minute, NoiseFrac: 0.001},
		ph:        device.LagChannel{Value: reactorSetpointPH, Target: reactorSetpointPH, Tau: 2 * time.Minute, DriftPerHour: -0.02, NoiseFrac: 0.001},
		do:        device.LagChannel{Value: 95.0, Target: reactorSetpointDO, Tau: 3 * time.Minute, NoiseFrac: 0.01},
		agitation: device.LagChannel{Value: 0, Target: reactorAgitationRPM, Tau: 10 * time.Second, NoiseFrac: 0.005},
	}
	b.Core = device.NewCore(id, name, device.TypeProcessEquipment, rng, b, opts...)
	return b
}

// CultureTime reports how long the culture has been running since the last
// reset. Stop does not clear it; only Initialize does.
func (b *Bioreactor) CultureTime() time.Duration { return b.cultureTime }

func (b *Bioreactor) Reset() {
	b.temp.Reset(reactorAmbientTemp)
	b.temp.Target = reactorSetpointTemp
	b.ph.Reset(reactorSetpointPH)
	b.do.Reset(95.0)
	b.agitation.Reset(0)
	b.agitation.Target = reactorAgitationRPM
	b.cultureTime = 0
	b.tempWarn = false
	b.phWarn = false
	b.tempArmed = false
	b.publish(reactorAmbientTemp, reactorSetpointPH, 95.0, 0)
}

func (b *Bioreactor) Step(elapsed time.Duration) {
	b.cultureTime += elapsed
	rng := b.Rand()
	temp := b.temp.Advance(elapsed, rng)
	ph := b.ph.Advance(elapsed, rng)
	do := b.do.Advance(elapsed, rng)
	agit := b.agitation.Advance(elapsed, rng)
	b.publish(temp, ph, do, agit)

	b.checkTemp(temp)
	b.checkPH(ph)
}

func (b *Bioreactor) Halt() {
	// Agitator stops immediately; the target is untouched so a restart spins
	// back up.
	b.agitation.Reset(0)
	b.Publish("agitation_rpm", device.Float(0))
}

// Fault simulates a jacket heater runaway.
func (b *Bioreactor) Fault() {
	runaway := 45.0
	if rng := b.Rand(); rng != nil {
		runaway += rng.Float64() * 8
	}
	b.temp.Target = runaway
	b.temp.Value = runaway
	b.AddAlarm("HEATER_RUNAWAY",
		fmt.Sprintf("jacket temperature runaway to %.1f degC", runaway),
		device.SeverityCritical)
	b.TripFault("HEATER_RUNAWAY")
}

func (b *Bioreactor) publish(temp, ph, do, agit float64) {
	b.Publish("temperature_degC", device.Float(temp))
	b.Publish("ph", device.Float(ph))
	b.Publish("dissolved_oxygen_pct", device.Float(do))
	b.Publish("agitation_rpm", device.Float(agit))
	b.Publish("culture_time_h", device.Float(b.cultureTime.Hours()))
}

func (b *Bioreactor) checkTemp(temp float64) {
	dev := temp - reactorSetpointTemp
	if !b.tempArmed {
		if dev >= -reactorTempWarnBand && dev <= reactorTempWarnBand {
			b.tempArmed = true
		}
		return
	}
	if dev > reactorTempAlarmBand || dev < -reactorTempAlarmBand {
		b.AddAlarm("TEMP_DEVIATION",
			fmt.Sprintf("culture temperature %.2f degC deviates %.2f from setpoint", temp, dev),
			device.SeverityMajor)
		b.TripAlarm()
		return
	}
	out := dev > reactorTempWarnBand || dev < -reactorTempWarnBand
	switch {
	case out && !b.tempWarn:
		b.tempWarn = true
		b.AddAlarm("TEMP_DRIFTING",
			fmt.Sprintf("culture temperature %.2f degC outside control band", temp),
			device.SeverityWarning)
		b.RaiseWarning()
	case !out && b.tempWarn:
		b.tempWarn = false
		if !b.phWarn {
			b.ClearWarning()
		}
	}
}

func (b *Bioreactor) checkPH(ph float64) {
	out := ph > reactorSetpointPH+reactorPHWarnBand || ph < reactorSetpointPH-reactorPHWarnBand
	switch {
	case out && !b.phWarn:
		b.phWarn = true
		b.AddAlarm("PH_DRIFTING",
			fmt.Sprintf("culture pH %.2f outside control band", ph),
			device.SeverityWarning)
		b.RaiseWarning()
	case !out && b.phWarn:
		b.phWarn = false
		if !b.tempWarn {
			b.ClearWarning()
		}
	}
}
