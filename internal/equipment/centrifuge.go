package equipment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/steriline/plantsim/internal/device"
)

const (
	bowlSpeedRPM       = 12000.0
	bowlSpinupTau      = 25 * time.Second
	vibrationBaseline  = 2.0 // mm/s at balanced full speed
	vibrationWarnMMS   = 6.0
	vibrationTripMMS   = 10.0
	solidsRatePerHour  = 4.5 // liters of solids captured per hour at speed
	solidsBowlCapacity = 12.0
)

// Centrifuge simulates a disk-stack centrifuge: the bowl spins up with a
// first-order lag, vibration tracks bowl speed with proportional noise, and
// captured solids accumulate until the bowl needs a discharge.
type Centrifuge struct {
	*device.Core

	bowl      device.LagChannel
	vibration device.LagChannel

	solidsL  float64
	vibWarn  bool
	bowlFull bool
}

func NewCentrifuge(id, name string, rng *rand.Rand, opts ...device.Option) *Centrifuge {
	c := &Centrifuge{
		bowl:      device.LagChannel{Value: 0, Target: bowlSpeedRPM, Tau: bowlSpinupTau, NoiseFrac: 0.002},
		vibration: device.LagChannel{Value: 0, Target: vibrationBaseline, Tau: bowlSpinupTau, NoiseFrac: 0.05},
	}
	c.Core = device.NewCore(id, name, device.TypeProcessEquipment, rng, c, opts...)
	return c
}

// SolidsCaptured reports liters of solids in the bowl since the last
// Initialize.
func (c *Centrifuge) SolidsCaptured() float64 { return c.solidsL }

func (c *Centrifuge) Reset() {
	c.bowl.Reset(0)
	c.bowl.Target = bowlSpeedRPM
	c.vibration.Reset(0)
	c.vibration.Target = vibrationBaseline
	c.solidsL = 0
	c.vibWarn = false
	c.bowlFull = false
	c.publish(0, 0)
}

func (c *Centrifuge) Step(elapsed time.Duration) {
	rng := c.Rand()
	rpm := c.bowl.Advance(elapsed, rng)
	vib := c.vibration.Advance(elapsed, rng)

	// Solids only separate once the bowl is near speed.
	if rpm > bowlSpeedRPM*0.9 {
		c.solidsL += solidsRatePerHour * elapsed.Hours()
	}
	c.publish(rpm, vib)

	if c.solidsL > solidsBowlCapacity && !c.bowlFull {
		c.bowlFull = true
		c.AddAlarm("BOWL_FULL",
			fmt.Sprintf("solids load %.1f L exceeds bowl capacity, discharge required", c.solidsL),
			device.SeverityMinor)
	}
	c.checkVibration(vib)
}

// Halt spins the bowl down.
func (c *Centrifuge) Halt() {
	c.bowl.Reset(0)
	c.vibration.Reset(0)
	c.Publish("bowl_speed_rpm", device.Float(0))
	c.Publish("vibration_mms", device.Float(0))
}

// Fault simulates a bowl imbalance: vibration jumps well past the trip level.
func (c *Centrifuge) Fault() {
	level := vibrationTripMMS * 1.5
	if rng := c.Rand(); rng != nil {
		level += rng.Float64() * 5
	}
	c.vibration.Value = level
	c.vibration.Target = level
	c.AddAlarm("BOWL_IMBALANCE",
		fmt.Sprintf("vibration %.1f mm/s indicates bowl imbalance", level),
		device.SeverityCritical)
	c.TripFault("BOWL_IMBALANCE")
}

func (c *Centrifuge) publish(rpm, vib float64) {
	c.Publish("bowl_speed_rpm", device.Float(rpm))
	c.Publish("vibration_mms", device.Float(vib))
	c.Publish("solids_captured_l", device.Float(c.solidsL))
}

func (c *Centrifuge) checkVibration(vib float64) {
	if vib > vibrationTripMMS {
		c.AddAlarm("VIBRATION_TRIP",
			fmt.Sprintf("vibration %.1f mm/s above %.0f trip", vib, vibrationTripMMS),
			device.SeverityMajor)
		c.TripAlarm()
		return
	}
	switch {
	case vib > vibrationWarnMMS && !c.vibWarn:
		c.vibWarn = true
		c.AddAlarm("VIBRATION_HIGH",
			fmt.Sprintf("vibration %.1f mm/s above %.0f warning", vib, vibrationWarnMMS),
			device.SeverityWarning)
		c.RaiseWarning()
	case vib <= vibrationWarnMMS && c.vibWarn:
		c.vibWarn = false
		c.ClearWarning()
	}
}
