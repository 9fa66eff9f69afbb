package equipment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/steriline/plantsim/internal/device"
)

const (
	tunnelBeltMPM      = 0.25
	tunnelOvertempWarn = 315.0
	tunnelOvertempTrip = 330.0
)

var tunnelZoneSetpoints = [3]float64{280.0, 300.0, 280.0}

// SterilizingTunnel simulates a depyrogenation tunnel: three heating zones
// ramp from ambient toward their setpoints while the belt carries vials
// through. Exposure accumulates only while the middle zone is at
// temperature.
type SterilizingTunnel struct {
	*device.Core

	zones [3]device.LagChannel
	belt  device.LagChannel

	exposure  time.Duration
	zoneWarns [3]bool
}

func NewSterilizingTunnel(id, name string, rng *rand.Rand, opts ...device.Option) *SterilizingTunnel {
	t := &SterilizingTunnel{
		belt: device.LagChannel{Value: 0, Target: tunnelBeltMPM, Tau: 5 * time.Second, NoiseFrac: 0.005},
	}
	for i, sp := range tunnelZoneSetpoints {
		t.zones[i] = device.LagChannel{
			Value:     22.0,
			Target:    sp,
			Tau:       time.Duration(90+30*i) * time.Second,
			NoiseFrac: 0.002,
		}
	}
	t.Core = device.NewCore(id, name, device.TypeProcessEquipment, rng, t, opts...)
	return t
}

// Exposure reports accumulated at-temperature time since the last Initialize.
func (t *SterilizingTunnel) Exposure() time.Duration { return t.exposure }

func (t *SterilizingTunnel) Reset() {
	for i, sp := range tunnelZoneSetpoints {
		t.zones[i].Reset(22.0)
		t.zones[i].Target = sp
		t.zoneWarns[i] = false
	}
	t.belt.Reset(0)
	t.exposure = 0
	t.publish([3]float64{22.0, 22.0, 22.0}, 0)
}

func (t *SterilizingTunnel) Step(elapsed time.Duration) {
	rng := t.Rand()
	var temps [3]float64
	for i := range t.zones {
		temps[i] = t.zones[i].Advance(elapsed, rng)
	}
	belt := t.belt.Advance(elapsed, rng)

	if temps[1] >= tunnelZoneSetpoints[1]-10 {
		t.exposure += elapsed
	}
	t.publish(temps, belt)

	for i, temp := range temps {
		t.checkZone(i, temp)
	}
}

// Halt stops the belt; the zones cool on their own thermal mass.
func (t *SterilizingTunnel) Halt() {
	t.belt.Reset(0)
	t.Publish("belt_speed_mpm", device.Float(0))
}

// Fault simulates a failed heating element in zone 2.
func (t *SterilizingTunnel) Fault() {
	degraded := 150.0
	if rng := t.Rand(); rng != nil {
		degraded -= rng.Float64() * 50
	}
	t.zones[1].Target = degraded
	t.AddAlarm("HEATER_ELEMENT_FAILED",
		fmt.Sprintf("zone 2 heater failed, temperature falling toward %.0f degC", degraded),
		device.SeverityMajor)
	t.TripFault("HEATER_ELEMENT_FAILED")
}

func (t *SterilizingTunnel) publish(temps [3]float64, belt float64) {
	for i, temp := range temps {
		t.Publish(fmt.Sprintf("zone%d_temp_degC", i+1), device.Float(temp))
	}
	t.Publish("belt_speed_mpm", device.Float(belt))
	t.Publish("exposure_min", device.Float(t.exposure.Minutes()))
}

func (t *SterilizingTunnel) checkZone(i int, temp float64) {
	if temp > tunnelOvertempTrip {
		t.AddAlarm("ZONE_OVERTEMP",
			fmt.Sprintf("zone %d at %.1f degC above %.0f trip", i+1, temp, tunnelOvertempTrip),
			device.SeverityCritical)
		t.TripAlarm()
		return
	}
	switch {
	case temp > tunnelOvertempWarn && !t.zoneWarns[i]:
		t.zoneWarns[i] = true
		t.AddAlarm("ZONE_HOT",
			fmt.Sprintf("zone %d at %.1f degC above %.0f warning", i+1, temp, tunnelOvertempWarn),
			device.SeverityWarning)
		t.RaiseWarning()
	case temp <= tunnelOvertempWarn && t.zoneWarns[i]:
		t.zoneWarns[i] = false
		if !t.zoneWarns[0] && !t.zoneWarns[1] && !t.zoneWarns[2] {
			t.ClearWarning()
		}
	}
}
