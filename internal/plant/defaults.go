// Package plant assembles the default device roster for the simulated
// filling facility.
package plant

import (
	"math/rand"

	"github.com/steriline/plantsim/internal/control"
	"github.com/steriline/plantsim/internal/device"
	"github.com/steriline/plantsim/internal/equipment"
	"github.com/steriline/plantsim/internal/sensors"
)

// analogReadPoint exposes a sensor reading as a PID process variable.
type analogReadPoint struct {
	s *sensors.Analog
}

func (p analogReadPoint) Read() float64 { return p.s.Reading() }

func (p analogReadPoint) Write(float64) {}

// analogTargetPoint lets a PID output drive a sensor's physical target, the
// way a heater duty cycle drags a jacket temperature.
type analogTargetPoint struct {
	s *sensors.Analog
}

func (p analogTargetPoint) Read() float64 { return p.s.Target() }

func (p analogTargetPoint) Write(v float64) { p.s.SetTarget(v) }

// spawn derives an independent generator so each device evolves its own
// noise stream from one master seed.
func spawn(rng *rand.Rand) *rand.Rand {
	return rand.New(rand.NewSource(rng.Int63()))
}

// Default builds the standard roster: process equipment, field
// instrumentation, and one temperature control loop.
func Default(rng *rand.Rand) []device.Device {
	jacketTemp := sensors.Temperature("TT-101", "Bioreactor Jacket Temperature", 37.0, spawn(rng))

	tic := control.NewController(
		"TIC-101", "Jacket Temperature Controller",
		control.NewLoop(
			analogReadPoint{s: jacketTemp},
			analogTargetPoint{s: jacketTemp},
			control.PID{
				Kp:       2.0,
				Ki:       0.05,
				Setpoint: 37.0,
				OutMin:   22.0,
				OutMax:   80.0,
			},
		),
		spawn(rng),
	)

	return []device.Device{
		equipment.NewBioreactor("BR-101", "Production Bioreactor", spawn(rng)),
		equipment.NewCentrifuge("CEN-202", "Harvest Centrifuge", spawn(rng)),
		equipment.NewChromatographySkid("CHR-201", "Capture Chromatography Skid", spawn(rng)),
		equipment.NewSterilizingTunnel("STZ-302", "Depyrogenation Tunnel", spawn(rng)),
		equipment.NewFillingLine("FIL-301", "Aseptic Filling Line", spawn(rng)),
		jacketTemp,
		tic,
		sensors.Pressure("PT-201", "Chromatography Inlet Pressure", 2.4, spawn(rng)),
		sensors.PH("AT-105", "Culture pH", 7.1, spawn(rng)),
		sensors.Flow("FT-301", "Buffer Flow", 120.0, spawn(rng)),
		sensors.Conductivity("CT-401", "Elution Conductivity", 15.0, spawn(rng)),
	}
}
