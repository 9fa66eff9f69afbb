// Package sensors provides the analog instrument family. One parameterized
// Analog device covers the temperature, pressure, pH, flow and conductivity
// instruments; each named constructor supplies the characteristic response
// time, drift and noise figures for that instrument class.
package sensors

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/steriline/plantsim/internal/device"
)

// Config describes one analog instrument.
type Config struct {
	Kind    string  // e.g. "temperature"
	Units   string  // e.g. "degC"
	Ambient float64 // baseline value after a reset
	Target  float64 // settling target while running

	Tau          time.Duration
	DriftPerHour float64
	NoiseFrac    float64

	// Soft band: leaving it degrades the device to Warning.
	WarnLow, WarnHigh float64
	// Hard band: leaving it trips Alarm status. Zero values disable the band.
	AlarmLow, AlarmHigh float64
}

// Analog is a simulated analog instrument built on the device framework.
type Analog struct {
	*device.Core

	cfg     Config
	ch      device.LagChannel
	reading float64

	warnLatched  bool
	alarmLatched bool
	// Bands arm only after the reading first settles inside them, so the
	// startup ramp from ambient cannot trip the interlocks.
	bandsArmed bool
}

// New constructs an analog instrument. The device starts Offline; the scan
// driver is expected to Initialize and Start it.
func New(id, name string, cfg Config, rng *rand.Rand, opts ...device.Option) *Analog {
	s := &Analog{
		cfg: cfg,
		ch: device.LagChannel{
			Value:        cfg.Ambient,
			Target:       cfg.Target,
			Tau:          cfg.Tau,
			DriftPerHour: cfg.DriftPerHour,
			NoiseFrac:    cfg.NoiseFrac,
		},
		reading: cfg.Ambient,
	}
	s.Core = device.NewCore(id, name, device.TypeSensor, rng, s, opts...)
	return s
}

// Reading returns the last composed measurement.
func (s *Analog) Reading() float64 { return s.reading }

// SetTarget retargets the lag channel, modeling an external influence on the
// measured process (heater output, valve position).
func (s *Analog) SetTarget(v float64) { s.ch.Target = v }

// Target returns the current settling target.
func (s *Analog) Target() float64 { return s.ch.Target }

// Reset restores ambient conditions and clears drift and threshold latches.
func (s *Analog) Reset() {
	s.ch.Reset(s.cfg.Ambient)
	s.ch.Target = s.cfg.Target
	s.reading = s.cfg.Ambient
	s.warnLatched = false
	s.alarmLatched = false
	s.bandsArmed = false
	s.publish()
}

// Step advances the lag-drift-noise composition and re-evaluates thresholds.
func (s *Analog) Step(elapsed time.Duration) {
	s.reading = s.ch.Advance(elapsed, s.Rand())
	s.publish()
	s.checkThresholds()
}

// Halt is a no-op; instruments hold no actuation.
func (s *Analog) Halt() {}

// Fault sticks the instrument low, raises a critical alarm and faults the
// device. The perturbation scale is randomized when an rng is present.
func (s *Analog) Fault() {
	scale := 0.2
	if rng := s.Rand(); rng != nil {
		scale = 0.1 + 0.4*rng.Float64()
	}
	s.ch.Reset(s.ch.Value * scale)
	s.reading = s.ch.Value
	s.publish()
	s.AddAlarm("SENSOR_STUCK",
		fmt.Sprintf("%s reading collapsed to %.2f %s", s.cfg.Kind, s.reading, s.cfg.Units),
		device.SeverityCritical)
	s.TripFault("SENSOR_STUCK")
}

func (s *Analog) publish() {
	s.Publish("reading", device.Float(s.reading))
	s.Publish("target", device.Float(s.ch.Target))
	s.Publish("drift", device.Float(s.ch.Drift()))
	s.Publish("units", device.Str(s.cfg.Units))
	s.Publish("kind", device.Str(s.cfg.Kind))
}

func (s *Analog) checkThresholds() {
	if !s.bandsArmed {
		if !s.inBand(s.reading) {
			return
		}
		s.bandsArmed = true
	}

	if s.cfg.AlarmLow != 0 || s.cfg.AlarmHigh != 0 {
		out := s.reading < s.cfg.AlarmLow || s.reading > s.cfg.AlarmHigh
		if out && !s.alarmLatched {
			s.alarmLatched = true
			s.AddAlarm("RANGE_ALARM",
				fmt.Sprintf("%s %.2f %s outside alarm band [%.2f, %.2f]",
					s.cfg.Kind, s.reading, s.cfg.Units, s.cfg.AlarmLow, s.cfg.AlarmHigh),
				device.SeverityMajor)
			s.TripAlarm()
			return
		}
		if !out {
			s.alarmLatched = false
		}
	}

	if s.cfg.WarnLow != 0 || s.cfg.WarnHigh != 0 {
		out := s.reading < s.cfg.WarnLow || s.reading > s.cfg.WarnHigh
		switch {
		case out && !s.warnLatched:
			s.warnLatched = true
			s.AddAlarm("RANGE_WARNING",
				fmt.Sprintf("%s %.2f %s outside warning band [%.2f, %.2f]",
					s.cfg.Kind, s.reading, s.cfg.Units, s.cfg.WarnLow, s.cfg.WarnHigh),
				device.SeverityWarning)
			s.RaiseWarning()
		case !out && s.warnLatched:
			s.warnLatched = false
			s.ClearWarning()
		}
	}
}

// inBand reports whether the reading sits inside the tightest configured
// band. Unconfigured bands count as in-band, so band-free sensors arm
// immediately.
func (s *Analog) inBand(reading float64) bool {
	if s.cfg.WarnLow != 0 || s.cfg.WarnHigh != 0 {
		return reading >= s.cfg.WarnLow && reading <= s.cfg.WarnHigh
	}
	if s.cfg.AlarmLow != 0 || s.cfg.AlarmHigh != 0 {
		return reading >= s.cfg.AlarmLow && reading <= s.cfg.AlarmHigh
	}
	return true
}

// Temperature builds a jacket/room temperature transmitter settling toward
// target degC from a 22 degC ambient.
func Temperature(id, name string, target float64, rng *rand.Rand) *Analog {
	return New(id, name, Config{
		Kind:         "temperature",
		Units:        "degC",
		Ambient:      22.0,
		Target:       target,
		Tau:          30 * time.Second,
		DriftPerHour: 0.02,
		NoiseFrac:    0.002,
		WarnLow:      target - 1.5,
		WarnHigh:     target + 1.5,
		AlarmLow:     target - 4.0,
		AlarmHigh:    target + 4.0,
	}, rng)
}

// Pressure builds a line-pressure transmitter in bar.
func Pressure(id, name string, target float64, rng *rand.Rand) *Analog {
	return New(id, name, Config{
		Kind:         "pressure",
		Units:        "bar",
		Ambient:      0.0,
		Target:       target,
		Tau:          8 * time.Second,
		DriftPerHour: 0.005,
		NoiseFrac:    0.004,
		WarnHigh:     target * 1.25,
		WarnLow:      -1, // negative sentinel keeps the low edge open
		AlarmHigh:    target * 1.5,
		AlarmLow:     -1,
	}, rng)
}

// PH builds a pH probe; drift dominates the error budget on these.
func PH(id, name string, target float64, rng *rand.Rand) *Analog {
	return New(id, name, Config{
		Kind:         "ph",
		Units:        "pH",
		Ambient:      7.0,
		Target:       target,
		Tau:          45 * time.Second,
		DriftPerHour: 0.03,
		NoiseFrac:    0.001,
		WarnLow:      target - 0.3,
		WarnHigh:     target + 0.3,
		AlarmLow:     target - 0.8,
		AlarmHigh:    target + 0.8,
	}, rng)
}

// Flow builds a flow meter in L/min.
func Flow(id, name string, target float64, rng *rand.Rand) *Analog {
	return New(id, name, Config{
		Kind:         "flow",
		Units:        "L/min",
		Ambient:      0.0,
		Target:       target,
		Tau:          4 * time.Second,
		DriftPerHour: 0.01,
		NoiseFrac:    0.006,
		WarnLow:      target * 0.6,
		WarnHigh:     target * 1.4,
	}, rng)
}

// Conductivity builds a conductivity cell in mS/cm, used on CIP return lines.
func Conductivity(id, name string, target float64, rng *rand.Rand) *Analog {
	return New(id, name, Config{
		Kind:         "conductivity",
		Units:        "mS/cm",
		Ambient:      0.05,
		Target:       target,
		Tau:          12 * time.Second,
		DriftPerHour: 0.008,
		NoiseFrac:    0.003,
		WarnHigh:     target * 1.3,
	}, rng)
}
