package equipment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/steriline/plantsim/internal/device"
)

const (
	fillLineSpeedVPM   = 300.0 // vials per minute at steady state
	fillTargetWeightG  = 1.02
	fillWeightTolG     = 0.04
	fillWeightRejectG  = 0.08
	fillSpeedRampTau   = 15 * time.Second
	fillRejectRateWarn = 0.05
)

// FillingLine simulates an aseptic vial filling line: conveyor speed ramps
// with a first-order lag, fill weight carries scale drift and noise, and the
// vial counters accumulate across Stop/Start (only Initialize clears them).
type FillingLine struct {
	*device.Core

	speed  device.LagChannel
	weight device.LagChannel

	vialsFilled   float64
	vialsRejected float64
	vialCarry     float64 // fractional vial left over between ticks
	rejectWarn    bool
}

func NewFillingLine(id, name string, rng *rand.Rand, opts ...device.Option) *FillingLine {
	f := &FillingLine{
		speed:  device.LagChannel{Value: 0, Target: fillLineSpeedVPM, Tau: fillSpeedRampTau, NoiseFrac: 0.01},
		weight: device.LagChannel{Value: fillTargetWeightG, Target: fillTargetWeightG, Tau: time.Second, DriftPerHour: 0.003, NoiseFrac: 0.008},
	}
	f.Core = device.NewCore(id, name, device.TypeProcessEquipment, rng, f, opts...)
	return f
}

// VialsFilled reports the total vials filled since the last Initialize.
func (f *FillingLine) VialsFilled() int64 { return int64(f.vialsFilled) }

// VialsRejected reports the total weight rejects since the last Initialize.
func (f *FillingLine) VialsRejected() int64 { return int64(f.vialsRejected) }

func (f *FillingLine) Reset() {
	f.speed.Reset(0)
	f.speed.Target = fillLineSpeedVPM
	f.weight.Reset(fillTargetWeightG)
	f.vialsFilled = 0
	f.vialsRejected = 0
	f.vialCarry = 0
	f.rejectWarn = false
	f.publish(0, fillTargetWeightG)
}

func (f *FillingLine) Step(elapsed time.Duration) {
	rng := f.Rand()
	speed := f.speed.Advance(elapsed, rng)
	weight := f.weight.Advance(elapsed, rng)

	// Whole vials only; the fractional remainder carries into the next tick.
	produced := speed*elapsed.Minutes() + f.vialCarry
	whole := float64(int64(produced))
	f.vialCarry = produced - whole
	f.vialsFilled += whole

	if dev := weight - fillTargetWeightG; dev > fillWeightRejectG || dev < -fillWeightRejectG {
		f.vialsRejected += whole
	} else if dev > fillWeightTolG || dev < -fillWeightTolG {
		// Borderline fills reject a sampled fraction of the tick's output.
		frac := 0.5
		if rng != nil {
			frac = rng.Float64()
		}
		f.vialsRejected += whole * frac
	}

	f.publish(speed, weight)
	f.checkRejectRate()
}

// Halt releases the conveyor. The speed target is left alone so a restart
// ramps back up from zero.
func (f *FillingLine) Halt() {
	f.speed.Reset(0)
	f.Publish("line_speed_vpm", device.Float(0))
}

// Fault simulates a check-weigher scale drifting out of calibration.
func (f *FillingLine) Fault() {
	shift := fillWeightRejectG * 1.5
	if rng := f.Rand(); rng != nil && rng.Float64() < 0.5 {
		shift = -shift
	}
	f.weight.Target = fillTargetWeightG + shift
	f.AddAlarm("SCALE_DRIFT",
		fmt.Sprintf("check-weigher offset %.3f g exceeds calibration limit", shift),
		device.SeverityMajor)
	f.TripFault("SCALE_DRIFT")
}

func (f *FillingLine) publish(speed, weight float64) {
	f.Publish("line_speed_vpm", device.Float(speed))
	f.Publish("fill_weight_g", device.Float(weight))
	f.Publish("vials_filled", device.Int(int64(f.vialsFilled)))
	f.Publish("vials_rejected", device.Int(int64(f.vialsRejected)))
}

func (f *FillingLine) checkRejectRate() {
	if f.vialsFilled < 100 {
		return
	}
	rate := f.vialsRejected / f.vialsFilled
	switch {
	case rate > fillRejectRateWarn && !f.rejectWarn:
		f.rejectWarn = true
		f.AddAlarm("REJECT_RATE_HIGH",
			fmt.Sprintf("reject rate %.1f%% above %.0f%% limit", rate*100, fillRejectRateWarn*100),
			device.SeverityMinor)
		f.RaiseWarning()
	case rate <= fillRejectRateWarn && f.rejectWarn:
		f.rejectWarn = false
		f.ClearWarning()
	}
}
