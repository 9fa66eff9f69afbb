package device

import (
	"math"
	"math/rand"
	"time"
)

// LagChannel models one measured quantity as a first-order lag toward a
// target plus slow drift and proportional noise:
//
//	reading = laggedValue + accumulatedDrift + noise
//
// The lag uses the exact discrete form 1 - exp(-dt/tau) so it stays correct
// for variable tick lengths; two half-second steps settle the same amount as
// one full second.
type LagChannel struct {
	Value        float64       // current lagged value
	Target       float64       // settling target
	Tau          time.Duration // response time constant; <=0 snaps to target
	DriftPerHour float64       // calibration-decay bias, units per hour
	NoiseFrac    float64       // proportional noise amplitude, 0 disables

	drift float64
}

// Advance moves the channel by elapsed wall time and returns the composed
// reading. A nil rng or zero NoiseFrac yields a deterministic reading.
func (ch *LagChannel) Advance(elapsed time.Duration, rng *rand.Rand) float64 {
	dt := elapsed.Seconds()
	if dt <= 0 {
		return ch.Value + ch.drift
	}
	if ch.Tau > 0 {
		alpha := 1 - math.Exp(-dt/ch.Tau.Seconds())
		ch.Value += (ch.Target - ch.Value) * alpha
	} else {
		ch.Value = ch.Target
	}
	ch.drift += ch.DriftPerHour * dt / 3600

	reading := ch.Value + ch.drift
	if rng != nil && ch.NoiseFrac > 0 {
		reading += (rng.Float64()*2 - 1) * ch.NoiseFrac * math.Abs(reading)
	}
	return reading
}

// Reset pins the lagged value and clears accumulated drift.
func (ch *LagChannel) Reset(value float64) {
	ch.Value = value
	ch.drift = 0
}

// Drift reports the bias accumulated since the last Reset.
func (ch *LagChannel) Drift() float64 { return ch.drift }
