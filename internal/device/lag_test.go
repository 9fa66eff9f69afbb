package device

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLagApproachesTargetMonotonically(t *testing.T) {
	ch := LagChannel{Value: 22.0, Target: 37.0, Tau: 5 * time.Second}

	prev := 22.0
	for i := 0; i < 10; i++ {
		reading := ch.Advance(time.Second, nil)
		assert.Greater(t, reading, prev, "tick %d", i)
		assert.LessOrEqual(t, reading, 37.0, "tick %d must not overshoot", i)
		prev = reading
	}
}

func TestLagIsStepSizeInvariant(t *testing.T) {
	whole := LagChannel{Value: 0, Target: 100, Tau: 3 * time.Second}
	split := LagChannel{Value: 0, Target: 100, Tau: 3 * time.Second}

	whole.Advance(2*time.Second, nil)
	split.Advance(500*time.Millisecond, nil)
	split.Advance(500*time.Millisecond, nil)
	split.Advance(time.Second, nil)

	assert.InDelta(t, whole.Value, split.Value, 1e-9,
		"exponential settling must not depend on tick partitioning")
}

func TestLagZeroTauSnaps(t *testing.T) {
	ch := LagChannel{Value: 5, Target: 42}
	assert.Equal(t, 42.0, ch.Advance(time.Millisecond, nil))
}

func TestDriftAccumulatesWithElapsedTime(t *testing.T) {
	ch := LagChannel{Value: 10, Target: 10, Tau: time.Second, DriftPerHour: 0.6}

	ch.Advance(30*time.Minute, nil)
	assert.InDelta(t, 0.3, ch.Drift(), 1e-9)

	ch.Advance(30*time.Minute, nil)
	assert.InDelta(t, 0.6, ch.Drift(), 1e-9)

	reading := ch.Advance(0, nil)
	assert.InDelta(t, 10.6, reading, 1e-9)

	ch.Reset(10)
	assert.Zero(t, ch.Drift())
}

func TestNoiseIsBoundedAndSeeded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ch := LagChannel{Value: 100, Target: 100, Tau: time.Second, NoiseFrac: 0.02}

	for i := 0; i < 50; i++ {
		reading := ch.Advance(time.Second, rng)
		assert.LessOrEqual(t, math.Abs(reading-ch.Value), 0.02*ch.Value+1e-9)
	}

	// Same seed reproduces the same trace.
	a := rand.New(rand.NewSource(7))
	b := rand.New(rand.NewSource(7))
	chA := LagChannel{Value: 50, Target: 60, Tau: 2 * time.Second, NoiseFrac: 0.05}
	chB := LagChannel{Value: 50, Target: 60, Tau: 2 * time.Second, NoiseFrac: 0.05}
	for i := 0; i < 20; i++ {
		assert.Equal(t, chA.Advance(time.Second, a), chB.Advance(time.Second, b))
	}
}
