package device

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probe is a minimal model that counts hook invocations and mirrors a single
// lag channel into diagnostics.
type probe struct {
	core *Core

	ch       LagChannel
	resets   int
	steps    int
	halts    int
	faults   int
	lastStep time.Duration
}

func newProbe(t *testing.T) *probe {
	t.Helper()
	p := &probe{ch: LagChannel{Target: 37.0, Tau: 5 * time.Second}}
	p.core = NewCore("DEV-001", "Probe", TypeSensor, rand.New(rand.NewSource(1)), p)
	return p
}

func (p *probe) Reset() {
	p.resets++
	p.ch.Reset(22.0)
	p.core.Publish("reading", Float(p.ch.Value))
}

func (p *probe) Step(elapsed time.Duration) {
	p.steps++
	p.lastStep = elapsed
	p.core.Publish("reading", Float(p.ch.Advance(elapsed, nil)))
}

func (p *probe) Halt() { p.halts++ }

func (p *probe) Fault() {
	p.faults++
	p.core.AddAlarm("PROBE_FAULT", "simulated probe failure", SeverityCritical)
	p.core.TripFault("PROBE_FAULT")
}

func TestLifecycleHappyPath(t *testing.T) {
	p := newProbe(t)
	c := p.core

	assert.Equal(t, StatusOffline, c.Status())

	c.Initialize()
	assert.Equal(t, StatusReady, c.Status())
	assert.Equal(t, 1, p.resets)

	require.True(t, c.Start())
	assert.Equal(t, StatusRunning, c.Status())

	c.Update(time.Second)
	assert.Equal(t, 1, p.steps)
	assert.Equal(t, time.Second, p.lastStep)

	require.True(t, c.Stop())
	assert.Equal(t, StatusReady, c.Status())
	assert.Equal(t, 1, p.halts)
}

func TestIdleFreeze(t *testing.T) {
	p := newProbe(t)
	c := p.core
	c.Initialize()

	// Ready: frozen.
	c.Update(time.Second)
	assert.Zero(t, p.steps)
	assert.Zero(t, c.OperatingTime())

	before := c.Diagnostics()
	c.Update(10 * time.Minute)
	assert.Equal(t, before, c.Diagnostics())
}

func TestOperatingTimeAccumulates(t *testing.T) {
	p := newProbe(t)
	c := p.core
	c.Initialize()
	require.True(t, c.Start())

	durations := []time.Duration{
		100 * time.Millisecond, time.Second, 250 * time.Millisecond, 3 * time.Second,
	}
	var total time.Duration
	for _, d := range durations {
		c.Update(d)
		total += d
		assert.Equal(t, total, c.OperatingTime())
	}
	assert.Equal(t, len(durations), p.steps)

	// Non-positive elapsed is ignored.
	c.Update(0)
	c.Update(-time.Second)
	assert.Equal(t, total, c.OperatingTime())
}

func TestInitializeIsIdempotent(t *testing.T) {
	p := newProbe(t)
	c := p.core

	c.Initialize()
	first := c.Diagnostics()

	c.Start()
	c.Update(7 * time.Second)

	c.Initialize()
	second := c.Diagnostics()
	c.Initialize()
	third := c.Diagnostics()

	assert.Equal(t, first, second)
	assert.Equal(t, second, third)
	assert.Zero(t, c.OperatingTime())
	assert.Equal(t, StatusReady, c.Status())
}

func TestStartStopSymmetry(t *testing.T) {
	p := newProbe(t)
	c := p.core
	c.Initialize()

	require.True(t, c.Start())
	c.Update(4 * time.Second)
	require.True(t, c.Stop())

	// Restarting without Initialize keeps accumulated totals.
	require.True(t, c.Start())
	assert.Equal(t, 4*time.Second, c.OperatingTime())
	c.Update(time.Second)
	assert.Equal(t, 5*time.Second, c.OperatingTime())
}

func TestInvalidTransitionsRaiseInfoAlarms(t *testing.T) {
	p := newProbe(t)
	c := p.core
	c.Initialize()

	// Stop while Ready: no-op, informational alarm only.
	assert.False(t, c.Stop())
	assert.Equal(t, StatusReady, c.Status())
	alarms := c.Alarms()
	require.Len(t, alarms, 1)
	assert.Equal(t, "STOP_IGNORED", alarms[0].Code)
	assert.Equal(t, SeverityInformation, alarms[0].Severity)

	// Double start: rejected without a state change.
	require.True(t, c.Start())
	assert.False(t, c.Start())
	assert.Equal(t, StatusRunning, c.Status())
	alarms = c.Alarms()
	require.Len(t, alarms, 2)
	assert.Equal(t, "START_REJECTED", alarms[1].Code)
}

func TestAlarmListIsAppendOnly(t *testing.T) {
	p := newProbe(t)
	c := p.core
	c.Initialize()

	c.AddAlarm("A", "first", SeverityMinor)
	c.AddAlarm("A", "first", SeverityMinor) // duplicates accumulate
	c.AddAlarm("B", "second", SeverityMajor)
	require.Len(t, c.Alarms(), 3)

	// Acknowledge flips the flag but removes nothing.
	id := c.Alarms()[0].ID
	require.True(t, c.Acknowledge(id, "operator", "seen"))
	assert.False(t, c.Acknowledge(id, "operator", "again"))
	assert.Len(t, c.Alarms(), 3)
	assert.Len(t, c.ActiveAlarms(), 2)

	// Initialize keeps the alarm history.
	c.Initialize()
	assert.Len(t, c.Alarms(), 3)
}

func TestAlarmCapBoundsList(t *testing.T) {
	p := &probe{}
	c := NewCore("DEV-002", "Capped", TypeSensor, nil, p, WithAlarmCap(2))
	p.core = c

	c.AddAlarm("A", "1", SeverityMinor)
	c.AddAlarm("B", "2", SeverityMinor)
	c.AddAlarm("C", "3", SeverityMinor)

	alarms := c.Alarms()
	require.Len(t, alarms, 2)
	assert.Equal(t, "B", alarms[0].Code)
	assert.Equal(t, "C", alarms[1].Code)

	// The raised counter stays monotonic even though the list was trimmed.
	assert.Equal(t, uint64(3), c.AlarmsRaised())
}

func TestFaultFreezesUntilInitialize(t *testing.T) {
	p := newProbe(t)
	c := p.core
	c.Initialize()
	require.True(t, c.Start())
	c.Update(time.Second)

	c.SimulateFault()
	assert.Equal(t, StatusFault, c.Status())
	require.Len(t, c.Snapshot().FaultCodes, 1)

	// Frozen: no diagnostic change, no step.
	before := c.Diagnostics()
	stepsBefore := p.steps
	c.Update(time.Second)
	assert.Equal(t, before, c.Diagnostics())
	assert.Equal(t, stepsBefore, p.steps)

	// Start is blocked while faulted.
	assert.False(t, c.Start())

	// Initialize recovers.
	c.Initialize()
	assert.Equal(t, StatusReady, c.Status())
	assert.Empty(t, c.Snapshot().FaultCodes)
	require.True(t, c.Start())
	c.Update(time.Second)
	assert.Equal(t, stepsBefore+1, p.steps)
}

func TestMaintenanceCycle(t *testing.T) {
	p := newProbe(t)
	c := p.core
	c.Initialize()
	require.True(t, c.Start())

	// Running devices cannot enter maintenance.
	assert.False(t, c.BeginMaintenance())

	c.SimulateFault()
	require.Equal(t, StatusFault, c.Status())
	require.True(t, c.BeginMaintenance())
	assert.Equal(t, StatusMaintenance, c.Status())
	assert.True(t, c.CompleteMaintenance())
	assert.Equal(t, StatusReady, c.Status())
	assert.Empty(t, c.Snapshot().FaultCodes)
}

func TestWarningAdvancesAlarmFreezes(t *testing.T) {
	p := newProbe(t)
	c := p.core
	c.Initialize()
	require.True(t, c.Start())

	c.RaiseWarning()
	assert.Equal(t, StatusWarning, c.Status())
	c.Update(time.Second)
	assert.Equal(t, 1, p.steps)
	assert.Equal(t, time.Second, c.OperatingTime())

	c.ClearWarning()
	assert.Equal(t, StatusRunning, c.Status())

	c.TripAlarm()
	assert.Equal(t, StatusAlarm, c.Status())
	c.Update(time.Second)
	assert.Equal(t, 1, p.steps, "alarm status must freeze the model")

	// Stop from Alarm returns to Ready.
	require.True(t, c.Stop())
	assert.Equal(t, StatusReady, c.Status())
}

func TestAlarmAdvanceOverride(t *testing.T) {
	p := &probe{ch: LagChannel{Target: 10, Tau: time.Second}}
	c := NewCore("DEV-003", "Override", TypeProcessEquipment, nil, p, WithAlarmAdvance())
	p.core = c

	c.Initialize()
	require.True(t, c.Start())
	c.TripAlarm()
	c.Update(time.Second)
	assert.Equal(t, 1, p.steps)
}

func TestSnapshotReflectsState(t *testing.T) {
	fixed := time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC)
	p := &probe{}
	c := NewCore("BR-101", "Bioreactor 101", TypeProcessEquipment, nil, p,
		WithClock(func() time.Time { return fixed }))
	p.core = c

	c.Initialize()
	c.AddAlarm("X", "note", SeverityInformation)

	snap := c.Snapshot()
	assert.Equal(t, "BR-101", snap.DeviceID)
	assert.Equal(t, "Bioreactor 101", snap.Name)
	assert.Equal(t, "process_equipment", snap.TypeName)
	assert.Equal(t, "ready", snap.StatusName)
	assert.Equal(t, fixed, snap.LastTransition)
	assert.Equal(t, 1, snap.ActiveAlarms)

	alarm := c.Alarms()[0]
	assert.Equal(t, fixed, alarm.RaisedAt)
	assert.NotEmpty(t, alarm.ID)
}
