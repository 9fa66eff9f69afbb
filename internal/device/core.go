package device

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Model is the hook a concrete device supplies to Core. Core owns the
// lifecycle state machine and calls the hooks at the right moments:
// Reset from Initialize, Step from Update while the gate is open, Halt from
// Stop, and Fault from SimulateFault. Hooks run on the scan goroutine and
// may freely call Publish, AddAlarm and the transition methods.
type Model interface {
	// Reset restores the numeric model to its baseline (ambient values,
	// zeroed counters) and republishes default diagnostics.
	Reset()
	// Step advances the numeric model by elapsed wall time. The interval
	// varies tick to tick; nothing may assume a fixed step.
	Step(elapsed time.Duration)
	// Halt neutralizes any actuation the device holds when it stops.
	Halt()
	// Fault applies a randomized fault perturbation.
	Fault()
}

// Core carries the state every simulated device shares: identity, lifecycle
// status, the diagnostic map, the alarm list and the operating-time counter.
// Concrete devices embed *Core by pointer and implement Model.
//
// All mutation happens on the scan goroutine; the mutex exists so HTTP and
// historian readers can take consistent snapshots concurrently.
type Core struct {
	mu sync.RWMutex

	id   string
	name string
	typ  Type

	status         Status
	lastTransition time.Time
	operatingTime  time.Duration
	faultCodes     []string
	diags          map[string]Value
	alarms         []Alarm
	alarmsRaised   uint64

	rng   *rand.Rand
	model Model
	clock func() time.Time

	alarmCap       int
	advanceInAlarm bool
}

// Option customizes Core creation.
type Option func(*Core)

// WithAlarmCap bounds the alarm list to the newest n records. The default is
// unbounded, matching the append-only contract.
func WithAlarmCap(n int) Option {
	return func(c *Core) {
		if n > 0 {
			c.alarmCap = n
		}
	}
}

// WithAlarmAdvance lets a device keep advancing its numeric model while in
// Alarm status. The base rule freezes Alarm and only advances Running and
// Warning.
func WithAlarmAdvance() Option {
	return func(c *Core) { c.advanceInAlarm = true }
}

// WithClock overrides the timestamp source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		if now != nil {
			c.clock = now
		}
	}
}

// NewCore builds the shared device state. The rng must be supplied by the
// caller so simulations are seedable and reproducible; a nil rng is allowed
// for fully deterministic devices.
func NewCore(id, name string, typ Type, rng *rand.Rand, model Model, opts ...Option) *Core {
	c := &Core{
		id:    id,
		name:  name,
		typ:   typ,
		rng:   rng,
		model: model,
		clock: time.Now,
		diags: make(map[string]Value),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastTransition = c.clock()
	return c
}

func (c *Core) DeviceID() string { return c.id }
func (c *Core) Name() string     { return c.name }
func (c *Core) Type() Type       { return c.typ }

// Rand exposes the injected generator to model hooks. It is only touched on
// the scan goroutine, so it needs no locking.
func (c *Core) Rand() *rand.Rand { return c.rng }

func (c *Core) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Initialize hard-resets the device: any status returns to Ready, fault codes
// and accumulators clear, and the model republishes baseline diagnostics.
// Calling it repeatedly is idempotent. The alarm list is deliberately kept.
func (c *Core) Initialize() {
	c.mu.Lock()
	c.setStatusLocked(StatusInitializing)
	c.operatingTime = 0
	c.faultCodes = nil
	c.diags = make(map[string]Value)
	c.mu.Unlock()

	if c.model != nil {
		c.model.Reset()
	}

	c.mu.Lock()
	c.setStatusLocked(StatusReady)
	c.mu.Unlock()
}

// Start moves a Ready or Offline device to Running. It reports false and
// raises an informational alarm when the current status blocks starting;
// the status is left untouched in that case.
func (c *Core) Start() bool {
	c.mu.Lock()
	switch c.status {
	case StatusReady, StatusOffline:
		c.setStatusLocked(StatusRunning)
		c.mu.Unlock()
		return true
	default:
		cur := c.status
		c.addAlarmLocked("START_REJECTED",
			fmt.Sprintf("start request ignored while %s", cur), SeverityInformation)
		c.mu.Unlock()
		return false
	}
}

// Stop returns a running (or degraded-but-operating) device to Ready and
// invokes the Halt hook so concrete devices can neutralize outputs. Stopping
// an already-stopped device is a no-op that reports false with an
// informational alarm.
func (c *Core) Stop() bool {
	c.mu.Lock()
	switch c.status {
	case StatusRunning, StatusWarning, StatusAlarm:
		c.setStatusLocked(StatusReady)
		c.mu.Unlock()
		if c.model != nil {
			c.model.Halt()
		}
		return true
	default:
		cur := c.status
		c.addAlarmLocked("STOP_IGNORED",
			fmt.Sprintf("stop request ignored while %s", cur), SeverityInformation)
		c.mu.Unlock()
		return false
	}
}

// Update advances the simulation by elapsed wall time. Devices outside the
// Running/Warning bucket freeze: the call returns without touching any
// simulated state. The operating-time counter accumulates only while the
// gate is open.
func (c *Core) Update(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	c.mu.Lock()
	open := c.status == StatusRunning || c.status == StatusWarning ||
		(c.advanceInAlarm && c.status == StatusAlarm)
	if !open {
		c.mu.Unlock()
		return
	}
	c.operatingTime += elapsed
	c.mu.Unlock()

	if c.model != nil {
		c.model.Step(elapsed)
	}
}

// SimulateFault invokes the model's fault hook. The framework never schedules
// this itself; a fault-injection driver calls it at its own cadence.
func (c *Core) SimulateFault() {
	if c.model != nil {
		c.model.Fault()
	}
}

// BeginMaintenance takes a non-running device out of service.
func (c *Core) BeginMaintenance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusRunning, StatusWarning, StatusMaintenance:
		return false
	default:
		c.setStatusLocked(StatusMaintenance)
		return true
	}
}

// CompleteMaintenance returns a device in Maintenance to Ready and clears
// its fault codes.
func (c *Core) CompleteMaintenance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusMaintenance {
		return false
	}
	c.faultCodes = nil
	c.setStatusLocked(StatusReady)
	return true
}

// RaiseWarning degrades a Running device to Warning. The device keeps
// advancing; models call this when a soft threshold is crossed.
func (c *Core) RaiseWarning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusRunning {
		c.setStatusLocked(StatusWarning)
	}
}

// ClearWarning returns a Warning device to Running once readings are back in
// band.
func (c *Core) ClearWarning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusWarning {
		c.setStatusLocked(StatusRunning)
	}
}

// TripAlarm moves an operating device into Alarm status (hard threshold).
func (c *Core) TripAlarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusRunning || c.status == StatusWarning {
		c.setStatusLocked(StatusAlarm)
	}
}

// TripFault records a fault code and moves the device to Fault. The device
// stops advancing until Initialize or a maintenance cycle recovers it.
func (c *Core) TripFault(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faultCodes = append(c.faultCodes, code)
	c.setStatusLocked(StatusFault)
}

// Publish writes one key into the diagnostic map, overwriting any previous
// value. Keys are never removed between ticks.
func (c *Core) Publish(key string, v Value) {
	c.mu.Lock()
	c.diags[key] = v
	c.mu.Unlock()
}

// AddAlarm appends a new alarm record with a fresh id and the current
// timestamp. Repeated identical alarms accumulate; the framework does not
// deduplicate.
func (c *Core) AddAlarm(code, message string, severity Severity) {
	c.mu.Lock()
	c.addAlarmLocked(code, message, severity)
	c.mu.Unlock()
}

func (c *Core) addAlarmLocked(code, message string, severity Severity) {
	c.alarmsRaised++
	c.alarms = append(c.alarms, Alarm{
		ID:       uuid.NewString(),
		Code:     code,
		Message:  message,
		Severity: severity,
		RaisedAt: c.clock(),
	})
	if c.alarmCap > 0 && len(c.alarms) > c.alarmCap {
		c.alarms = c.alarms[len(c.alarms)-c.alarmCap:]
	}
}

// Acknowledge flips the acknowledged flag on one alarm. It reports whether
// the id was found and not already acknowledged.
func (c *Core) Acknowledge(id, by, comment string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.alarms {
		if c.alarms[i].ID == id && !c.alarms[i].Acknowledged {
			c.alarms[i].Acknowledged = true
			c.alarms[i].AckedBy = by
			c.alarms[i].AckComment = comment
			return true
		}
	}
	return false
}

// Snapshot returns a structured view of the lifecycle state.
func (c *Core) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	active := 0
	for i := range c.alarms {
		if !c.alarms[i].Acknowledged {
			active++
		}
	}
	return Snapshot{
		DeviceID:       c.id,
		Name:           c.name,
		Type:           c.typ,
		TypeName:       c.typ.String(),
		Status:         c.status,
		StatusName:     c.status.String(),
		LastTransition: c.lastTransition,
		OperatingTime:  c.operatingTime,
		FaultCodes:     append([]string(nil), c.faultCodes...),
		ActiveAlarms:   active,
	}
}

// Diagnostics returns a copy of the diagnostic map. The map itself is owned
// exclusively by the device.
func (c *Core) Diagnostics() map[string]Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Value, len(c.diags))
	for k, v := range c.diags {
		out[k] = v
	}
	return out
}

// Alarms returns a copy of the full alarm list in raise order.
func (c *Core) Alarms() []Alarm {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Alarm(nil), c.alarms...)
}

// AlarmsRaised returns the total number of alarms ever raised. Unlike
// len(Alarms()) it is monotonic even when WithAlarmCap trims the list, so
// archival consumers can detect new alarms reliably.
func (c *Core) AlarmsRaised() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alarmsRaised
}

// ActiveAlarms returns the unacknowledged alarms in raise order.
func (c *Core) ActiveAlarms() []Alarm {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Alarm, 0, len(c.alarms))
	for _, a := range c.alarms {
		if !a.Acknowledged {
			out = append(out, a)
		}
	}
	return out
}

// OperatingTime returns the accumulated time spent advancing.
func (c *Core) OperatingTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operatingTime
}

func (c *Core) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	c.lastTransition = c.clock()
}
