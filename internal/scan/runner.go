// Package scan drives the device roster: a ticker loop calls Update on every
// device once per scan with the real elapsed wall time, injects randomized
// faults, and fans scan results out to recorders and cycle listeners.
package scan

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/device"
)

const (
	defaultInterval    = 100 * time.Millisecond
	defaultCycleLength = 600 // scans per production cycle at the default interval
)

// Recorder observes the roster after every scan, e.g. to historize
// diagnostics.
type Recorder interface {
	Record(ctx context.Context, ts time.Time, devices []device.Device)
}

// CycleListener observes completed production cycles (a fixed number of
// scans), the hook batch orchestration hangs off.
type CycleListener interface {
	OnCycleComplete(ctx context.Context, completedAt time.Time, cycle uint64)
}

// Runner owns the scan loop. Devices are updated strictly one at a time
// within a scan; all model mutation happens on the loop goroutine.
type Runner struct {
	mu       sync.Mutex
	devices  []device.Device
	index    map[string]device.Device
	interval time.Duration

	enabled  bool
	lastTick time.Time
	scans    uint64
	cycles   uint64

	cycleLength   int
	faultProb     float64
	rng           *rand.Rand
	pendingFaults []string

	listeners []CycleListener
	recorders []Recorder
	logger    *zap.Logger
}

// Option customizes Runner creation.
type Option func(*Runner)

// WithInterval overrides the default 100 ms scan period.
func WithInterval(interval time.Duration) Option {
	return func(r *Runner) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithCycleLength overrides how many scans make up one production cycle.
func WithCycleLength(scans int) Option {
	return func(r *Runner) {
		if scans > 0 {
			r.cycleLength = scans
		}
	}
}

// WithFaultProbability sets the per-device chance of a random fault injection
// on each scan. Zero disables random injection.
func WithFaultProbability(p float64) Option {
	return func(r *Runner) {
		if p > 0 {
			r.faultProb = p
		}
	}
}

// WithRand injects the generator used for fault injection, so soak tests are
// reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) {
		if rng != nil {
			r.rng = rng
		}
	}
}

// New creates a Runner over the given roster.
func New(devices []device.Device, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		devices:     devices,
		index:       make(map[string]device.Device, len(devices)),
		interval:    defaultInterval,
		cycleLength: defaultCycleLength,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, d := range devices {
		r.index[d.DeviceID()] = d
	}
	return r
}

// Start begins the periodic scan loop until ctx cancels.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("scan loop starting",
		zap.Duration("interval", r.interval),
		zap.Int("devices", len(r.devices)))
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("scan loop stopped")
				return
			case ts := <-ticker.C:
				r.Scan(ctx, ts)
			}
		}
	}()
}

// Scan executes one pass over the roster. It is exported so alternative
// drivers and tests can step the plant deterministically; the elapsed time
// handed to each device is the wall time since the previous scan, never a
// fixed step.
func (r *Runner) Scan(ctx context.Context, now time.Time) {
	r.mu.Lock()
	if !r.enabled {
		r.lastTick = now
		r.mu.Unlock()
		return
	}

	elapsed := r.interval
	if !r.lastTick.IsZero() {
		if d := now.Sub(r.lastTick); d > 0 {
			elapsed = d
		}
	}
	r.lastTick = now

	faults := r.pendingFaults
	r.pendingFaults = nil

	r.scans++
	cycleDone := r.cycleLength > 0 && r.scans%uint64(r.cycleLength) == 0
	if cycleDone {
		r.cycles++
	}
	cycle := r.cycles
	scanNo := r.scans
	listeners := append([]CycleListener(nil), r.listeners...)
	recorders := append([]Recorder(nil), r.recorders...)
	r.mu.Unlock()

	for _, id := range faults {
		if d, ok := r.index[id]; ok {
			r.logger.Warn("injecting requested fault", zap.String("device", id))
			d.SimulateFault()
		}
	}

	for _, d := range r.devices {
		if r.faultProb > 0 && r.rng.Float64() < r.faultProb {
			r.logger.Warn("random fault injection",
				zap.String("device", d.DeviceID()),
				zap.Uint64("scan", scanNo))
			d.SimulateFault()
		}
		d.Update(elapsed)
	}

	for _, rec := range recorders {
		rec.Record(ctx, now, r.devices)
	}
	if cycleDone {
		for _, l := range listeners {
			l.OnCycleComplete(ctx, now, cycle)
		}
	}
}

// Enable brings the roster into production: Offline and Fault devices are
// initialized, then everything is started.
func (r *Runner) Enable() {
	r.mu.Lock()
	if r.enabled {
		r.mu.Unlock()
		return
	}
	r.enabled = true
	r.lastTick = time.Time{}
	devices := r.devices
	r.mu.Unlock()

	for _, d := range devices {
		switch d.Status() {
		case device.StatusOffline, device.StatusFault:
			d.Initialize()
		}
		d.Start()
	}
	r.logger.Info("plant enabled", zap.Int("devices", len(devices)))
}

// Disable stops every device and pauses the scan loop.
func (r *Runner) Disable() {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return
	}
	r.enabled = false
	devices := r.devices
	r.mu.Unlock()

	for _, d := range devices {
		d.Stop()
	}
	r.logger.Info("plant disabled")
}

// Enabled reports whether the loop is advancing devices.
func (r *Runner) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// RequestFault queues a fault injection for the named device; it is applied
// on the next scan so all model mutation stays on the loop goroutine.
func (r *Runner) RequestFault(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[deviceID]; !ok {
		return false
	}
	r.pendingFaults = append(r.pendingFaults, deviceID)
	return true
}

// RegisterCycleListener subscribes to production-cycle completion.
func (r *Runner) RegisterCycleListener(l CycleListener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// RegisterRecorder subscribes a per-scan observer.
func (r *Runner) RegisterRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	r.mu.Lock()
	r.recorders = append(r.recorders, rec)
	r.mu.Unlock()
}

// Device looks up one roster member by id.
func (r *Runner) Device(id string) (device.Device, bool) {
	d, ok := r.index[id]
	return d, ok
}

// Devices returns the roster in scan order.
func (r *Runner) Devices() []device.Device {
	return append([]device.Device(nil), r.devices...)
}

// Interval returns the configured scan period.
func (r *Runner) Interval() time.Duration { return r.interval }

// Scans returns the number of scans executed while enabled.
func (r *Runner) Scans() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}
