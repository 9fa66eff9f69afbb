// Package processing contains background services that watch the running
// plant. The alarm archiver drains newly raised device alarms into the
// metadata store so they survive a restart, and escalates active batches
// when a critical alarm fires mid-production.
package processing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/device"
)

const defaultArchiveInterval = 10 * time.Second

// AlarmStore is the persistence boundary the archiver writes through.
type AlarmStore interface {
	RecordAlarms(ctx context.Context, deviceID string, alarms []device.Alarm) error
	EscalateActiveBatches(ctx context.Context, reason string) (int64, error)
}

// DeviceSource yields the roster to poll; *scan.Runner satisfies it.
type DeviceSource interface {
	Devices() []device.Device
}

// AlarmArchiver periodically persists alarms raised since its last pass.
// The per-device mark tracks the monotonic raised counter, not the list
// length, so devices with a bounded alarm list still archive correctly.
type AlarmArchiver struct {
	source   DeviceSource
	store    AlarmStore
	interval time.Duration
	logger   *zap.Logger

	archived map[string]uint64
}

// Option customises the archiver.
type Option func(*AlarmArchiver)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(a *AlarmArchiver) {
		if d > 0 {
			a.interval = d
		}
	}
}

// NewAlarmArchiver constructs the archiver.
func NewAlarmArchiver(source DeviceSource, store AlarmStore, logger *zap.Logger, opts ...Option) *AlarmArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AlarmArchiver{
		source:   source,
		store:    store,
		interval: defaultArchiveInterval,
		logger:   logger,
		archived: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins background archiving until the context is cancelled.
func (a *AlarmArchiver) Start(ctx context.Context) {
	if a.source == nil || a.store == nil {
		a.logger.Info("alarm archiver inactive (source or store missing)")
		return
	}
	go a.run(ctx)
}

func (a *AlarmArchiver) run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("alarm archiver stopped")
			return
		case <-ticker.C:
			a.Sweep(ctx)
		}
	}
}

// Sweep archives every alarm raised since the previous sweep. It is exported
// so tests and shutdown paths can drain synchronously.
func (a *AlarmArchiver) Sweep(ctx context.Context) {
	for _, d := range a.source.Devices() {
		id := d.DeviceID()
		total := d.AlarmsRaised()
		mark := a.archived[id]
		if mark >= total {
			continue
		}

		// A capped alarm list may retain fewer records than were raised
		// since the mark; archive whatever is still held.
		alarms := d.Alarms()
		fresh := alarms
		if n := total - mark; n < uint64(len(alarms)) {
			fresh = alarms[uint64(len(alarms))-n:]
		}

		if err := a.store.RecordAlarms(ctx, id, fresh); err != nil {
			a.logger.Error("alarm archive failed",
				zap.String("device", id),
				zap.Int("alarms", len(fresh)),
				zap.Error(err))
			continue
		}
		a.archived[id] = total
		a.escalate(ctx, id, fresh)
	}
}

// escalate flags the batches currently in production when a swept alarm is
// critical, so quality review sees which lots ran through the event.
func (a *AlarmArchiver) escalate(ctx context.Context, deviceID string, alarms []device.Alarm) {
	for _, alarm := range alarms {
		if alarm.Severity != device.SeverityCritical {
			continue
		}
		reason := fmt.Sprintf("%s: %s", deviceID, alarm.Code)
		n, err := a.store.EscalateActiveBatches(ctx, reason)
		if err != nil {
			a.logger.Error("batch escalation failed",
				zap.String("reason", reason), zap.Error(err))
			continue
		}
		if n > 0 {
			a.logger.Warn("batches escalated on critical alarm",
				zap.String("reason", reason), zap.Int64("batches", n))
		}
	}
}
