// Package historian snapshots device diagnostics after every scan and writes
// them to InfluxDB as timestamped points.
package historian

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	api "github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/device"
)

const defaultMeasurement = "device_diagnostics"

// Recorder implements scan.Recorder over a blocking InfluxDB write API.
type Recorder struct {
	writer      api.WriteAPIBlocking
	measurement string
	logger      *zap.Logger
}

// Option customises Recorder creation.
type Option func(*Recorder)

// WithMeasurement overrides the measurement name points are written under.
func WithMeasurement(name string) Option {
	return func(r *Recorder) {
		if name != "" {
			r.measurement = name
		}
	}
}

// New constructs a Recorder.
func New(writer api.WriteAPIBlocking, logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		writer:      writer,
		measurement: defaultMeasurement,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Measurement returns the measurement identifier used for diagnostic writes.
func (r *Recorder) Measurement() string { return r.measurement }

// Record writes one point per device carrying its full diagnostic map. The
// framework guarantees the map is overwritten, never cleared, between scans,
// so each point is a complete snapshot.
func (r *Recorder) Record(ctx context.Context, ts time.Time, devices []device.Device) {
	for _, d := range devices {
		diags := d.Diagnostics()
		if len(diags) == 0 {
			continue
		}
		fields := make(map[string]interface{}, len(diags))
		for key, v := range diags {
			fields[key] = v.Any()
		}

		snap := d.Snapshot()
		point := influxdb2.NewPoint(
			r.measurement,
			map[string]string{
				"device_id":   snap.DeviceID,
				"device_name": snap.Name,
				"device_type": snap.TypeName,
				"status":      snap.StatusName,
			},
			fields,
			ts,
		)
		if err := r.writer.WritePoint(ctx, point); err != nil {
			r.logger.Error("historian write failed",
				zap.String("device", snap.DeviceID), zap.Error(err))
		}
	}
}
