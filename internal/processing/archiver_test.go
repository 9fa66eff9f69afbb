package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/device"
	"github.com/steriline/plantsim/internal/sensors"
)

type rosterSource struct {
	devices []device.Device
}

func (s *rosterSource) Devices() []device.Device { return s.devices }

type captureStore struct {
	calls       map[string]int
	escalations []string
	err         error
}

func (s *captureStore) RecordAlarms(ctx context.Context, deviceID string, alarms []device.Alarm) error {
	if s.err != nil {
		return s.err
	}
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[deviceID] += len(alarms)
	return nil
}

func (s *captureStore) EscalateActiveBatches(ctx context.Context, reason string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.escalations = append(s.escalations, reason)
	return 1, nil
}

func testSensor(t *testing.T, id string, opts ...device.Option) *sensors.Analog {
	t.Helper()
	s := sensors.New(id, "Archive Probe", sensors.Config{
		Kind:    "temperature",
		Units:   "degC",
		Ambient: 22.0,
		Target:  22.0,
		Tau:     5 * time.Second,
	}, nil, opts...)
	s.Initialize()
	require.True(t, s.Start())
	return s
}

func TestSweepPersistsOnlyNewAlarms(t *testing.T) {
	s := testSensor(t, "TT-901")
	s.SimulateFault()
	require.Len(t, s.Alarms(), 1)

	store := &captureStore{}
	arch := NewAlarmArchiver(&rosterSource{devices: []device.Device{s}}, store, zap.NewNop())

	arch.Sweep(context.Background())
	assert.Equal(t, 1, store.calls["TT-901"])

	// Nothing new: second sweep writes nothing.
	arch.Sweep(context.Background())
	assert.Equal(t, 1, store.calls["TT-901"])

	// A rejected Start appends an informational alarm.
	require.False(t, s.Start())
	arch.Sweep(context.Background())
	assert.Equal(t, 2, store.calls["TT-901"])
}

func TestSweepRetriesAfterStoreFailure(t *testing.T) {
	s := testSensor(t, "TT-902")
	s.SimulateFault()

	store := &captureStore{err: errors.New("db down")}
	arch := NewAlarmArchiver(&rosterSource{devices: []device.Device{s}}, store, zap.NewNop())

	arch.Sweep(context.Background())
	assert.Empty(t, store.calls)

	// The mark did not advance, so recovery replays the alarm.
	store.err = nil
	arch.Sweep(context.Background())
	assert.Equal(t, 1, store.calls["TT-902"])
}

func TestSweepArchivesPastAlarmCap(t *testing.T) {
	// A bounded alarm list trims oldest records, but the raised counter
	// keeps the sweep finding alarms added after the cap is hit.
	s := testSensor(t, "TT-903", device.WithAlarmCap(2))
	s.SimulateFault()
	require.False(t, s.Start())
	require.Len(t, s.Alarms(), 2)

	store := &captureStore{}
	arch := NewAlarmArchiver(&rosterSource{devices: []device.Device{s}}, store, zap.NewNop())
	arch.Sweep(context.Background())
	require.Equal(t, 2, store.calls["TT-903"])

	require.False(t, s.Start())
	require.False(t, s.Start())
	require.Len(t, s.Alarms(), 2, "cap trims the list")
	require.Equal(t, uint64(4), s.AlarmsRaised())

	arch.Sweep(context.Background())
	assert.Equal(t, 4, store.calls["TT-903"])
}

func TestCriticalAlarmEscalatesActiveBatches(t *testing.T) {
	s := testSensor(t, "TT-904")
	store := &captureStore{}
	arch := NewAlarmArchiver(&rosterSource{devices: []device.Device{s}}, store, zap.NewNop())

	// Informational alarms never escalate.
	require.True(t, s.Stop())
	require.False(t, s.Stop())
	arch.Sweep(context.Background())
	require.Equal(t, 1, store.calls["TT-904"])
	assert.Empty(t, store.escalations)

	require.True(t, s.Start())
	s.SimulateFault()
	arch.Sweep(context.Background())
	require.Len(t, store.escalations, 1)
	assert.Equal(t, "TT-904: SENSOR_STUCK", store.escalations[0])
}
