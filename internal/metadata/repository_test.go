package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/device"
)

func setupMockRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Repository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewRepository(db, zap.NewNop())
}

func TestUpsertDevice(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO devices`).
		WithArgs("BR-101", "Bioreactor 101", "process_equipment", "Upstream Suite").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertDevice(context.Background(), RegisteredDevice{
		DeviceID: "BR-101",
		Name:     "Bioreactor 101",
		Type:     "process_equipment",
		Area:     "Upstream Suite",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// Missing id rejected before hitting the database.
	assert.ErrorIs(t, repo.UpsertDevice(context.Background(), RegisteredDevice{}), ErrDeviceIDRequired)
}

func TestRecordAlarmsSkipsDuplicates(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	raised := time.Now()
	alarms := []device.Alarm{
		{ID: uuid.NewString(), Code: "TEMP_DEVIATION", Message: "m1", Severity: device.SeverityMajor, RaisedAt: raised},
		{ID: uuid.NewString(), Code: "PH_DRIFTING", Message: "m2", Severity: device.SeverityWarning, RaisedAt: raised},
	}

	mock.ExpectExec(`INSERT INTO alarm_events`).
		WithArgs(alarms[0].ID, "BR-101", "TEMP_DEVIATION", "m1", "major",
			alarms[0].RaisedAt.UTC(), false, nil, nil).
		WillReturnError(&duplicateEntryError{})
	mock.ExpectExec(`INSERT INTO alarm_events`).
		WithArgs(alarms[1].ID, "BR-101", "PH_DRIFTING", "m2", "warning",
			alarms[1].RaisedAt.UTC(), false, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordAlarms(context.Background(), "BR-101", alarms)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

type duplicateEntryError struct{}

func (*duplicateEntryError) Error() string {
	return "Error 1062 (23000): Duplicate entry 'x' for key 'alarm_events.PRIMARY'"
}

func TestHasActiveBatches(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(BatchStatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	active, err := repo.HasActiveBatches(context.Background())
	require.NoError(t, err)
	assert.True(t, active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkBatchCompleted(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	completed := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE batches SET status`).
		WithArgs(BatchStatusCompleted, completed, int64(7), BatchStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkBatchCompleted(context.Background(), 7, completed))

	// Already-completed batches surface ErrBatchNotFound.
	mock.ExpectExec(`UPDATE batches SET status`).
		WithArgs(BatchStatusCompleted, completed, int64(8), BatchStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkBatchCompleted(context.Background(), 8, completed), ErrBatchNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalateActiveBatches(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE batches SET escalated`).
		WithArgs("BR-101: HEATER_RUNAWAY", BatchStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.EscalateActiveBatches(context.Background(), "BR-101: HEATER_RUNAWAY")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Re-escalation touches nothing once every active batch is flagged.
	mock.ExpectExec(`UPDATE batches SET escalated`).
		WithArgs("BR-101: HEATER_RUNAWAY", BatchStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))
	n, err = repo.EscalateActiveBatches(context.Background(), "BR-101: HEATER_RUNAWAY")
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlarmEvent(t *testing.T) {
	db, mock, repo := setupMockRepo(t)
	defer db.Close()

	id := uuid.NewString()
	mock.ExpectExec(`UPDATE alarm_events SET acknowledged`).
		WithArgs("operator", "inspected", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AcknowledgeAlarmEvent(context.Background(), id, "operator", "inspected"))
	require.NoError(t, mock.ExpectationsWereMet())
}
