// Package metadata persists the non time-series side of the plant in MySQL:
// the device registry, production batches and archived alarm events.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrDeviceIDRequired is returned when an upsert lacks a device id.
var ErrDeviceIDRequired = errors.New("device id is required")

// Repository persists plant metadata in MySQL.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// RegisteredDevice is a device registry row.
type RegisteredDevice struct {
	DeviceID  string    `json:"deviceId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Area      string    `json:"area,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewRepository constructs a Repository with the provided sql.DB pool.
func NewRepository(db *sql.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}
}

// EnsureSchema creates the required tables if they are missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddls := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			device_id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(32) NOT NULL,
			area VARCHAR(255) NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			batch_number VARCHAR(255) NOT NULL UNIQUE,
			product VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'processing',
			escalated BOOLEAN NOT NULL DEFAULT FALSE,
			escalation_reason VARCHAR(255) NULL,
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP NULL,
			INDEX idx_batches_status (status)
		)`,
		`CREATE TABLE IF NOT EXISTS alarm_events (
			id VARCHAR(36) PRIMARY KEY,
			device_id VARCHAR(64) NOT NULL,
			code VARCHAR(64) NOT NULL,
			message TEXT NOT NULL,
			severity VARCHAR(16) NOT NULL,
			raised_at TIMESTAMP(3) NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			acked_by VARCHAR(255) NULL,
			ack_comment TEXT NULL,
			INDEX idx_alarm_events_device (device_id),
			INDEX idx_alarm_events_raised (raised_at)
		)`,
	}
	for _, ddl := range ddls {
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks MySQL connectivity using the provided context.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertDevice registers a roster member, overwriting name/type/area on
// conflict so the registry follows the running configuration.
func (r *Repository) UpsertDevice(ctx context.Context, d RegisteredDevice) error {
	if strings.TrimSpace(d.DeviceID) == "" {
		return ErrDeviceIDRequired
	}
	const stmt = `INSERT INTO devices (device_id, name, type, area) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), type = VALUES(type), area = VALUES(area)`
	_, err := r.db.ExecContext(ctx, stmt, d.DeviceID, d.Name, d.Type, nullableString(d.Area))
	return err
}

// ListDevices returns the registry ordered by device id.
func (r *Repository) ListDevices(ctx context.Context) ([]RegisteredDevice, error) {
	const query = `SELECT device_id, name, type, COALESCE(area, ''), created_at FROM devices ORDER BY device_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []RegisteredDevice
	for rows.Next() {
		var d RegisteredDevice
		if err := rows.Scan(&d.DeviceID, &d.Name, &d.Type, &d.Area, &d.CreatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}

func nullableString(val string) interface{} {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return val
}

func isDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate entry")
}
