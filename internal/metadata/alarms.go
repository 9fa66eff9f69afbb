package metadata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/device"
)

// AlarmEvent is one archived device alarm.
type AlarmEvent struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"deviceId"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	Severity     string    `json:"severity"`
	RaisedAt     time.Time `json:"raisedAt"`
	Acknowledged bool      `json:"acknowledged"`
	AckedBy      string    `json:"ackedBy,omitempty"`
	AckComment   string    `json:"ackComment,omitempty"`
}

// RecordAlarms archives a slice of device alarms. Re-inserting an already
// archived alarm id is treated as a no-op so the archiver can replay safely.
func (r *Repository) RecordAlarms(ctx context.Context, deviceID string, alarms []device.Alarm) error {
	if len(alarms) == 0 {
		return nil
	}
	const stmt = `INSERT INTO alarm_events
		(id, device_id, code, message, severity, raised_at, acknowledged, acked_by, ack_comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, a := range alarms {
		_, err := r.db.ExecContext(ctx, stmt,
			a.ID, deviceID, a.Code, a.Message, a.Severity.String(), a.RaisedAt.UTC(),
			a.Acknowledged, nullableString(a.AckedBy), nullableString(a.AckComment))
		if err != nil {
			if isDuplicateEntry(err) {
				continue
			}
			return err
		}
		r.logger.Debug("alarm archived",
			zap.String("device", deviceID),
			zap.String("code", a.Code),
			zap.String("severity", a.Severity.String()))
	}
	return nil
}

// ListAlarmEvents returns archived alarms newest first, optionally filtered
// by device.
func (r *Repository) ListAlarmEvents(ctx context.Context, deviceID string, limit int) ([]AlarmEvent, error) {
	query := `SELECT id, device_id, code, message, severity, raised_at,
		acknowledged, COALESCE(acked_by, ''), COALESCE(ack_comment, '')
		FROM alarm_events`
	var args []interface{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY raised_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AlarmEvent
	for rows.Next() {
		var e AlarmEvent
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Code, &e.Message, &e.Severity,
			&e.RaisedAt, &e.Acknowledged, &e.AckedBy, &e.AckComment); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// AcknowledgeAlarmEvent flips the acknowledged flag on an archived alarm.
func (r *Repository) AcknowledgeAlarmEvent(ctx context.Context, id, by, comment string) error {
	const stmt = `UPDATE alarm_events SET acknowledged = TRUE, acked_by = ?, ack_comment = ?
		WHERE id = ? AND acknowledged = FALSE`
	_, err := r.db.ExecContext(ctx, stmt, by, nullableString(comment), id)
	return err
}
