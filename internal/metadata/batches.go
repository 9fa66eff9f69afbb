package metadata

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// BatchStatus represents the current stage of a production batch.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
)

// Batch holds the persisted state for one production batch. Escalated
// batches stay in their lifecycle status; the flag marks them for quality
// review after a critical alarm fired while they were processing.
type Batch struct {
	ID               int64        `json:"id"`
	BatchNumber      string       `json:"batchNumber"`
	Product          string       `json:"product"`
	Status           BatchStatus  `json:"status"`
	Escalated        bool         `json:"escalated"`
	EscalationReason string       `json:"escalationReason,omitempty"`
	StartedAt        time.Time    `json:"startedAt"`
	CompletedAt      sql.NullTime `json:"completedAt"`
}

// CreateBatchInput captures the values required to register a batch.
type CreateBatchInput struct {
	BatchNumber string
	Product     string
}

var (
	// ErrBatchExists indicates the batch number is already registered.
	ErrBatchExists = errors.New("batch already exists")
	// ErrBatchNumberRequired indicates the batch identifier is missing.
	ErrBatchNumberRequired = errors.New("batch number is required")
	// ErrBatchNotFound indicates a lookup failed to locate the batch.
	ErrBatchNotFound = errors.New("batch not found")
)

// CreateBatch inserts a new batch marked as processing.
func (r *Repository) CreateBatch(ctx context.Context, input CreateBatchInput) (Batch, error) {
	batchNumber := strings.TrimSpace(input.BatchNumber)
	if batchNumber == "" {
		return Batch{}, ErrBatchNumberRequired
	}
	product := strings.TrimSpace(input.Product)

	const stmt = `INSERT INTO batches (batch_number, product, status) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, stmt, batchNumber, product, BatchStatusProcessing)
	if err != nil {
		if isDuplicateEntry(err) {
			return Batch{}, ErrBatchExists
		}
		return Batch{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Batch{}, err
	}
	return r.batchByID(ctx, id)
}

// ListActiveBatches returns batches still in processing, oldest first.
func (r *Repository) ListActiveBatches(ctx context.Context) ([]Batch, error) {
	const query = `SELECT id, batch_number, product, status, escalated,
		COALESCE(escalation_reason, ''), started_at, completed_at
		FROM batches WHERE status = ? ORDER BY started_at`
	rows, err := r.db.QueryContext(ctx, query, BatchStatusProcessing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.BatchNumber, &b.Product, &b.Status,
			&b.Escalated, &b.EscalationReason, &b.StartedAt, &b.CompletedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

// HasActiveBatches reports whether any batch is still processing.
func (r *Repository) HasActiveBatches(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM batches WHERE status = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, BatchStatusProcessing).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkBatchCompleted finalizes a processing batch with the given completion
// time. It returns ErrBatchNotFound when the batch is missing or already
// completed.
func (r *Repository) MarkBatchCompleted(ctx context.Context, id int64, completedAt time.Time) error {
	const stmt = `UPDATE batches SET status = ?, completed_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, stmt, BatchStatusCompleted, completedAt.UTC(), id, BatchStatusProcessing)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// EscalateActiveBatches flags every processing batch for quality review and
// records why. Already-escalated batches keep their original reason. It
// returns how many batches were newly flagged.
func (r *Repository) EscalateActiveBatches(ctx context.Context, reason string) (int64, error) {
	const stmt = `UPDATE batches SET escalated = TRUE, escalation_reason = ?
		WHERE status = ? AND escalated = FALSE`
	res, err := r.db.ExecContext(ctx, stmt, reason, BatchStatusProcessing)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) batchByID(ctx context.Context, id int64) (Batch, error) {
	const query = `SELECT id, batch_number, product, status, escalated,
		COALESCE(escalation_reason, ''), started_at, completed_at
		FROM batches WHERE id = ?`
	var b Batch
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.BatchNumber, &b.Product, &b.Status,
		&b.Escalated, &b.EscalationReason, &b.StartedAt, &b.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, ErrBatchNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	return b, nil
}
