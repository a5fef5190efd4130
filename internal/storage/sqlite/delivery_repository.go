package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/storage"
)

const deliveryColumns = `id, name, source_path, destination_path, max_wait_ms, poll_interval_ms,
	status, failure_reason, elapsed_ms, polls, locked_by, requested_at, delivered_at`

// DeliveryRepository stores delivery records in SQLite.
type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(dbConn *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: dbConn}
}

func (r *DeliveryRepository) GetDeliveries(ctx context.Context) ([]storage.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries`)
	if err != nil {
		return nil, err
	}

	return scanDeliveries(rows)
}

func (r *DeliveryRepository) GetDeliveriesByStatus(ctx context.Context, status string) ([]storage.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE status = ?`, status)
	if err != nil {
		return nil, err
	}

	return scanDeliveries(rows)
}

func (r *DeliveryRepository) GetDelivery(ctx context.Context, id string) (*storage.DeliveryRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id)

	record, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}

	return record, err
}

// GetPendingDeliveries returns deliveries that are pending and not locked, up to a limit.
func (r *DeliveryRepository) GetPendingDeliveries(ctx context.Context, limit int) ([]storage.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries
		WHERE status = 'pending'
		AND (locked_by IS NULL OR locked_by = '')
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	return scanDeliveries(rows)
}

func (r *DeliveryRepository) TrackDelivery(ctx context.Context, record *storage.DeliveryRecord) error {
	requestedAt := record.RequestedAt
	if requestedAt == "" {
		requestedAt = time.Now().Format(time.RFC3339)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, name, source_path, destination_path, max_wait_ms, poll_interval_ms, status, requested_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)`,
		record.ID, record.Name, record.SourcePath, record.DestinationPath,
		record.MaxWait.Milliseconds(), record.PollInterval.Milliseconds(), requestedAt,
	)

	return err
}

// ClaimDelivery atomically sets status to 'waiting' and locked_by to
// instanceID if the delivery is still pending and unlocked.
func (r *DeliveryRepository) ClaimDelivery(ctx context.Context, id, instanceID string) (bool, error) {
	var status string

	err := r.db.QueryRowContext(ctx, `SELECT status FROM deliveries WHERE id = ?`, id).Scan(&status)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	if status == string(artifact.StateMoved) {
		return false, storage.ErrAlreadyDelivered
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE deliveries SET status = 'waiting', locked_by = ?
		WHERE id = ? AND status = 'pending' AND (locked_by IS NULL OR locked_by = '')`,
		instanceID, id,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// UpdateDeliveryStatus sets the status for a delivery.
func (r *DeliveryRepository) UpdateDeliveryStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE deliveries SET status = ? WHERE id = ?`, status, id)

	return err
}

// RecordOutcome stores the terminal state of a delivery and releases the claim.
func (r *DeliveryRepository) RecordOutcome(ctx context.Context, id string, outcome storage.DeliveryOutcome) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE deliveries SET status = ?, failure_reason = ?, elapsed_ms = ?, polls = ?, delivered_at = ?, locked_by = NULL
		WHERE id = ?`,
		outcome.Status, outcome.FailureReason, outcome.Elapsed.Milliseconds(), outcome.Polls,
		time.Now().Format(time.RFC3339), id,
	)

	return err
}

// CancelDelivery marks a delivery as cancelled unless it already reached a
// terminal state.
func (r *DeliveryRepository) CancelDelivery(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE deliveries SET status = 'cancelled', locked_by = NULL, delivered_at = ?
		WHERE id = ? AND status IN ('pending', 'waiting', 'found', 'relocating')`,
		time.Now().Format(time.RFC3339), id,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func scanDeliveries(rows *sql.Rows) ([]storage.DeliveryRecord, error) {
	defer rows.Close()

	var deliveries []storage.DeliveryRecord

	for rows.Next() {
		record, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}

		deliveries = append(deliveries, *record)
	}

	return deliveries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*storage.DeliveryRecord, error) {
	var record storage.DeliveryRecord

	var maxWaitMS, pollIntervalMS, elapsedMS int64

	var lockedBy, requestedAt, deliveredAt sql.NullString

	err := row.Scan(
		&record.ID, &record.Name, &record.SourcePath, &record.DestinationPath,
		&maxWaitMS, &pollIntervalMS, &record.Status, &record.FailureReason,
		&elapsedMS, &record.Polls, &lockedBy, &requestedAt, &deliveredAt,
	)
	if err != nil {
		return nil, err
	}

	record.MaxWait = time.Duration(maxWaitMS) * time.Millisecond
	record.PollInterval = time.Duration(pollIntervalMS) * time.Millisecond
	record.Elapsed = time.Duration(elapsedMS) * time.Millisecond

	if lockedBy.Valid {
		record.LockedBy = lockedBy.String
	}

	if requestedAt.Valid {
		record.RequestedAt = requestedAt.String
	}

	if deliveredAt.Valid {
		record.DeliveredAt = deliveredAt.String
	}

	return &record, nil
}
