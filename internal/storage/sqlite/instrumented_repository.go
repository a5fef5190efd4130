package sqlite

import (
	"context"
	"database/sql"

	"github.com/AndreRH09/download_valet/internal/storage"
	"github.com/AndreRH09/download_valet/internal/telemetry"
)

// InstrumentedDeliveryRepository wraps DeliveryRepository with telemetry.
type InstrumentedDeliveryRepository struct {
	repo      *DeliveryRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedDeliveryRepository creates a new instrumented delivery repository.
func NewInstrumentedDeliveryRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedDeliveryRepository {
	return &InstrumentedDeliveryRepository{
		repo:      NewDeliveryRepository(dbConn),
		telemetry: tel,
	}
}

func (r *InstrumentedDeliveryRepository) GetDeliveries(ctx context.Context) ([]storage.DeliveryRecord, error) {
	var result []storage.DeliveryRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_deliveries", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.repo.GetDeliveries(ctx)

		return opErr
	})

	return result, err
}

func (r *InstrumentedDeliveryRepository) GetDeliveriesByStatus(ctx context.Context, status string) ([]storage.DeliveryRecord, error) {
	var result []storage.DeliveryRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_deliveries_by_status", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.repo.GetDeliveriesByStatus(ctx, status)

		return opErr
	})

	return result, err
}

func (r *InstrumentedDeliveryRepository) GetDelivery(ctx context.Context, id string) (*storage.DeliveryRecord, error) {
	var result *storage.DeliveryRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_delivery", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.repo.GetDelivery(ctx, id)

		return opErr
	})

	return result, err
}

func (r *InstrumentedDeliveryRepository) GetPendingDeliveries(ctx context.Context, limit int) ([]storage.DeliveryRecord, error) {
	var result []storage.DeliveryRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_pending_deliveries", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.repo.GetPendingDeliveries(ctx, limit)

		return opErr
	})

	return result, err
}

func (r *InstrumentedDeliveryRepository) TrackDelivery(ctx context.Context, record *storage.DeliveryRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "track_delivery", func(ctx context.Context) error {
		return r.repo.TrackDelivery(ctx, record)
	})
}

func (r *InstrumentedDeliveryRepository) ClaimDelivery(ctx context.Context, id, instanceID string) (bool, error) {
	var claimed bool

	err := r.telemetry.InstrumentDBOperation(ctx, "claim_delivery", func(ctx context.Context) error {
		var opErr error
		claimed, opErr = r.repo.ClaimDelivery(ctx, id, instanceID)

		return opErr
	})

	return claimed, err
}

func (r *InstrumentedDeliveryRepository) UpdateDeliveryStatus(ctx context.Context, id, status string) error {
	return r.telemetry.InstrumentDBOperation(ctx, "update_delivery_status", func(ctx context.Context) error {
		return r.repo.UpdateDeliveryStatus(ctx, id, status)
	})
}

func (r *InstrumentedDeliveryRepository) RecordOutcome(ctx context.Context, id string, outcome storage.DeliveryOutcome) error {
	return r.telemetry.InstrumentDBOperation(ctx, "record_outcome", func(ctx context.Context) error {
		return r.repo.RecordOutcome(ctx, id, outcome)
	})
}

func (r *InstrumentedDeliveryRepository) CancelDelivery(ctx context.Context, id string) (bool, error) {
	var cancelled bool

	err := r.telemetry.InstrumentDBOperation(ctx, "cancel_delivery", func(ctx context.Context) error {
		var opErr error
		cancelled, opErr = r.repo.CancelDelivery(ctx, id)

		return opErr
	})

	return cancelled, err
}
