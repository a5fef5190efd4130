package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/AndreRH09/download_valet/internal/artifact"
)

// ErrAlreadyDelivered is returned when claiming a delivery whose artifact
// was already moved into place.
var ErrAlreadyDelivered = errors.New("artifact already delivered")

// ErrNotFound is returned when a delivery id is unknown.
var ErrNotFound = errors.New("delivery not found")

// DeliveryRecord represents a tracked artifact delivery.
type DeliveryRecord struct {
	ID              string
	Name            string
	SourcePath      string
	DestinationPath string
	MaxWait         time.Duration // zero means the configured default
	PollInterval    time.Duration // zero means the configured default
	Status          string
	FailureReason   string
	Elapsed         time.Duration
	Polls           int
	LockedBy        string
	RequestedAt     string
	DeliveredAt     string
}

// DeliveryOutcome carries the terminal state of a finished delivery.
type DeliveryOutcome struct {
	Status        string
	FailureReason string
	Elapsed       time.Duration
	Polls         int
}

// DeliveryReadRepository exposes the query side of the deliveries store.
type DeliveryReadRepository interface {
	GetDeliveries(ctx context.Context) ([]DeliveryRecord, error)
	GetDeliveriesByStatus(ctx context.Context, status string) ([]DeliveryRecord, error)
	GetDelivery(ctx context.Context, id string) (*DeliveryRecord, error)
	GetPendingDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
}

// DeliveryWriteRepository exposes the mutation side of the deliveries store.
type DeliveryWriteRepository interface {
	TrackDelivery(ctx context.Context, record *DeliveryRecord) error
	ClaimDelivery(ctx context.Context, id, instanceID string) (bool, error) // atomically claim a pending delivery
	UpdateDeliveryStatus(ctx context.Context, id, status string) error
	RecordOutcome(ctx context.Context, id string, outcome DeliveryOutcome) error
	CancelDelivery(ctx context.Context, id string) (bool, error)
}

// NewDeliveryRecord builds a pending record from an expectation.
func NewDeliveryRecord(exp artifact.Expectation) *DeliveryRecord {
	return &DeliveryRecord{
		ID:              exp.ID,
		Name:            exp.Name,
		SourcePath:      exp.Path,
		DestinationPath: exp.Destination,
		MaxWait:         exp.MaxWait,
		PollInterval:    exp.PollInterval,
		Status:          string(artifact.StatePending),
		RequestedAt:     exp.RequestedAt.Format(time.RFC3339),
	}
}

// Expectation converts the record back into an expectation, filling zero
// overrides from the provided defaults.
func (r *DeliveryRecord) Expectation(maxWait, pollInterval time.Duration) artifact.Expectation {
	exp := artifact.Expectation{
		ID:           r.ID,
		Name:         r.Name,
		Path:         r.SourcePath,
		Destination:  r.DestinationPath,
		MaxWait:      r.MaxWait,
		PollInterval: r.PollInterval,
	}

	if exp.MaxWait == 0 {
		exp.MaxWait = maxWait
	}

	if exp.PollInterval == 0 {
		exp.PollInterval = pollInterval
	}

	if requestedAt, err := time.Parse(time.RFC3339, r.RequestedAt); err == nil {
		exp.RequestedAt = requestedAt
	}

	return exp
}

// GenerateInstanceID returns an identifier for this process, used to mark
// claimed rows so concurrent instances skip each other's work.
func GenerateInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "valet"
	}

	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
