package curator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/logctx"
	"github.com/AndreRH09/download_valet/internal/storage"
)

// DeliveryRepository is the slice of the deliveries store the curator needs.
type DeliveryRepository interface {
	storage.DeliveryReadRepository
	storage.DeliveryWriteRepository
}

// Producer claims pending deliveries and feeds them to the curator.
type Producer struct {
	repo           DeliveryRepository
	instanceID     string
	updateInterval time.Duration
	maxWait        time.Duration
	pollInterval   time.Duration
	batchSize      int

	OnExpectationQueued chan artifact.Expectation
}

func NewProducer(
	repo DeliveryRepository,
	instanceID string,
	updateInterval, maxWait, pollInterval time.Duration,
	batchSize int,
) *Producer {
	return &Producer{
		repo:           repo,
		instanceID:     instanceID,
		updateInterval: updateInterval,
		maxWait:        maxWait,
		pollInterval:   pollInterval,
		batchSize:      batchSize,

		OnExpectationQueued: make(chan artifact.Expectation),
	}
}

func (p *Producer) Close() {
	close(p.OnExpectationQueued)
}

func (p *Producer) ProduceExpectations(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	logger.Info("checking unclaimed expectations", "instance_id", p.instanceID)

	go func() {
		// Panic recovery (deferred last, executes first during unwind)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("expectation producer panic",
					"operation", "produce_expectations",
					"panic", r,
					"stack", string(debug.Stack()))

				// Restart with clean state if context not cancelled
				if ctx.Err() == nil {
					logger.Info("restarting expectation producer after panic",
						"operation", "produce_expectations")
					time.Sleep(time.Second) // Brief backoff before restart
					p.ProduceExpectations(ctx)
				}
			}
		}()

		ticker := time.NewTicker(p.updateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("expectation producer shutdown",
					"operation", "produce_expectations",
					"reason", "context_cancelled")

				return
			case <-ticker.C:
				if err := p.watchExpectations(ctx); err != nil {
					logger.Error("failed to watch expectations", "err", err)
				}
			}
		}
	}()
}

func (p *Producer) watchExpectations(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	pending, err := p.repo.GetPendingDeliveries(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending deliveries: %w", err)
	}

	if len(pending) > 0 {
		logger.Info("pending expectations", "expectation_count", len(pending))
	}

	for _, record := range pending {
		recordLogger := logger.With("expectation_id", record.ID, "artifact_name", record.Name)

		claimed, err := p.repo.ClaimDelivery(ctx, record.ID, p.instanceID)
		if err != nil {
			if errors.Is(err, storage.ErrAlreadyDelivered) {
				recordLogger.Debug("skipping expectation because its artifact was already delivered")

				continue
			}

			return fmt.Errorf("failed to claim delivery: %w", err)
		}

		if !claimed {
			recordLogger.Debug("skipping expectation because it's already claimed")

			continue
		}

		recordLogger.Info("expectation ready for delivery")

		select {
		case p.OnExpectationQueued <- record.Expectation(p.maxWait, p.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
