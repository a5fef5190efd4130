package curator

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/logctx"
	"github.com/AndreRH09/download_valet/internal/storage"
	"github.com/AndreRH09/download_valet/internal/telemetry"
)

// ArtifactDeliverer runs the wait and relocate flow for one expectation.
type ArtifactDeliverer interface {
	Deliver(ctx context.Context, exp artifact.Expectation) (artifact.Delivery, error)
}

// Curator consumes queued expectations and delivers their artifacts with
// bounded parallelism.
type Curator struct {
	deliverer ArtifactDeliverer
	repo      DeliveryRepository
	telemetry *telemetry.Telemetry
	group     errgroup.Group

	mu     sync.Mutex
	active map[string]context.CancelFunc

	OnDelivered      chan *artifact.Delivery
	OnDeliveryFailed chan *artifact.Delivery
	OnTimedOut       chan *artifact.Delivery
}

func NewCurator(
	deliverer ArtifactDeliverer,
	repo DeliveryRepository,
	tel *telemetry.Telemetry,
	maxParallel int,
) *Curator {
	c := &Curator{
		deliverer: deliverer,
		repo:      repo,
		telemetry: tel,
		active:    make(map[string]context.CancelFunc),

		OnDelivered:      make(chan *artifact.Delivery),
		OnDeliveryFailed: make(chan *artifact.Delivery),
		OnTimedOut:       make(chan *artifact.Delivery),
	}
	c.group.SetLimit(maxParallel)

	return c
}

// Close waits for in-flight deliveries and closes the outcome channels.
func (c *Curator) Close() {
	_ = c.group.Wait()

	close(c.OnDelivered)
	close(c.OnDeliveryFailed)
	close(c.OnTimedOut)
}

// Cancel stops an in-flight delivery. It reports whether the id was active.
func (c *Curator) Cancel(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cancel, ok := c.active[id]
	if ok {
		cancel()
		delete(c.active, id)
	}

	return ok
}

// WatchExpectations consumes queued expectations until the context ends.
func (c *Curator) WatchExpectations(ctx context.Context, incoming <-chan artifact.Expectation) {
	logger := logctx.LoggerFromContext(ctx)

	logger.Info("watching expectations")

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("shutting down curator")

				return
			case exp, ok := <-incoming:
				if !ok {
					return
				}

				c.group.Go(func() error {
					c.deliver(ctx, exp)

					return nil
				})
			}
		}
	}()
}

func (c *Curator) deliver(ctx context.Context, exp artifact.Expectation) {
	ctx = logctx.With(ctx, "expectation_id", exp.ID, "artifact_name", exp.Name)
	logger := logctx.LoggerFromContext(ctx)

	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.trackCancel(exp.ID, cancel)
	defer c.untrackCancel(exp.ID)

	logger.Debug("delivering artifact", "path", exp.Path, "destination", exp.Destination)

	start := time.Now()

	var delivery artifact.Delivery

	err := c.telemetry.InstrumentDelivery(dctx, func(ictx context.Context) error {
		var deliverErr error
		delivery, deliverErr = c.deliverer.Deliver(ictx, exp)

		return deliverErr
	})
	if err != nil {
		logger.Error("failed to deliver artifact", "err", err)

		c.recordOutcome(ctx, exp.ID, storage.DeliveryOutcome{
			Status:        string(artifact.StateFailed),
			FailureReason: artifact.FailureReason(err),
		})
		c.telemetry.RecordDelivery(string(artifact.StateFailed), time.Since(start))

		c.emit(ctx, c.OnDeliveryFailed, &delivery)

		return
	}

	outcome := storage.DeliveryOutcome{
		Status:  string(delivery.State),
		Elapsed: delivery.Wait.Elapsed,
		Polls:   delivery.Wait.Polls,
	}
	if delivery.Relocation != nil && delivery.Relocation.Reason != nil {
		outcome.FailureReason = artifact.FailureReason(delivery.Relocation.Reason)
	}

	c.recordOutcome(ctx, exp.ID, outcome)
	c.telemetry.RecordDelivery(string(delivery.State), time.Since(start))

	switch delivery.State {
	case artifact.StateMoved:
		size := "unknown"
		if info, statErr := os.Stat(exp.Destination); statErr == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}

		logger.Info("artifact delivered",
			"destination", exp.Destination,
			"artifact_size", size,
			"polls", delivery.Wait.Polls)

		c.emit(ctx, c.OnDelivered, &delivery)
	case artifact.StateTimedOut:
		logger.Warn("artifact never appeared", "path", exp.Path, "elapsed", delivery.Wait.Elapsed)

		c.emit(ctx, c.OnTimedOut, &delivery)
	case artifact.StateCancelled:
		logger.Info("delivery cancelled", "path", exp.Path, "elapsed", delivery.Wait.Elapsed)
	case artifact.StateFailed:
		logger.Error("failed to relocate artifact", "reason", outcome.FailureReason)

		c.emit(ctx, c.OnDeliveryFailed, &delivery)
	}
}

func (c *Curator) recordOutcome(ctx context.Context, id string, outcome storage.DeliveryOutcome) {
	// The terminal state must land even when the delivery itself was cancelled.
	ctx = context.WithoutCancel(ctx)

	if err := c.repo.RecordOutcome(ctx, id, outcome); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to record delivery outcome", "err", err)
		c.telemetry.RecordSystemError("curator", "record_outcome")
	}
}

func (c *Curator) emit(ctx context.Context, ch chan *artifact.Delivery, delivery *artifact.Delivery) {
	select {
	case ch <- delivery:
	case <-ctx.Done():
	}
}

func (c *Curator) trackCancel(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active[id] = cancel
}

func (c *Curator) untrackCancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.active, id)
}
