package delivery

import (
	"context"
	"time"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/telemetry"
)

// InstrumentedWaiter wraps an ArtifactWaiter with telemetry.
type InstrumentedWaiter struct {
	waiter    ArtifactWaiter
	telemetry *telemetry.Telemetry
}

// NewInstrumentedWaiter creates a new instrumented waiter.
func NewInstrumentedWaiter(waiter ArtifactWaiter, tel *telemetry.Telemetry) *InstrumentedWaiter {
	return &InstrumentedWaiter{
		waiter:    waiter,
		telemetry: tel,
	}
}

// Await waits for an artifact with telemetry.
func (w *InstrumentedWaiter) Await(ctx context.Context, path string, maxWait, pollInterval time.Duration) (artifact.PollOutcome, error) {
	var result artifact.PollOutcome

	var err error

	instrumentedErr := w.telemetry.InstrumentOperation(ctx, "wait", "delivery", func(ctx context.Context) error {
		result, err = w.waiter.Await(ctx, path, maxWait, pollInterval)

		return err
	})

	if instrumentedErr != nil {
		return result, instrumentedErr
	}

	w.telemetry.RecordWait(waitOutcomeLabel(result), result.Elapsed, result.Polls)

	return result, nil
}

// InstrumentedRelocator wraps an ArtifactRelocator with telemetry.
type InstrumentedRelocator struct {
	relocator ArtifactRelocator
	telemetry *telemetry.Telemetry
}

// NewInstrumentedRelocator creates a new instrumented relocator.
func NewInstrumentedRelocator(relocator ArtifactRelocator, tel *telemetry.Telemetry) *InstrumentedRelocator {
	return &InstrumentedRelocator{
		relocator: relocator,
		telemetry: tel,
	}
}

// Relocate moves an artifact with telemetry.
func (r *InstrumentedRelocator) Relocate(ctx context.Context, source, destination string) (artifact.RelocationResult, error) {
	var result artifact.RelocationResult

	var err error

	start := time.Now()

	instrumentedErr := r.telemetry.InstrumentOperation(ctx, "relocate", "delivery", func(ctx context.Context) error {
		result, err = r.relocator.Relocate(ctx, source, destination)

		return err
	})

	if instrumentedErr != nil {
		return result, instrumentedErr
	}

	r.telemetry.RecordRelocation(relocationOutcomeLabel(result), time.Since(start))

	return result, nil
}

func waitOutcomeLabel(o artifact.PollOutcome) string {
	switch {
	case o.Found:
		return "found"
	case o.Cancelled:
		return "cancelled"
	default:
		return "timed_out"
	}
}

func relocationOutcomeLabel(r artifact.RelocationResult) string {
	if r.Moved() {
		return "moved"
	}

	return artifact.FailureReason(r.Reason)
}
