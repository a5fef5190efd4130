package delivery

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/logctx"
)

const dirPerm = 0755

// TransitionFunc observes every state change of a running flow. Hooks must
// be fast; they run inline with the flow.
type TransitionFunc func(ctx context.Context, exp artifact.Expectation, state artifact.State)

// Deliverer composes the wait and the relocation into one flow per artifact:
// wait for the expected path, then move what appeared into its destination.
// A single Deliverer is safe for concurrent use; each Deliver call is one
// independent flow instance.
type Deliverer struct {
	waiter     ArtifactWaiter
	relocator  ArtifactRelocator
	transition TransitionFunc
}

type DelivererOption func(*Deliverer)

// WithTransitionFunc registers a hook for state changes, letting callers
// persist intermediate states while a flow runs.
func WithTransitionFunc(fn TransitionFunc) DelivererOption {
	return func(d *Deliverer) {
		d.transition = fn
	}
}

func NewDeliverer(waiter ArtifactWaiter, relocator ArtifactRelocator, opts ...DelivererOption) *Deliverer {
	d := &Deliverer{waiter: waiter, relocator: relocator}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Deliver waits for the expectation's artifact and relocates it. The flow
// runs waiting -> found -> relocating -> moved/failed, or ends in timed_out
// or cancelled when the artifact never shows up. Terminal outcomes come back
// as the Delivery value; the error return fires only for invalid arguments.
func (d *Deliverer) Deliver(ctx context.Context, exp artifact.Expectation) (artifact.Delivery, error) {
	logger := logctx.LoggerFromContext(ctx).With("expectation_id", exp.ID, "artifact", exp.Name)
	delivery := artifact.Delivery{Expectation: exp, State: artifact.StatePending}

	d.advance(ctx, &delivery, artifact.StateWaiting)

	outcome, err := d.waiter.Await(ctx, exp.Path, exp.MaxWait, exp.PollInterval)
	if err != nil {
		return delivery, err
	}

	delivery.Wait = outcome

	if outcome.TimedOut() {
		if outcome.Cancelled {
			d.advance(ctx, &delivery, artifact.StateCancelled)
		} else {
			d.advance(ctx, &delivery, artifact.StateTimedOut)
		}

		delivery.FinishedAt = time.Now()

		logger.Info("artifact never appeared", "elapsed", outcome.Elapsed.String(), "cancelled", outcome.Cancelled)

		return delivery, nil
	}

	d.advance(ctx, &delivery, artifact.StateFound)
	d.advance(ctx, &delivery, artifact.StateRelocating)

	if err := os.MkdirAll(filepath.Dir(exp.Destination), dirPerm); err != nil {
		logger.Warn("failed to create destination directory", "destination", exp.Destination, "err", err)
	}

	result, err := d.relocator.Relocate(ctx, exp.Path, exp.Destination)
	if err != nil {
		return delivery, err
	}

	delivery.Relocation = &result

	if result.Moved() {
		d.advance(ctx, &delivery, artifact.StateMoved)

		logger.Info("artifact delivered", "destination", exp.Destination, "elapsed", outcome.Elapsed.String())
	} else {
		d.advance(ctx, &delivery, artifact.StateFailed)

		logger.Error("artifact relocation failed", "reason", artifact.FailureReason(result.Reason), "err", result.Reason)
	}

	delivery.FinishedAt = time.Now()

	return delivery, nil
}

func (d *Deliverer) advance(ctx context.Context, delivery *artifact.Delivery, next artifact.State) {
	delivery.State = next

	if d.transition != nil {
		d.transition(ctx, delivery.Expectation, next)
	}
}
