package delivery

import (
	"context"
	"os"
	"time"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/logctx"
)

// ArtifactWaiter polls a filesystem location until an expected artifact
// appears or the wait budget runs out.
type ArtifactWaiter interface {
	Await(ctx context.Context, path string, maxWait, pollInterval time.Duration) (artifact.PollOutcome, error)
}

// Waiter is the filesystem implementation of ArtifactWaiter.
type Waiter struct {
	clock Clock
}

type WaiterOption func(*Waiter)

// WithClock replaces the wall clock, enabling simulated time.
func WithClock(c Clock) WaiterOption {
	return func(w *Waiter) {
		w.clock = c
	}
}

func NewWaiter(opts ...WaiterOption) *Waiter {
	w := &Waiter{clock: wallClock{}}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Await checks for path once, then keeps checking at pollInterval cadence
// until the path exists or the accumulated elapsed time reaches maxWait.
// The check is a read-only existence test. Await returns within
// maxWait + pollInterval of being called; a path that already exists comes
// back as Found with zero polls. Cancelling ctx ends the wait early with a
// Cancelled outcome rather than an error, so callers can tell a teardown
// from a genuine timeout.
func (w *Waiter) Await(ctx context.Context, path string, maxWait, pollInterval time.Duration) (artifact.PollOutcome, error) {
	if err := validateWait(path, maxWait, pollInterval); err != nil {
		return artifact.PollOutcome{}, err
	}

	logger := logctx.LoggerFromContext(ctx).With("path", path)
	start := w.clock.Now()
	outcome := artifact.PollOutcome{Path: path}

	for {
		if pathExists(path) {
			outcome.Found = true
			outcome.Elapsed = w.clock.Now().Sub(start)

			logger.Debug("artifact appeared", "elapsed", outcome.Elapsed.String(), "polls", outcome.Polls)

			return outcome, nil
		}

		outcome.Elapsed = w.clock.Now().Sub(start)
		if outcome.Elapsed >= maxWait {
			logger.Debug("wait budget exhausted", "elapsed", outcome.Elapsed.String(), "polls", outcome.Polls)

			return outcome, nil
		}

		select {
		case <-ctx.Done():
			outcome.Cancelled = true
			outcome.Elapsed = w.clock.Now().Sub(start)

			logger.Debug("wait cancelled", "elapsed", outcome.Elapsed.String(), "polls", outcome.Polls)

			return outcome, nil
		case <-w.clock.After(pollInterval):
			if ctx.Err() != nil {
				outcome.Cancelled = true
				outcome.Elapsed = w.clock.Now().Sub(start)

				logger.Debug("wait cancelled", "elapsed", outcome.Elapsed.String(), "polls", outcome.Polls)

				return outcome, nil
			}

			outcome.Polls++
		}
	}
}

func validateWait(path string, maxWait, pollInterval time.Duration) error {
	if path == "" {
		return &artifact.InvalidArgumentError{Argument: "path", Reason: "must not be empty"}
	}

	if maxWait <= 0 {
		return &artifact.InvalidArgumentError{Argument: "maxWait", Reason: "must be positive"}
	}

	if pollInterval <= 0 {
		return &artifact.InvalidArgumentError{Argument: "pollInterval", Reason: "must be positive"}
	}

	if pollInterval > maxWait {
		return &artifact.InvalidArgumentError{Argument: "pollInterval", Reason: "must not exceed maxWait"}
	}

	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
