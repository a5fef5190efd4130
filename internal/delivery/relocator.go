package delivery

import (
	"context"
	"os"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/logctx"
)

// ArtifactRelocator moves an artifact from where it landed to where it
// belongs, replacing whatever file already sits at the destination.
type ArtifactRelocator interface {
	Relocate(ctx context.Context, source, destination string) (artifact.RelocationResult, error)
}

// Relocator is the filesystem implementation of ArtifactRelocator.
type Relocator struct {
	rename func(oldpath, newpath string) error
}

type RelocatorOption func(*Relocator)

// WithRename replaces the rename syscall, letting tests provoke move
// failures the filesystem would not produce on demand.
func WithRename(fn func(oldpath, newpath string) error) RelocatorOption {
	return func(r *Relocator) {
		r.rename = fn
	}
}

func NewRelocator(opts ...RelocatorOption) *Relocator {
	r := &Relocator{rename: os.Rename}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Relocate deletes any pre-existing destination file, then renames source to
// destination. The deletion happens before the move; when the move then
// fails the result carries a PartialRelocationError so the half-done state
// is never mistaken for a plain rejection. On any failure the source file is
// left in place. The error return is reserved for argument violations; every
// filesystem outcome lands in the result.
func (r *Relocator) Relocate(ctx context.Context, source, destination string) (artifact.RelocationResult, error) {
	if source == "" {
		return artifact.RelocationResult{}, &artifact.InvalidArgumentError{Argument: "source", Reason: "must not be empty"}
	}

	if destination == "" {
		return artifact.RelocationResult{}, &artifact.InvalidArgumentError{Argument: "destination", Reason: "must not be empty"}
	}

	logger := logctx.LoggerFromContext(ctx)
	result := artifact.RelocationResult{Source: source, Destination: destination}

	if _, err := os.Stat(source); err != nil {
		result.Reason = &artifact.SourceMissingError{Source: source, Err: err}

		return result, nil
	}

	if _, err := os.Stat(destination); err == nil {
		if err := os.Remove(destination); err != nil {
			result.Reason = &artifact.DestinationBusyError{Destination: destination, Err: err}

			return result, nil
		}

		result.Replaced = true

		logger.Debug("cleared pre-existing destination", "destination", destination)
	}

	if err := r.rename(source, destination); err != nil {
		if result.Replaced {
			result.Reason = &artifact.PartialRelocationError{Source: source, Destination: destination, Err: err}
		} else {
			result.Reason = &artifact.MoveRejectedError{Source: source, Destination: destination, Err: err}
		}

		return result, nil
	}

	logger.Debug("artifact relocated", "source", source, "destination", destination)

	return result, nil
}
