package artifact

import (
	"errors"
	"fmt"
)

// InvalidArgumentError represents a precondition failure: empty paths or
// non-positive durations. It is reported synchronously, before any I/O.
type InvalidArgumentError struct {
	Argument string // Name of the offending argument
	Reason   string // Human-readable explanation of the violation
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Reason)
}

// SourceMissingError reports a relocation whose source file was not there.
// The destination is left untouched.
type SourceMissingError struct {
	Source string // Path that was expected to hold the artifact
	Err    error  // Underlying error, if any
}

func (e *SourceMissingError) Error() string {
	return fmt.Sprintf("relocation source %s is missing", e.Source)
}

func (e *SourceMissingError) Unwrap() error {
	return e.Err
}

// DestinationBusyError reports a pre-existing destination file that could not
// be deleted. Nothing was moved.
type DestinationBusyError struct {
	Destination string // Path of the occupying file
	Err         error  // Underlying error, if any
}

func (e *DestinationBusyError) Error() string {
	return fmt.Sprintf("destination %s is occupied and could not be cleared", e.Destination)
}

func (e *DestinationBusyError) Unwrap() error {
	return e.Err
}

// MoveRejectedError reports a rename refused by the filesystem while the
// destination was untouched beforehand. The source file stays in place.
type MoveRejectedError struct {
	Source      string // Path of the artifact that failed to move
	Destination string // Path the artifact was headed to
	Err         error  // Underlying error, if any
}

func (e *MoveRejectedError) Error() string {
	return fmt.Sprintf("move from %s to %s was rejected", e.Source, e.Destination)
}

func (e *MoveRejectedError) Unwrap() error {
	return e.Err
}

// PartialRelocationError reports the half-done case: a pre-existing
// destination file was deleted, then the move itself failed. The old content
// is gone and the artifact is still at the source, so callers must be able
// to tell this apart from a plain rejection.
type PartialRelocationError struct {
	Source      string // Path where the artifact still resides
	Destination string // Path whose previous content was cleared
	Err         error  // Underlying error, if any
}

func (e *PartialRelocationError) Error() string {
	return fmt.Sprintf("destination %s was cleared but move from %s failed", e.Destination, e.Source)
}

func (e *PartialRelocationError) Unwrap() error {
	return e.Err
}

// FailureReason maps an error to a bounded label for metrics and records.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	var invalidErr *InvalidArgumentError
	if errors.As(err, &invalidErr) {
		return "invalid_argument"
	}

	var missingErr *SourceMissingError
	if errors.As(err, &missingErr) {
		return "source_missing"
	}

	var busyErr *DestinationBusyError
	if errors.As(err, &busyErr) {
		return "destination_busy"
	}

	var partialErr *PartialRelocationError
	if errors.As(err, &partialErr) {
		return "partial_relocation"
	}

	var rejectedErr *MoveRejectedError
	if errors.As(err, &rejectedErr) {
		return "move_rejected"
	}

	return "unknown"
}
