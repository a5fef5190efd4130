package artifact

import (
	"path/filepath"
	"time"
)

// Expectation describes one artifact the valet is waiting for: where it is
// expected to land and where it should end up once it does.
type Expectation struct {
	ID           string
	Name         string
	Path         string
	Destination  string
	MaxWait      time.Duration
	PollInterval time.Duration
	RequestedAt  time.Time
}

// WithinDir returns an expectation for name appearing in watchDir and being
// archived under archiveDir, keeping the artifact's own file name.
func WithinDir(id, name, watchDir, archiveDir string) Expectation {
	return Expectation{
		ID:          id,
		Name:        name,
		Path:        filepath.Join(watchDir, name),
		Destination: filepath.Join(archiveDir, name),
	}
}

// PollOutcome is the result of waiting for an artifact to appear. It is
// produced once and never mutated.
type PollOutcome struct {
	Path      string
	Found     bool
	Elapsed   time.Duration
	Polls     int
	Cancelled bool
}

// TimedOut reports whether the wait budget was exhausted before the artifact
// appeared. A cancelled wait also reports true here; check Cancelled to tell
// the two apart.
func (o PollOutcome) TimedOut() bool {
	return !o.Found
}

// RelocationResult is the result of a replace-then-move. Reason is nil when
// the artifact moved; Replaced records whether a pre-existing destination
// file was removed along the way.
type RelocationResult struct {
	Source      string
	Destination string
	Replaced    bool
	Reason      error
}

func (r RelocationResult) Moved() bool {
	return r.Reason == nil
}

// State is one step of the delivery lifecycle.
type State string

const (
	StatePending    State = "pending"
	StateWaiting    State = "waiting"
	StateFound      State = "found"
	StateRelocating State = "relocating"
	StateMoved      State = "moved"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	switch s {
	case StateMoved, StateFailed, StateTimedOut, StateCancelled:
		return true
	}

	return false
}

// Delivery is the terminal report of one wait-then-relocate flow.
// Relocation is nil when the wait never found the artifact.
type Delivery struct {
	Expectation Expectation
	State       State
	Wait        PollOutcome
	Relocation  *RelocationResult
	FinishedAt  time.Time
}

// Delivered reports whether the artifact ended up at its destination.
func (d Delivery) Delivered() bool {
	return d.State == StateMoved
}
