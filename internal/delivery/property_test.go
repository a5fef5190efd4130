package delivery_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/delivery"
	"pgregory.net/rapid"
)

// TestRelocate_Properties checks the replace-then-move contract over random
// artifact names and contents: content survives intact, the source is
// consumed, and a rerun reports the missing source instead of crashing.
func TestRelocate_Properties(t *testing.T) {
	r := delivery.NewRelocator()

	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9_-]{0,19}\.(pdf|png|txt)`).Draw(rt, "name")
		content := rapid.SliceOfN(rapid.Byte(), 1, 2048).Draw(rt, "content")
		stale := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(rt, "stale")
		occupied := rapid.Bool().Draw(rt, "occupied")

		dir, err := os.MkdirTemp("", "valet")
		if err != nil {
			rt.Fatalf("failed to create temp dir: %v", err)
		}
		defer os.RemoveAll(dir)

		source := filepath.Join(dir, name)
		destination := filepath.Join(dir, "archive", name)

		if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
			rt.Fatalf("failed to create archive dir: %v", err)
		}

		if err := os.WriteFile(source, content, 0644); err != nil {
			rt.Fatalf("failed to write source: %v", err)
		}

		if occupied {
			if err := os.WriteFile(destination, stale, 0644); err != nil {
				rt.Fatalf("failed to write occupant: %v", err)
			}
		}

		result, err := r.Relocate(context.Background(), source, destination)
		if err != nil {
			rt.Fatalf("unexpected argument error: %v", err)
		}

		if !result.Moved() {
			rt.Fatalf("relocation failed: %v", result.Reason)
		}

		if result.Replaced != occupied {
			rt.Fatalf("Replaced = %v, want %v", result.Replaced, occupied)
		}

		got, err := os.ReadFile(destination)
		if err != nil {
			rt.Fatalf("failed to read destination: %v", err)
		}

		if !bytes.Equal(got, content) {
			rt.Fatalf("destination content differs from source")
		}

		if _, err := os.Stat(source); !os.IsNotExist(err) {
			rt.Fatalf("source should be gone after the move, stat err: %v", err)
		}

		second, err := r.Relocate(context.Background(), source, destination)
		if err != nil {
			rt.Fatalf("unexpected argument error on rerun: %v", err)
		}

		var missingErr *artifact.SourceMissingError
		if !errors.As(second.Reason, &missingErr) {
			rt.Fatalf("rerun reason = %v, want source missing", second.Reason)
		}
	})
}

// TestAwait_BudgetProperty checks the latency bound for arbitrary budgets:
// a wait for a path that never appears spends at least maxWait and strictly
// less than maxWait + pollInterval.
func TestAwait_BudgetProperty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.pdf")

	rapid.Check(t, func(rt *rapid.T) {
		maxWaitSecs := rapid.IntRange(1, 120).Draw(rt, "maxWaitSecs")
		intervalSecs := rapid.IntRange(1, maxWaitSecs).Draw(rt, "intervalSecs")

		maxWait := time.Duration(maxWaitSecs) * time.Second
		interval := time.Duration(intervalSecs) * time.Second

		w := delivery.NewWaiter(delivery.WithClock(delivery.NewFakeClock(time.Now())))

		outcome, err := w.Await(context.Background(), path, maxWait, interval)
		if err != nil {
			rt.Fatalf("unexpected argument error: %v", err)
		}

		if outcome.Found {
			rt.Fatalf("outcome should be a timeout")
		}

		if outcome.Elapsed < maxWait {
			rt.Fatalf("elapsed %v is below the %v budget", outcome.Elapsed, maxWait)
		}

		if outcome.Elapsed >= maxWait+interval {
			rt.Fatalf("elapsed %v reached budget %v plus interval %v", outcome.Elapsed, maxWait, interval)
		}
	})
}
