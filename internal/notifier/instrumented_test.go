package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/AndreRH09/download_valet/internal/telemetry"
)

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(ctx context.Context, content string) error {
	c.calls++

	return c.err
}

func TestInstrumentedNotifier_PassesThrough(t *testing.T) {
	tel, err := telemetry.New(context.Background(), telemetry.Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inner := &countingNotifier{}
	notif := NewInstrumentedNotifier(inner, tel, "discord")

	if err := notif.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("expected 1 call, got %d", inner.calls)
	}
}

func TestInstrumentedNotifier_PropagatesError(t *testing.T) {
	tel, err := telemetry.New(context.Background(), telemetry.Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantErr := errors.New("webhook down")
	notif := NewInstrumentedNotifier(&countingNotifier{err: wantErr}, tel, "discord")

	if err := notif.Notify(context.Background(), "hello"); !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}
