package notifier

import (
	"context"

	"github.com/AndreRH09/download_valet/internal/telemetry"
)

// InstrumentedNotifier wraps a Notifier with telemetry.
type InstrumentedNotifier struct {
	notifier  Notifier
	telemetry *telemetry.Telemetry
	name      string
}

// NewInstrumentedNotifier creates a new instrumented notifier. The name
// labels the underlying channel in metrics and must stay bounded.
func NewInstrumentedNotifier(notifier Notifier, tel *telemetry.Telemetry, name string) *InstrumentedNotifier {
	return &InstrumentedNotifier{
		notifier:  notifier,
		telemetry: tel,
		name:      name,
	}
}

// Notify sends a notification with telemetry.
func (n *InstrumentedNotifier) Notify(ctx context.Context, content string) error {
	return n.telemetry.InstrumentClientOperation(ctx, n.name, "notify", func(ctx context.Context) error {
		return n.notifier.Notify(ctx, content)
	})
}
