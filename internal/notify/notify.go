// Package notify delivers listing notifications. Notifications are
// dispatched to all registered senders (Telegram, Discord webhook, etc.);
// delivery is best-effort and failures are swallowed after logging.
package notify

import (
	"context"
	"log/slog"
)

// Notification is one listing alert handed to delivery channels.
type Notification struct {
	// ID identifies the underlying listing; channels that support
	// deduplication may use it as the notification key.
	ID string
	// URL is the click-through target for the listed asset.
	URL     string
	Title   string
	Body    string
	IconURL string
	// RequireInteraction asks the channel to keep the alert visible until
	// acknowledged, where supported.
	RequireInteraction bool
	// Silent suppresses the channel's own sound; the engine plays its own
	// throttled cue instead.
	Silent bool
}

// Sender is the interface each notification channel implements.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	Name() string
}

// Dispatcher fans a notification out to every configured sender. A failing
// sender never blocks the rest and never surfaces an error to the caller:
// matching and dedup are authoritative, delivery is not.
type Dispatcher struct {
	senders []Sender
	log     *slog.Logger
}

// NewDispatcher creates a Dispatcher delivering to the given senders.
func NewDispatcher(senders []Sender, log *slog.Logger) *Dispatcher {
	return &Dispatcher{senders: senders, log: log}
}

// Send delivers the notification to all senders, best-effort.
func (d *Dispatcher) Send(ctx context.Context, n Notification) {
	for _, s := range d.senders {
		if err := s.Send(ctx, n); err != nil {
			d.log.Error("notification delivery failed", "sender", s.Name(), "listing_id", n.ID, "error", err)
		}
	}
}
