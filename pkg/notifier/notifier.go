// Package notifier is the outbound notification port. Delivery transports
// live behind it; the core only composes messages.
package notifier

import (
	"context"
	"log/slog"
)

// Message is one composed notification, ready for a transport.
type Message struct {
	ContactID string
	To        string
	Subject   string
	Body      string
}

// Notifier delivers composed messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SlogNotifier logs messages instead of delivering them. It is the default
// transport for development and tests.
type SlogNotifier struct {
	logger *slog.Logger
}

func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger.With("module", "notifier")}
}

func (n *SlogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "Notification dispatched",
		"contact_id", msg.ContactID,
		"to", msg.To,
		"subject", msg.Subject,
	)

	return nil
}
