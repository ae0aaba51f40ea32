package notification

import (
	"context"
	"log/slog"
)

// Notifier enqueues an email for background delivery. Implementations never
// return an error to the caller: enqueue failures are logged and dropped so
// domain transactions are unaffected.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string)
}

// InsertFunc enqueues a SendEmailArgs job. Provided by main as a closure
// over river.Client.Insert.
type InsertFunc func(ctx context.Context, args SendEmailArgs) error

type riverNotifier struct {
	insert InsertFunc
	log    *slog.Logger
}

// NewNotifier returns a Notifier that enqueues emails on the river queue.
func NewNotifier(insert InsertFunc, log *slog.Logger) Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &riverNotifier{insert: insert, log: log}
}

func (n *riverNotifier) Send(ctx context.Context, to, subject, body string) {
	if err := n.insert(ctx, SendEmailArgs{To: to, Subject: subject, Body: body}); err != nil {
		n.log.Error("enqueue notification failed", "to", to, "subject", subject, "error", err)
	}
}

// Noop discards every notification. Used in tests.
type Noop struct{}

func (Noop) Send(context.Context, string, string, string) {}
