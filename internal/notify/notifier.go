package notify

import "context"

// Notifier is the push-notification port. Implementations must be
// fire-and-forget: a notification failure never blocks or fails the protocol
// session that triggered it.
type Notifier interface {
	Notify(ctx context.Context, imei, eventKind, body string)
}

// Nop discards every notification; used when push is not configured.
type Nop struct{}

func (Nop) Notify(context.Context, string, string, string) {}
