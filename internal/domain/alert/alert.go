package alert

import "context"

// Notifier delivers short operator alerts. Delivery is best-effort; callers log
// and drop errors.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop discards every alert.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }
