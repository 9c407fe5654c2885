package ports

import "context"

// NotificationSink receives copies of history events outside the lifecycle transaction.
// Delivery is at-least-once; consumers dedupe on EventUID.
type NotificationSink interface {
	Name() string
	Publish(ctx context.Context, event HistoryEvent) error
}
