package notify

import (
	"context"
	"log/slog"

	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/ports"
)

// LogSink writes each event as a structured log line.
type LogSink struct{}

var _ ports.NotificationSink = LogSink{}

func NewLogSink() LogSink {
	return LogSink{}
}

func (LogSink) Name() string { return "log" }

func (LogSink) Publish(ctx context.Context, event ports.HistoryEvent) error {
	logging.Info(ctx, "work order event",
		slog.String("event_uid", event.EventUID),
		slog.Uint64("seq", event.Seq),
		slog.String("work_order", event.Number),
		slog.String("from", event.FromLabel()),
		slog.String("to", string(event.To)),
		slog.String("actor", event.Actor),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}
