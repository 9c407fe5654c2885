package notify

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/errs"
	"maintflow/internal/ports"
)

const (
	defaultBatchSize = 100
	defaultInterval  = 5 * time.Second
)

// HistoryFeed is the read side the relay needs from the work order store.
type HistoryFeed interface {
	ListHistoryAfter(ctx context.Context, afterSeq uint64, limit int) ([]ports.HistoryEvent, error)
}

type Metrics interface {
	RecordPublished(ctx context.Context, sink string)
}

type nopMetrics struct{}

func (nopMetrics) RecordPublished(context.Context, string) {}

type Options struct {
	BatchSize     int
	RatePerSecond float64
}

// Relay forwards committed history rows to a sink. The cursor moves after every
// successful publish, so a crash replays at most the event in flight.
type Relay struct {
	feed      HistoryFeed
	cache     ports.Cache
	sink      ports.NotificationSink
	metrics   Metrics
	limiter   *rate.Limiter
	batchSize int
}

type RunResult struct {
	CursorBefore uint64
	CursorAfter  uint64
	Fetched      int
	Published    int
}

func NewRelay(feed HistoryFeed, cache ports.Cache, sink ports.NotificationSink, metrics Metrics, opts Options) *Relay {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	limit := rate.Inf
	burst := 1
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		burst = max(1, int(opts.RatePerSecond))
	}
	return &Relay{
		feed:      feed,
		cache:     cache,
		sink:      sink,
		metrics:   metrics,
		limiter:   rate.NewLimiter(limit, burst),
		batchSize: batch,
	}
}

func (r *Relay) cursorKey() string {
	return "relay:" + r.sink.Name() + ":cursor:seq"
}

func (r *Relay) Cursor(ctx context.Context) (uint64, error) {
	value, found, err := r.cache.Get(ctx, r.cursorKey())
	if err != nil {
		return 0, errs.Wrap(err, "read relay cursor")
	}
	if !found || strings.TrimSpace(value) == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errs.Wrapf(err, "parse relay cursor %q", value)
	}
	return parsed, nil
}

// RunOnce delivers up to one batch after the stored cursor.
func (r *Relay) RunOnce(ctx context.Context) (RunResult, error) {
	if ctx == nil {
		return RunResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return RunResult{}, errs.Wrap(err, "check context")
	}
	if r.feed == nil || r.cache == nil || r.sink == nil {
		return RunResult{}, errors.New("relay requires a history feed, cache and sink")
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "notify.relay"),
		slog.String("sink", r.sink.Name()),
	)

	cursor, err := r.Cursor(ctx)
	if err != nil {
		return RunResult{}, err
	}
	result := RunResult{CursorBefore: cursor, CursorAfter: cursor}

	events, err := r.feed.ListHistoryAfter(ctx, cursor, r.batchSize)
	if err != nil {
		return result, errs.Wrap(err, "list history after cursor")
	}
	result.Fetched = len(events)

	for _, event := range events {
		if err := r.limiter.Wait(ctx); err != nil {
			return result, errs.Wrap(err, "wait for publish slot")
		}
		if err := r.sink.Publish(ctx, event); err != nil {
			logging.Warn(ctx, "publish history event failed",
				slog.Uint64("seq", event.Seq),
				slog.String("event_uid", event.EventUID),
				slog.Any("err", errs.Loggable(err)),
			)
			return result, errs.Wrapf(err, "publish history seq %d", event.Seq)
		}
		if err := r.cache.Set(ctx, r.cursorKey(), strconv.FormatUint(event.Seq, 10), 0); err != nil {
			return result, errs.Wrap(err, "advance relay cursor")
		}
		result.CursorAfter = event.Seq
		result.Published++
		r.metrics.RecordPublished(ctx, r.sink.Name())
	}

	if result.Published > 0 {
		logging.Info(ctx, "history events relayed",
			slog.Uint64("cursor_before", result.CursorBefore),
			slog.Uint64("cursor_after", result.CursorAfter),
			slog.Int("published", result.Published),
		)
	}
	return result, nil
}

// Run polls until ctx is cancelled. A failed batch is logged and retried on the
// next tick from the last delivered cursor.
func (r *Relay) Run(ctx context.Context, interval time.Duration, onTick func(RunResult)) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if interval <= 0 {
		interval = defaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := r.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			logging.Error(ctx, "relay tick failed", slog.Any("err", errs.Loggable(err)))
		case onTick != nil:
			onTick(result)
		}
		// Drain full batches without waiting for the ticker.
		if err == nil && result.Fetched == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
