// Package observability exports lifecycle counters through OpenTelemetry with a Prometheus reader.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
)

const meterName = "maintflow"

// InitMetrics installs a meter provider backed by the Prometheus exporter and
// returns the /metrics handler with the provider shutdown.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, errs.Wrap(err, "create prometheus exporter")
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// LifecycleMetrics counts transitions, conflicts, escalations, stock rejections
// and relay deliveries. The Prometheus exporter appends the _total suffix.
type LifecycleMetrics struct {
	transitions     metric.Int64Counter
	conflicts       metric.Int64Counter
	escalations     metric.Int64Counter
	stockRejections metric.Int64Counter
	relayPublished  metric.Int64Counter
}

// NewLifecycleMetrics registers the counters on meter, or on the global provider when meter is nil.
func NewLifecycleMetrics(meter metric.Meter) (*LifecycleMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	m := &LifecycleMetrics{}
	var err error
	if m.transitions, err = meter.Int64Counter("maintflow.transitions",
		metric.WithDescription("Committed work order status transitions.")); err != nil {
		return nil, errs.Wrap(err, "create transitions counter")
	}
	if m.conflicts, err = meter.Int64Counter("maintflow.conflicts",
		metric.WithDescription("Operations rejected because the order changed concurrently.")); err != nil {
		return nil, errs.Wrap(err, "create conflicts counter")
	}
	if m.escalations, err = meter.Int64Counter("maintflow.escalations",
		metric.WithDescription("Approvals escalated above the approver threshold.")); err != nil {
		return nil, errs.Wrap(err, "create escalations counter")
	}
	if m.stockRejections, err = meter.Int64Counter("maintflow.stock_rejections",
		metric.WithDescription("Reservations rejected for insufficient stock.")); err != nil {
		return nil, errs.Wrap(err, "create stock rejections counter")
	}
	if m.relayPublished, err = meter.Int64Counter("maintflow.relay_published",
		metric.WithDescription("History events delivered to the notification sink.")); err != nil {
		return nil, errs.Wrap(err, "create relay counter")
	}
	return m, nil
}

func (m *LifecycleMetrics) RecordTransition(ctx context.Context, from string, to workorder.Status) {
	if from == "" {
		from = "none"
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", string(to)),
	))
}

func (m *LifecycleMetrics) RecordConflict(ctx context.Context) {
	m.conflicts.Add(ctx, 1)
}

func (m *LifecycleMetrics) RecordEscalation(ctx context.Context) {
	m.escalations.Add(ctx, 1)
}

func (m *LifecycleMetrics) RecordStockRejection(ctx context.Context) {
	m.stockRejections.Add(ctx, 1)
}

func (m *LifecycleMetrics) RecordPublished(ctx context.Context, sink string) {
	m.relayPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

// Serve exposes handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "observability"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(logCtx, "metrics endpoint listening", slog.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(err, "serve metrics")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown metrics server")
		}
		return nil
	}
}
