package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/errs"
	"maintflow/internal/ports"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes JSON payloads to core NATS subjects.
type NATSSink struct {
	pub    publisher
	conn   *nats.Conn
	prefix string
}

var _ ports.NotificationSink = (*NATSSink)(nil)

func DialNATS(ctx context.Context, url string, prefix string) (*NATSSink, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		url = nats.DefaultURL
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "notify.nats"))

	conn, err := nats.Connect(url,
		nats.Name("maintflow-relay"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info(logCtx, "nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %q", url)
	}
	logging.Info(logCtx, "nats connected", slog.String("url", conn.ConnectedUrl()))

	return &NATSSink{pub: conn, conn: conn, prefix: prefix}, nil
}

func newNATSSink(pub publisher, prefix string) *NATSSink {
	return &NATSSink{pub: pub, prefix: prefix}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Publish(ctx context.Context, event ports.HistoryEvent) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	data, err := EncodePayload(event)
	if err != nil {
		return errs.Wrap(err, "encode event payload")
	}
	subject := Subject(s.prefix, event)
	if err := s.pub.Publish(subject, data); err != nil {
		return errs.Wrapf(err, "publish %s", subject)
	}
	return nil
}

// Close drains pending publishes before closing the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		return errs.Wrap(err, "drain nats connection")
	}
	return nil
}
