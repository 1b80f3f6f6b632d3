// Package natsutil publishes and consumes JSON events over NATS with
// OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish encodes v as JSON and publishes it on subject, carrying the
// trace context of ctx in the message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// Subscribe decodes JSON messages on subject into T and passes them to
// handler with the publisher's trace context. Malformed messages are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	})
}

// SubjectFillCompleted carries a FillCompleted event after every fill.
const SubjectFillCompleted = "eventbrief.fill.completed"

// FillCompleted announces a finished fill.
type FillCompleted struct {
	ID             string    `json:"id"`
	EventName      string    `json:"event_name"`
	TemplateName   string    `json:"template_name"`
	Files          []string  `json:"files"`
	TotalFields    int       `json:"total_fields"`
	FilledFields   int       `json:"filled_fields"`
	CompletionRate float64   `json:"completion_rate"`
	At             time.Time `json:"at"`
}

// Events publishes fill events on a NATS connection.
type Events struct {
	nc  *nats.Conn
	log *slog.Logger
}

// Connect dials NATS at url, reconnecting forever on disconnects.
func Connect(url string, logger *slog.Logger) (*Events, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("eventbrief"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats: disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats: reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsutil: connect %s: %w", url, err)
	}
	return NewEvents(nc, logger), nil
}

// NewEvents wraps an existing connection.
func NewEvents(nc *nats.Conn, logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.Default()
	}
	return &Events{nc: nc, log: logger}
}

// FillCompleted publishes ev on SubjectFillCompleted.
func (e *Events) FillCompleted(ctx context.Context, ev FillCompleted) error {
	return Publish(ctx, e.nc, SubjectFillCompleted, ev)
}

// Close flushes pending messages and closes the connection.
func (e *Events) Close() {
	if err := e.nc.Drain(); err != nil {
		e.log.Warn("nats: drain", "err", err)
		e.nc.Close()
	}
}
