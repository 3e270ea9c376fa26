package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"devconsole/domain/events"
	pkgerrors "devconsole/pkg/errors"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends domain events as JSON on subjects of the form
// <prefix>.<event type>, e.g. devconsole.user.followed.
type Publisher struct {
	conn   Conn
	prefix string
	logger *zap.Logger
}

// Connect dials the NATS server with reconnects enabled.
func Connect(url, clientName string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NewPublisher creates a publisher over an open connection
func NewPublisher(conn Conn, prefix string, logger *zap.Logger) *Publisher {
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(event events.DomainEvent) string {
	if p.prefix == "" {
		return event.GetEventType()
	}
	return p.prefix + "." + event.GetEventType()
}

// Publish sends a single event
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", event.GetEventType(), err)
	}

	subject := p.Subject(event)
	if err := p.conn.Publish(subject, data); err != nil {
		return pkgerrors.NewExternalError("nats", err).
			WithDetails(map[string]interface{}{"subject": subject})
	}

	p.logger.Debug("Event published to NATS", zap.String("subject", subject))
	return nil
}

// PublishBatch sends events one at a time, stopping at the first failure
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, e := range domainEvents {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
