// Package messaging holds the event bus adapters and the wrappers shared by
// all of them.
package messaging

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"devconsole/application/ports"
	"devconsole/domain/events"
	pkgerrors "devconsole/pkg/errors"
)

// BreakerConfig holds circuit breaker settings for an event bus.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns settings that open after most of at least
// five recent publishes have failed.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerPublisher stops calling a failing bus for a while so a broken
// downstream does not add latency to every mutation.
type BreakerPublisher struct {
	next ports.EventPublisher
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerPublisher wraps next with a circuit breaker
func NewBreakerPublisher(next ports.EventPublisher, cfg BreakerConfig, logger *zap.Logger) *BreakerPublisher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Event bus circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerPublisher{next: next, cb: cb}
}

func (b *BreakerPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return b.execute(func() error { return b.next.Publish(ctx, event) })
}

func (b *BreakerPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	return b.execute(func() error { return b.next.PublishBatch(ctx, evts) })
}

// State reports the breaker state, mainly for readiness checks.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerPublisher) execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return pkgerrors.NewUnavailableError("event bus").WithCause(err)
	}
	return err
}

// LogPublisher is used when no event bus is configured. It only logs.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Debug("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
	)
	return nil
}

func (p *LogPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for _, e := range evts {
		_ = p.Publish(ctx, e)
	}
	return nil
}
