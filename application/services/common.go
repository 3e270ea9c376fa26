package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"devconsole/application/ports"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	"devconsole/domain/events"
	"devconsole/pkg/observability"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// Notifier records a notification without reporting failure to the caller.
// The graph and like mutations depend on this instead of the full
// notification service.
type Notifier interface {
	Notify(ctx context.Context, kind entities.NotificationKind, from, to valueobjects.UserID)
}

// publishEvent hands an event to the bus after the owning write committed.
// Failures are logged and counted but never returned.
func publishEvent(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, metrics *observability.Collector, event events.DomainEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		metrics.RecordEvent(event.GetEventType(), "failed")
		logger.Warn("Failed to publish domain event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err),
		)
		return
	}
	metrics.RecordEvent(event.GetEventType(), "published")
}
