package services

import (
	"context"

	"go.uber.org/zap"

	"devconsole/application/ports"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	"devconsole/domain/events"
	"devconsole/pkg/observability"
)

// NotificationService appends, lists and clears notifications. It is its own
// failure domain: mutations that trigger a notification go through Notify,
// which never reports an error back to them.
type NotificationService struct {
	repo      ports.NotificationRepository
	profiles  *ProfileResolver
	publisher ports.EventPublisher
	logger    *zap.Logger
	metrics   *observability.Collector
	now       Clock
}

// NewNotificationService creates a notification service. publisher may be nil.
func NewNotificationService(
	repo ports.NotificationRepository,
	profiles *ProfileResolver,
	publisher ports.EventPublisher,
	logger *zap.Logger,
	metrics *observability.Collector,
	now Clock,
) *NotificationService {
	if now == nil {
		now = SystemClock
	}
	return &NotificationService{
		repo:      repo,
		profiles:  profiles,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		now:       now,
	}
}

// Emit stores a notification from → to and then announces it on the event
// bus. Only the store write can fail the call.
func (s *NotificationService) Emit(ctx context.Context, kind entities.NotificationKind, from, to valueobjects.UserID) error {
	n := entities.NewNotification(kind, from, to, s.now())
	if err := s.repo.Save(ctx, n); err != nil {
		return err
	}

	s.metrics.RecordNotification(string(kind), "stored")
	publishEvent(ctx, s.publisher, s.logger, s.metrics,
		events.NewNotificationCreated(n.ID, string(kind), from, to, n.CreatedAt))
	return nil
}

// Notify is Emit with the error logged and discarded.
func (s *NotificationService) Notify(ctx context.Context, kind entities.NotificationKind, from, to valueobjects.UserID) {
	if err := s.Emit(ctx, kind, from, to); err != nil {
		s.metrics.RecordNotification(string(kind), "dropped")
		s.logger.Warn("Dropping notification",
			zap.String("kind", string(kind)),
			zap.String("fromID", from.String()),
			zap.String("toID", to.String()),
			zap.Error(err),
		)
	}
}

// ListFor returns the user's notifications newest first with senders resolved.
func (s *NotificationService) ListFor(ctx context.Context, user valueobjects.UserID) (views []entities.NotificationView, err error) {
	ctx, span := observability.StartSpan(ctx, "NotificationService.ListFor")
	defer func() { observability.EndSpan(span, err) }()

	notifications, err := s.repo.ListFor(ctx, user)
	if err != nil {
		return nil, err
	}

	senders := make([]valueobjects.UserID, len(notifications))
	for i, n := range notifications {
		senders[i] = n.From
	}
	profiles, err := s.profiles.Resolve(ctx, senders)
	if err != nil {
		return nil, err
	}

	views = make([]entities.NotificationView, len(notifications))
	for i, n := range notifications {
		views[i] = entities.NotificationView{
			ID:        n.ID,
			Kind:      n.Kind,
			From:      profiles[n.From],
			To:        n.To,
			CreatedAt: n.CreatedAt,
		}
	}
	return views, nil
}

// ClearAll deletes every notification addressed to user.
func (s *NotificationService) ClearAll(ctx context.Context, user valueobjects.UserID) (int, error) {
	removed, err := s.repo.DeleteAllFor(ctx, user)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Notifications cleared", zap.String("userID", user.String()), zap.Int("count", removed))
	return removed, nil
}
