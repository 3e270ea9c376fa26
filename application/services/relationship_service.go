package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"devconsole/application/ports"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	"devconsole/domain/events"
	"devconsole/pkg/observability"
	pkgerrors "devconsole/pkg/errors"
)

// FollowOutcome is the state of the edge after a toggle.
type FollowOutcome string

const (
	Followed   FollowOutcome = "FOLLOWED"
	Unfollowed FollowOutcome = "UNFOLLOWED"
)

// RelationshipService maintains the follow graph. Each edge lives twice,
// once in the actor's Following set and once in the target's Followers set.
type RelationshipService struct {
	users     ports.UserRepository
	notifier  Notifier
	profiles  *ProfileResolver
	publisher ports.EventPublisher
	logger    *zap.Logger
	metrics   *observability.Collector
	now       Clock
}

// NewRelationshipService creates a relationship service. publisher may be nil.
func NewRelationshipService(
	users ports.UserRepository,
	notifier Notifier,
	profiles *ProfileResolver,
	publisher ports.EventPublisher,
	logger *zap.Logger,
	metrics *observability.Collector,
	now Clock,
) *RelationshipService {
	if now == nil {
		now = SystemClock
	}
	return &RelationshipService{
		users:     users,
		notifier:  notifier,
		profiles:  profiles,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		now:       now,
	}
}

// ToggleFollow follows target if actor does not follow them yet and
// unfollows otherwise. The current state is read from actor.Following.
//
// Without an EdgeWriter the two sides are separate writes. actor.Following
// is always written last: if the call fails in between, actor's view still
// shows the old state and repeating the toggle finishes the same transition.
func (s *RelationshipService) ToggleFollow(ctx context.Context, actor, target valueobjects.UserID) (outcome FollowOutcome, err error) {
	ctx, span := observability.StartSpan(ctx, "RelationshipService.ToggleFollow",
		attribute.String("actor.id", actor.String()),
		attribute.String("target.id", target.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if actor == target {
		return "", pkgerrors.NewSelfReferenceError("follow/unfollow").WithCode(pkgerrors.CodeSelfFollow)
	}

	actorRec, err := s.users.GetByID(ctx, actor)
	if err != nil {
		return "", err
	}
	if _, err := s.users.GetByID(ctx, target); err != nil {
		return "", err
	}

	// a failed second write still leaves the first side changed
	defer s.profiles.Invalidate(ctx, actor, target)

	if actorRec.IsFollowing(target) {
		if err := s.unfollow(ctx, actor, target); err != nil {
			return "", err
		}
		outcome = Unfollowed
	} else {
		if err := s.follow(ctx, actor, target); err != nil {
			return "", err
		}
		outcome = Followed
	}

	s.metrics.RecordFollow(string(outcome))
	s.logger.Info("Follow toggled",
		zap.String("userID", actor.String()),
		zap.String("targetID", target.String()),
		zap.String("outcome", string(outcome)),
	)

	ts := s.now()
	if outcome == Followed {
		s.notifier.Notify(ctx, entities.NotificationFollow, actor, target)
		publishEvent(ctx, s.publisher, s.logger, s.metrics, events.NewUserFollowed(actor, target, ts))
	} else {
		publishEvent(ctx, s.publisher, s.logger, s.metrics, events.NewUserUnfollowed(actor, target, ts))
	}

	return outcome, nil
}

func (s *RelationshipService) follow(ctx context.Context, actor, target valueobjects.UserID) error {
	if ew, ok := s.users.(ports.EdgeWriter); ok {
		return ew.Follow(ctx, actor, target)
	}
	if err := s.users.AddFollower(ctx, target, actor); err != nil {
		return err
	}
	return s.users.AddFollowing(ctx, actor, target)
}

func (s *RelationshipService) unfollow(ctx context.Context, actor, target valueobjects.UserID) error {
	if ew, ok := s.users.(ports.EdgeWriter); ok {
		return ew.Unfollow(ctx, actor, target)
	}
	if err := s.users.RemoveFollower(ctx, target, actor); err != nil {
		return err
	}
	return s.users.RemoveFollowing(ctx, actor, target)
}

// ListRelations returns the public profiles on one side of a user's graph.
func (s *RelationshipService) ListRelations(ctx context.Context, username string, kind entities.RelationKind) ([]entities.PublicProfile, error) {
	if !kind.Valid() {
		return nil, pkgerrors.NewValidationError("type must be followers or following")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	related, err := s.users.GetByIDs(ctx, user.Relations(kind))
	if err != nil {
		return nil, err
	}
	return entities.PublicProfiles(related), nil
}
