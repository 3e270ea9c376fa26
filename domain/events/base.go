package events

import (
	"time"

	"devconsole/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events.
// Events describe something that already happened and are published
// after the owning write has been stored.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	TypeUserFollowed        = "user.followed"
	TypeUserUnfollowed      = "user.unfollowed"
	TypePostCreated         = "post.created"
	TypePostDeleted         = "post.deleted"
	TypePostLiked           = "post.liked"
	TypePostUnliked         = "post.unliked"
	TypeCommentAdded        = "post.commented"
	TypeNotificationCreated = "notification.created"
)

func base(aggregateID, eventType string, ts time.Time) BaseEvent {
	return BaseEvent{AggregateID: aggregateID, EventType: eventType, Timestamp: ts, Version: 1}
}

// Follow graph events

// FollowToggled is raised after a follow or unfollow has been written.
type FollowToggled struct {
	BaseEvent
	ActorID  valueobjects.UserID `json:"actor_id"`
	TargetID valueobjects.UserID `json:"target_id"`
}

func NewUserFollowed(actor, target valueobjects.UserID, ts time.Time) FollowToggled {
	return FollowToggled{BaseEvent: base(actor.String(), TypeUserFollowed, ts), ActorID: actor, TargetID: target}
}

func NewUserUnfollowed(actor, target valueobjects.UserID, ts time.Time) FollowToggled {
	return FollowToggled{BaseEvent: base(actor.String(), TypeUserUnfollowed, ts), ActorID: actor, TargetID: target}
}

// Post events

// PostChanged covers creation and deletion of a post.
type PostChanged struct {
	BaseEvent
	PostID   valueobjects.PostID `json:"post_id"`
	AuthorID valueobjects.UserID `json:"author_id"`
}

func NewPostCreated(post valueobjects.PostID, author valueobjects.UserID, ts time.Time) PostChanged {
	return PostChanged{BaseEvent: base(post.String(), TypePostCreated, ts), PostID: post, AuthorID: author}
}

func NewPostDeleted(post valueobjects.PostID, author valueobjects.UserID, ts time.Time) PostChanged {
	return PostChanged{BaseEvent: base(post.String(), TypePostDeleted, ts), PostID: post, AuthorID: author}
}

// LikeToggled is raised after a like or unlike has been written.
type LikeToggled struct {
	BaseEvent
	PostID   valueobjects.PostID `json:"post_id"`
	ActorID  valueobjects.UserID `json:"actor_id"`
	AuthorID valueobjects.UserID `json:"author_id"`
}

func NewPostLiked(post valueobjects.PostID, actor, author valueobjects.UserID, ts time.Time) LikeToggled {
	return LikeToggled{BaseEvent: base(post.String(), TypePostLiked, ts), PostID: post, ActorID: actor, AuthorID: author}
}

func NewPostUnliked(post valueobjects.PostID, actor, author valueobjects.UserID, ts time.Time) LikeToggled {
	return LikeToggled{BaseEvent: base(post.String(), TypePostUnliked, ts), PostID: post, ActorID: actor, AuthorID: author}
}

// CommentAdded is raised after a comment is appended.
type CommentAdded struct {
	BaseEvent
	PostID  valueobjects.PostID `json:"post_id"`
	ActorID valueobjects.UserID `json:"actor_id"`
}

func NewCommentAdded(post valueobjects.PostID, actor valueobjects.UserID, ts time.Time) CommentAdded {
	return CommentAdded{BaseEvent: base(post.String(), TypeCommentAdded, ts), PostID: post, ActorID: actor}
}

// Notification events

// NotificationCreated is raised after a notification record is stored, so
// push channels can deliver it.
type NotificationCreated struct {
	BaseEvent
	NotificationID valueobjects.NotificationID `json:"notification_id"`
	Kind           string                      `json:"kind"`
	FromID         valueobjects.UserID         `json:"from_id"`
	ToID           valueobjects.UserID         `json:"to_id"`
}

func NewNotificationCreated(id valueobjects.NotificationID, kind string, from, to valueobjects.UserID, ts time.Time) NotificationCreated {
	return NotificationCreated{
		BaseEvent:      base(id.String(), TypeNotificationCreated, ts),
		NotificationID: id,
		Kind:           kind,
		FromID:         from,
		ToID:           to,
	}
}
