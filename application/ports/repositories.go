package ports

import (
	"context"
	"time"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/feed"
	"devconsole/domain/core/valueobjects"
	"devconsole/domain/events"
)

// UserRepository is the identity store. The four set operations each touch a
// single record and are idempotent: adding a present member or removing an
// absent one succeeds without change. They return a NotFound error when the
// record being written does not exist.
type UserRepository interface {
	// Create stores a new user. Duplicate IDs or usernames are a Conflict.
	Create(ctx context.Context, user *entities.User) error

	GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)

	// GetByIDs returns the users that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error)

	AddFollower(ctx context.Context, user, follower valueobjects.UserID) error
	RemoveFollower(ctx context.Context, user, follower valueobjects.UserID) error
	AddFollowing(ctx context.Context, user, followee valueobjects.UserID) error
	RemoveFollowing(ctx context.Context, user, followee valueobjects.UserID) error

	// SampleRandom draws up to n users uniformly at random, never returning
	// any of exclude.
	SampleRandom(ctx context.Context, n int, exclude []valueobjects.UserID) ([]*entities.User, error)

	// ListAll returns every user not in exclude.
	ListAll(ctx context.Context, exclude []valueobjects.UserID) ([]*entities.User, error)

	// Search matches a case-insensitive substring of username or full name.
	Search(ctx context.Context, query string) ([]*entities.User, error)
}

// EdgeWriter is implemented by identity stores that can write both sides of
// a follow edge atomically. A concurrent modification of either record is
// reported as a Conflict.
type EdgeWriter interface {
	Follow(ctx context.Context, actor, target valueobjects.UserID) error
	Unfollow(ctx context.Context, actor, target valueobjects.UserID) error
}

// PostRepository is the content store.
type PostRepository interface {
	Create(ctx context.Context, post *entities.Post) error
	GetByID(ctx context.Context, id valueobjects.PostID) (*entities.Post, error)
	Delete(ctx context.Context, id valueobjects.PostID) error

	// Query returns every post matching filter. Order is unspecified; the
	// feed service sorts.
	Query(ctx context.Context, filter feed.Filter) ([]*entities.Post, error)

	// ToggleLike flips actor's membership in the post's like set and returns
	// whether the post is now liked along with the updated post.
	ToggleLike(ctx context.Context, id valueobjects.PostID, actor valueobjects.UserID) (bool, *entities.Post, error)

	// AppendComment adds comment at the end of the post's comment list.
	AppendComment(ctx context.Context, id valueobjects.PostID, comment entities.Comment) (*entities.Post, error)
}

// NotificationRepository stores notifications. There is no update.
type NotificationRepository interface {
	Save(ctx context.Context, n *entities.Notification) error

	// ListFor returns notifications addressed to user, newest first.
	ListFor(ctx context.Context, user valueobjects.UserID) ([]*entities.Notification, error)

	// DeleteAllFor removes every notification addressed to user and reports
	// how many were removed.
	DeleteAllFor(ctx context.Context, user valueobjects.UserID) (int, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache stores JSON-encodable values. A miss is (false, nil).
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
