package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	"devconsole/domain/events"
	"devconsole/infrastructure/persistence/memory"
	"devconsole/pkg/observability"
)

// MockNotifier records Notify calls.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, kind entities.NotificationKind, from, to valueobjects.UserID) {
	m.Called(ctx, kind, from, to)
}

// MockUserRepository is a mock implementation of ports.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]*entities.User), args.Error(1)
}

func (m *MockUserRepository) AddFollower(ctx context.Context, user, follower valueobjects.UserID) error {
	return m.Called(ctx, user, follower).Error(0)
}

func (m *MockUserRepository) RemoveFollower(ctx context.Context, user, follower valueobjects.UserID) error {
	return m.Called(ctx, user, follower).Error(0)
}

func (m *MockUserRepository) AddFollowing(ctx context.Context, user, followee valueobjects.UserID) error {
	return m.Called(ctx, user, followee).Error(0)
}

func (m *MockUserRepository) RemoveFollowing(ctx context.Context, user, followee valueobjects.UserID) error {
	return m.Called(ctx, user, followee).Error(0)
}

func (m *MockUserRepository) SampleRandom(ctx context.Context, n int, exclude []valueobjects.UserID) ([]*entities.User, error) {
	args := m.Called(ctx, n, exclude)
	return args.Get(0).([]*entities.User), args.Error(1)
}

func (m *MockUserRepository) ListAll(ctx context.Context, exclude []valueobjects.UserID) ([]*entities.User, error) {
	args := m.Called(ctx, exclude)
	return args.Get(0).([]*entities.User), args.Error(1)
}

func (m *MockUserRepository) Search(ctx context.Context, query string) ([]*entities.User, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]*entities.User), args.Error(1)
}

// MockNotificationRepository is a mock implementation of ports.NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Save(ctx context.Context, n *entities.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockNotificationRepository) ListFor(ctx context.Context, user valueobjects.UserID) ([]*entities.Notification, error) {
	args := m.Called(ctx, user)
	return args.Get(0).([]*entities.Notification), args.Error(1)
}

func (m *MockNotificationRepository) DeleteAllFor(ctx context.Context, user valueobjects.UserID) (int, error) {
	args := m.Called(ctx, user)
	return args.Int(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	return m.Called(ctx, evts).Error(0)
}

// fixture wires the services over the in-memory stores.
type fixture struct {
	users         *memory.UserRepository
	posts         *memory.PostRepository
	notifications *memory.NotificationRepository
	notifier      *NotificationService
	profiles      *ProfileResolver
	relationships *RelationshipService
	feeds         *FeedService
	suggestions   *SuggestionService
	content       *ContentService
	clock         *fakeClock
}

// fakeClock ticks one second per call. Services call it from concurrent
// requests, so it is locked.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newFixture(t *testing.T, userIDs ...string) *fixture {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewCollector("test")
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	f := &fixture{
		users:         memory.NewUserRepository(),
		posts:         memory.NewPostRepository(),
		notifications: memory.NewNotificationRepository(),
		clock:         clock,
	}
	f.profiles = NewProfileResolver(f.users, nil, 0, logger, metrics)
	f.notifier = NewNotificationService(f.notifications, f.profiles, nil, logger, metrics, clock.Now)
	f.relationships = NewRelationshipService(f.users, f.notifier, f.profiles, nil, logger, metrics, clock.Now)
	f.feeds = NewFeedService(f.users, f.posts, f.profiles, logger, metrics)
	f.suggestions = NewSuggestionService(f.users, DefaultSuggestionDrawSize, logger)
	f.content = NewContentService(f.users, f.posts, f.notifier, nil, logger, metrics, clock.Now)

	for _, id := range userIDs {
		require.NoError(t, f.users.Create(context.Background(), &entities.User{
			ID:           valueobjects.UserID(id),
			Username:     id,
			FullName:     "Full " + id,
			PasswordHash: "hash-" + id,
		}))
	}
	return f
}

func (f *fixture) user(t *testing.T, id string) *entities.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), valueobjects.UserID(id))
	require.NoError(t, err)
	return u
}

func (f *fixture) addPost(t *testing.T, id, author string, at int64, likers ...string) {
	t.Helper()
	p := &entities.Post{
		ID:        valueobjects.PostID(id),
		AuthorID:  valueobjects.UserID(author),
		Text:      "post " + id,
		Likes:     valueobjects.UserIDSet{},
		Comments:  []entities.Comment{},
		CreatedAt: time.Unix(at, 0).UTC(),
	}
	for _, l := range likers {
		p.Likes = p.Likes.With(valueobjects.UserID(l))
	}
	require.NoError(t, f.posts.Create(context.Background(), p))
}

func postIDs(posts []FeedPost) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = string(p.ID)
	}
	return out
}

