package memory

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// UserRepository is an in-memory identity store for local runs and tests.
// Records are copied in and out so callers never share state with the store.
type UserRepository struct {
	mu         sync.RWMutex
	users      map[valueobjects.UserID]*entities.User
	byUsername map[string]valueobjects.UserID
}

// NewUserRepository creates an empty in-memory identity store
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:      make(map[valueobjects.UserID]*entities.User),
		byUsername: make(map[string]valueobjects.UserID),
	}
}

// Create stores a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil || user.ID.IsZero() {
		return pkgerrors.NewValidationError("user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, exists := r.users[user.ID]; exists {
		return pkgerrors.NewConflictError("user already exists")
	}
	if _, taken := r.byUsername[key]; taken {
		return pkgerrors.NewConflictError("username is already taken")
	}

	r.users[user.ID] = user.Clone()
	r.byUsername[key] = user.ID
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	return u.Clone(), nil
}

// GetByUsername retrieves a user by username, ignoring case
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	return r.users[id].Clone(), nil
}

// GetByIDs returns the users that exist among ids
func (r *UserRepository) GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.User, 0, len(ids))
	seen := make(map[valueobjects.UserID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := r.users[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (r *UserRepository) AddFollower(ctx context.Context, user, follower valueobjects.UserID) error {
	return r.mutate(user, func(u *entities.User) { u.Followers = u.Followers.With(follower) })
}

func (r *UserRepository) RemoveFollower(ctx context.Context, user, follower valueobjects.UserID) error {
	return r.mutate(user, func(u *entities.User) { u.Followers = u.Followers.Without(follower) })
}

func (r *UserRepository) AddFollowing(ctx context.Context, user, followee valueobjects.UserID) error {
	return r.mutate(user, func(u *entities.User) { u.Following = u.Following.With(followee) })
}

func (r *UserRepository) RemoveFollowing(ctx context.Context, user, followee valueobjects.UserID) error {
	return r.mutate(user, func(u *entities.User) { u.Following = u.Following.Without(followee) })
}

func (r *UserRepository) mutate(id valueobjects.UserID, fn func(u *entities.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return pkgerrors.NewNotFoundError("user")
	}
	fn(u)
	return nil
}

// SampleRandom draws up to n users at random, skipping exclude
func (r *UserRepository) SampleRandom(ctx context.Context, n int, exclude []valueobjects.UserID) ([]*entities.User, error) {
	candidates, _ := r.ListAll(ctx, exclude)
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates, nil
}

// ListAll returns every user not in exclude, ordered by username
func (r *UserRepository) ListAll(ctx context.Context, exclude []valueobjects.UserID) ([]*entities.User, error) {
	skip := valueobjects.UserIDSet(exclude)

	r.mu.RLock()
	out := make([]*entities.User, 0, len(r.users))
	for id, u := range r.users {
		if skip.Contains(id) {
			continue
		}
		out = append(out, u.Clone())
	}
	r.mu.RUnlock()

	sortByUsername(out)
	return out, nil
}

// Search matches username or full name case-insensitively
func (r *UserRepository) Search(ctx context.Context, query string) ([]*entities.User, error) {
	q := strings.ToLower(query)

	r.mu.RLock()
	var out []*entities.User
	for _, u := range r.users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.FullName), q) {
			out = append(out, u.Clone())
		}
	}
	r.mu.RUnlock()

	sortByUsername(out)
	return out, nil
}

func sortByUsername(users []*entities.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}
