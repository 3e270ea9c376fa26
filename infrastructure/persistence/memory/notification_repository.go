package memory

import (
	"context"
	"sort"
	"sync"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
)

// NotificationRepository is an in-memory notification store keyed by recipient
type NotificationRepository struct {
	mu    sync.RWMutex
	byRcp map[valueobjects.UserID][]*entities.Notification
}

// NewNotificationRepository creates an empty in-memory notification store
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{byRcp: make(map[valueobjects.UserID][]*entities.Notification)}
}

func (r *NotificationRepository) Save(ctx context.Context, n *entities.Notification) error {
	c := *n

	r.mu.Lock()
	r.byRcp[n.To] = append(r.byRcp[n.To], &c)
	r.mu.Unlock()
	return nil
}

func (r *NotificationRepository) ListFor(ctx context.Context, user valueobjects.UserID) ([]*entities.Notification, error) {
	r.mu.RLock()
	stored := r.byRcp[user]
	out := make([]*entities.Notification, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		c := *stored[i]
		out = append(out, &c)
	}
	r.mu.RUnlock()

	// Walking backwards first means equal timestamps keep latest-written first.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *NotificationRepository) DeleteAllFor(ctx context.Context, user valueobjects.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.byRcp[user])
	delete(r.byRcp, user)
	return n, nil
}
