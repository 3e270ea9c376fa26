package entities

import (
	"time"

	"devconsole/domain/core/valueobjects"
)

// NotificationKind is what triggered a notification.
type NotificationKind string

const (
	NotificationFollow NotificationKind = "follow"
	NotificationLike   NotificationKind = "like"
)

// Notification is immutable once written; it is only ever removed by
// clearing all notifications addressed to a user.
type Notification struct {
	ID        valueobjects.NotificationID `json:"id"`
	Kind      NotificationKind            `json:"type"`
	From      valueobjects.UserID         `json:"from"`
	To        valueobjects.UserID         `json:"to"`
	CreatedAt time.Time                   `json:"createdAt"`
}

// NewNotification builds a notification with a fresh ID.
func NewNotification(kind NotificationKind, from, to valueobjects.UserID, now time.Time) *Notification {
	return &Notification{
		ID:        valueobjects.NewNotificationID(),
		Kind:      kind,
		From:      from,
		To:        to,
		CreatedAt: now.UTC(),
	}
}

// NotificationView is a notification with its sender resolved.
type NotificationView struct {
	ID        valueobjects.NotificationID `json:"id"`
	Kind      NotificationKind            `json:"type"`
	From      PublicProfile               `json:"from"`
	To        valueobjects.UserID         `json:"to"`
	CreatedAt time.Time                   `json:"createdAt"`
}
