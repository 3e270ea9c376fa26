package valueobjects

import (
	"github.com/google/uuid"
)

// UserID is an opaque account identifier. Identity is issued upstream; the
// graph only compares IDs for equality.
type UserID string

// PostID identifies a post.
type PostID string

// NotificationID identifies a notification record.
type NotificationID string

// NewUserID creates a new random UserID
func NewUserID() UserID { return UserID(uuid.New().String()) }

// NewPostID creates a new random PostID
func NewPostID() PostID { return PostID(uuid.New().String()) }

// NewNotificationID creates a new random NotificationID
func NewNotificationID() NotificationID { return NotificationID(uuid.New().String()) }

func (id UserID) String() string         { return string(id) }
func (id UserID) IsZero() bool           { return id == "" }
func (id PostID) String() string         { return string(id) }
func (id PostID) IsZero() bool           { return id == "" }
func (id NotificationID) String() string { return string(id) }
