package gormstore

import (
	"time"

	"devconsole/domain/core/entities"
)

type userModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	Username      string `gorm:"size:64;not null"`
	UsernameLower string `gorm:"size:64;not null;uniqueIndex"`
	FullName      string `gorm:"size:128"`
	Email         string `gorm:"size:256"`
	PasswordHash  string
	ProfileImg    string
	CoverImg      string
	Bio           string
	Link          string
	CreatedAt     time.Time
}

func (userModel) TableName() string { return "users" }

// followModel is one directed edge. Both adjacency views of a user are
// projections of this table.
type followModel struct {
	FollowerID string `gorm:"primaryKey;size:64"`
	FolloweeID string `gorm:"primaryKey;size:64;index"`
	CreatedAt  time.Time
}

func (followModel) TableName() string { return "follows" }

type postModel struct {
	ID        string           `gorm:"primaryKey;size:64"`
	AuthorID  string           `gorm:"size:64;not null;index"`
	Text      string           `gorm:"type:text"`
	Blocks    []entities.Block `gorm:"type:text;serializer:json"`
	CreatedAt time.Time        `gorm:"index"`
}

func (postModel) TableName() string { return "posts" }

type likeModel struct {
	PostID string `gorm:"primaryKey;size:64"`
	UserID string `gorm:"primaryKey;size:64;index"`
}

func (likeModel) TableName() string { return "post_likes" }

type commentModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	PostID    string `gorm:"size:64;not null;index"`
	AuthorID  string `gorm:"size:64;not null"`
	Text      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (commentModel) TableName() string { return "comments" }

type notificationModel struct {
	Seq       uint   `gorm:"primaryKey;autoIncrement"`
	ID        string `gorm:"size:64;not null;uniqueIndex"`
	Kind      string `gorm:"size:16;not null"`
	FromID    string `gorm:"size:64;not null"`
	ToID      string `gorm:"size:64;not null;index"`
	CreatedAt time.Time
}

func (notificationModel) TableName() string { return "notifications" }

func allModels() []interface{} {
	return []interface{}{
		&userModel{}, &followModel{}, &postModel{}, &likeModel{}, &commentModel{}, &notificationModel{},
	}
}
