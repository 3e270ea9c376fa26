package gormstore

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// UserRepository stores users and the follows table. It implements both
// ports.UserRepository and ports.EdgeWriter.
type UserRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	m := userModel{
		ID:            user.ID.String(),
		Username:      user.Username,
		UsernameLower: strings.ToLower(user.Username),
		FullName:      user.FullName,
		Email:         user.Email,
		PasswordHash:  user.PasswordHash,
		ProfileImg:    user.ProfileImg,
		CoverImg:      user.CoverImg,
		Bio:           user.Bio,
		Link:          user.Link,
		CreatedAt:     user.CreatedAt,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userModel{}).
			Where("id = ? OR username_lower = ?", m.ID, m.UsernameLower).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return pkgerrors.NewConflictError("user or username already exists")
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return r.insertEdges(tx, user.ID, user.Followers, user.Following)
	})
	if err != nil {
		if pkgerrors.IsConflict(err) {
			return err
		}
		if isDuplicate(err) {
			return pkgerrors.NewConflictError("user or username already exists")
		}
		return pkgerrors.NewDatabaseError("create user", err)
	}

	user.CreatedAt = m.CreatedAt
	r.logger.Info("User created", zap.String("userID", m.ID), zap.String("username", m.Username))
	return nil
}

func (r *UserRepository) insertEdges(tx *gorm.DB, id valueobjects.UserID, followers, following valueobjects.UserIDSet) error {
	edges := make([]followModel, 0, len(followers)+len(following))
	for _, f := range followers {
		edges = append(edges, followModel{FollowerID: f.String(), FolloweeID: id.String()})
	}
	for _, f := range following {
		edges = append(edges, followModel{FollowerID: id.String(), FolloweeID: f.String()})
	}
	if len(edges) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	return r.getOne(ctx, "id = ?", id.String())
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return r.getOne(ctx, "username_lower = ?", strings.ToLower(username))
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*entities.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NewNotFoundError("user")
		}
		return nil, pkgerrors.NewDatabaseError("get user", err)
	}

	users, err := r.hydrate(ctx, []userModel{m})
	if err != nil {
		return nil, err
	}
	return users[0], nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error) {
	if len(ids) == 0 {
		return []*entities.User{}, nil
	}

	var models []userModel
	if err := r.db.WithContext(ctx).Where("id IN ?", idStrings(ids)).Find(&models).Error; err != nil {
		return nil, pkgerrors.NewDatabaseError("get users", err)
	}
	return r.hydrate(ctx, models)
}

// hydrate attaches both adjacency sets with a single query over follows
func (r *UserRepository) hydrate(ctx context.Context, models []userModel) ([]*entities.User, error) {
	users := make([]*entities.User, len(models))
	byID := make(map[string]*entities.User, len(models))
	ids := make([]string, len(models))
	for i, m := range models {
		users[i] = &entities.User{
			ID:           valueobjects.UserID(m.ID),
			Username:     m.Username,
			FullName:     m.FullName,
			Email:        m.Email,
			PasswordHash: m.PasswordHash,
			ProfileImg:   m.ProfileImg,
			CoverImg:     m.CoverImg,
			Bio:          m.Bio,
			Link:         m.Link,
			Followers:    valueobjects.UserIDSet{},
			Following:    valueobjects.UserIDSet{},
			CreatedAt:    m.CreatedAt.UTC(),
		}
		byID[m.ID] = users[i]
		ids[i] = m.ID
	}
	if len(ids) == 0 {
		return users, nil
	}

	var edges []followModel
	if err := r.db.WithContext(ctx).
		Where("follower_id IN ? OR followee_id IN ?", ids, ids).
		Order("created_at").
		Find(&edges).Error; err != nil {
		return nil, pkgerrors.NewDatabaseError("load follows", err)
	}
	for _, e := range edges {
		if u, ok := byID[e.FollowerID]; ok {
			u.Following = u.Following.With(valueobjects.UserID(e.FolloweeID))
		}
		if u, ok := byID[e.FolloweeID]; ok {
			u.Followers = u.Followers.With(valueobjects.UserID(e.FollowerID))
		}
	}
	return users, nil
}

// The four single-sided operations map onto the same edge row, so a retried
// toggle converges regardless of which side failed.

func (r *UserRepository) AddFollower(ctx context.Context, user, follower valueobjects.UserID) error {
	return r.addEdge(ctx, user, follower, user)
}

func (r *UserRepository) RemoveFollower(ctx context.Context, user, follower valueobjects.UserID) error {
	return r.removeEdge(ctx, user, follower, user)
}

func (r *UserRepository) AddFollowing(ctx context.Context, user, followee valueobjects.UserID) error {
	return r.addEdge(ctx, user, user, followee)
}

func (r *UserRepository) RemoveFollowing(ctx context.Context, user, followee valueobjects.UserID) error {
	return r.removeEdge(ctx, user, user, followee)
}

func (r *UserRepository) addEdge(ctx context.Context, owner, follower, followee valueobjects.UserID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, owner); err != nil {
			return err
		}
		return r.upsertEdge(tx, follower, followee)
	})
}

func (r *UserRepository) removeEdge(ctx context.Context, owner, follower, followee valueobjects.UserID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, owner); err != nil {
			return err
		}
		return r.deleteEdge(tx, follower, followee)
	})
}

// Follow writes the edge after checking both users exist, in one transaction
func (r *UserRepository) Follow(ctx context.Context, actor, target valueobjects.UserID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, actor, target); err != nil {
			return err
		}
		return r.upsertEdge(tx, actor, target)
	})
}

// Unfollow removes the edge after checking both users exist
func (r *UserRepository) Unfollow(ctx context.Context, actor, target valueobjects.UserID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, actor, target); err != nil {
			return err
		}
		return r.deleteEdge(tx, actor, target)
	})
}

func (r *UserRepository) upsertEdge(tx *gorm.DB, follower, followee valueobjects.UserID) error {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&followModel{FollowerID: follower.String(), FolloweeID: followee.String()}).Error
	if err != nil {
		r.logger.Error("Failed to write follow edge",
			zap.String("userID", follower.String()),
			zap.String("targetID", followee.String()),
			zap.Error(err),
		)
		return pkgerrors.NewDatabaseError("insert follow", err)
	}
	return nil
}

func (r *UserRepository) deleteEdge(tx *gorm.DB, follower, followee valueobjects.UserID) error {
	err := tx.Where("follower_id = ? AND followee_id = ?", follower.String(), followee.String()).
		Delete(&followModel{}).Error
	if err != nil {
		return pkgerrors.NewDatabaseError("delete follow", err)
	}
	return nil
}

func requireUsers(tx *gorm.DB, ids ...valueobjects.UserID) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id.String()] = true
	}

	var count int64
	if err := tx.Model(&userModel{}).Where("id IN ?", keys(want)).Count(&count).Error; err != nil {
		return pkgerrors.NewDatabaseError("check users", err)
	}
	if int(count) != len(want) {
		return pkgerrors.NewNotFoundError("user")
	}
	return nil
}

// SampleRandom lets the database pick rows at random
func (r *UserRepository) SampleRandom(ctx context.Context, n int, exclude []valueobjects.UserID) ([]*entities.User, error) {
	if n <= 0 {
		return []*entities.User{}, nil
	}

	q := r.db.WithContext(ctx).Model(&userModel{})
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", idStrings(exclude))
	}

	var models []userModel
	if err := q.Order("RANDOM()").Limit(n).Find(&models).Error; err != nil {
		return nil, pkgerrors.NewDatabaseError("sample users", err)
	}
	return r.hydrate(ctx, models)
}

func (r *UserRepository) ListAll(ctx context.Context, exclude []valueobjects.UserID) ([]*entities.User, error) {
	q := r.db.WithContext(ctx).Model(&userModel{})
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", idStrings(exclude))
	}

	var models []userModel
	if err := q.Order("username_lower").Find(&models).Error; err != nil {
		return nil, pkgerrors.NewDatabaseError("list users", err)
	}
	return r.hydrate(ctx, models)
}

func (r *UserRepository) Search(ctx context.Context, query string) ([]*entities.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var models []userModel
	if err := r.db.WithContext(ctx).
		Where(`username_lower LIKE ? ESCAPE '\' OR LOWER(full_name) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("username_lower").
		Find(&models).Error; err != nil {
		return nil, pkgerrors.NewDatabaseError("search users", err)
	}
	return r.hydrate(ctx, models)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func idStrings(ids []valueobjects.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
