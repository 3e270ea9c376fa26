package gormstore

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/feed"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// PostRepository stores posts with likes and comments in their own tables
type PostRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPostRepository creates a new PostRepository
func NewPostRepository(db *gorm.DB, logger *zap.Logger) *PostRepository {
	return &PostRepository{db: db, logger: logger}
}

func (r *PostRepository) Create(ctx context.Context, post *entities.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&postModel{
			ID:        post.ID.String(),
			AuthorID:  post.AuthorID.String(),
			Text:      post.Text,
			Blocks:    post.Blocks,
			CreatedAt: post.CreatedAt,
		}).Error; err != nil {
			return err
		}

		if len(post.Likes) > 0 {
			likes := make([]likeModel, len(post.Likes))
			for i, u := range post.Likes {
				likes[i] = likeModel{PostID: post.ID.String(), UserID: u.String()}
			}
			if err := tx.Create(&likes).Error; err != nil {
				return err
			}
		}
		if len(post.Comments) > 0 {
			comments := make([]commentModel, len(post.Comments))
			for i, c := range post.Comments {
				comments[i] = toCommentModel(post.ID, c)
			}
			if err := tx.Create(&comments).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicate(err) {
			return pkgerrors.NewConflictError("post already exists")
		}
		return pkgerrors.NewDatabaseError("create post", err)
	}
	return nil
}

func toCommentModel(post valueobjects.PostID, c entities.Comment) commentModel {
	return commentModel{PostID: post.String(), AuthorID: c.AuthorID.String(), Text: c.Text, CreatedAt: c.CreatedAt}
}

func (r *PostRepository) GetByID(ctx context.Context, id valueobjects.PostID) (*entities.Post, error) {
	return r.load(r.db.WithContext(ctx), id)
}

func (r *PostRepository) load(db *gorm.DB, id valueobjects.PostID) (*entities.Post, error) {
	var m postModel
	if err := db.Where("id = ?", id.String()).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NewNotFoundError("post")
		}
		return nil, pkgerrors.NewDatabaseError("get post", err)
	}

	posts, err := hydratePosts(db, []postModel{m})
	if err != nil {
		return nil, err
	}
	return posts[0], nil
}

func (r *PostRepository) Delete(ctx context.Context, id valueobjects.PostID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id.String()).Delete(&postModel{})
		if res.Error != nil {
			return pkgerrors.NewDatabaseError("delete post", res.Error)
		}
		if res.RowsAffected == 0 {
			return pkgerrors.NewNotFoundError("post")
		}
		if err := tx.Where("post_id = ?", id.String()).Delete(&likeModel{}).Error; err != nil {
			return pkgerrors.NewDatabaseError("delete likes", err)
		}
		if err := tx.Where("post_id = ?", id.String()).Delete(&commentModel{}).Error; err != nil {
			return pkgerrors.NewDatabaseError("delete comments", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Post deleted", zap.String("postID", id.String()))
	return nil
}

func (r *PostRepository) Query(ctx context.Context, filter feed.Filter) ([]*entities.Post, error) {
	q := r.db.WithContext(ctx).Model(&postModel{})
	if filter.Authors != nil {
		if len(filter.Authors) == 0 {
			return []*entities.Post{}, nil
		}
		q = q.Where("author_id IN ?", idStrings(filter.Authors))
	}
	if !filter.LikedBy.IsZero() {
		q = q.Where("id IN (?)", r.db.Model(&likeModel{}).Select("post_id").Where("user_id = ?", filter.LikedBy.String()))
	}

	var models []postModel
	if err := q.Find(&models).Error; err != nil {
		return nil, pkgerrors.NewDatabaseError("query posts", err)
	}
	return hydratePosts(r.db.WithContext(ctx), models)
}

// ToggleLike removes the like if present and inserts it otherwise, in one
// transaction
func (r *PostRepository) ToggleLike(ctx context.Context, id valueobjects.PostID, actor valueobjects.UserID) (bool, *entities.Post, error) {
	var (
		liked bool
		post  *entities.Post
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&postModel{}).Where("id = ?", id.String()).Count(&count).Error; err != nil {
			return pkgerrors.NewDatabaseError("check post", err)
		}
		if count == 0 {
			return pkgerrors.NewNotFoundError("post")
		}

		res := tx.Where("post_id = ? AND user_id = ?", id.String(), actor.String()).Delete(&likeModel{})
		if res.Error != nil {
			return pkgerrors.NewDatabaseError("unlike post", res.Error)
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&likeModel{PostID: id.String(), UserID: actor.String()}).Error; err != nil {
				if isDuplicate(err) {
					// the same like committed between our delete and insert
					return pkgerrors.NewConflictError("post is being modified concurrently, retry").
						WithCode(pkgerrors.CodeConcurrentLike).
						WithCause(err)
				}
				return pkgerrors.NewDatabaseError("like post", err)
			}
			liked = true
		}

		var err error
		post, err = r.load(tx, id)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return liked, post, nil
}

func (r *PostRepository) AppendComment(ctx context.Context, id valueobjects.PostID, comment entities.Comment) (*entities.Post, error) {
	var post *entities.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&postModel{}).Where("id = ?", id.String()).Count(&count).Error; err != nil {
			return pkgerrors.NewDatabaseError("check post", err)
		}
		if count == 0 {
			return pkgerrors.NewNotFoundError("post")
		}

		m := toCommentModel(id, comment)
		if err := tx.Create(&m).Error; err != nil {
			return pkgerrors.NewDatabaseError("append comment", err)
		}

		var err error
		post, err = r.load(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// hydratePosts attaches likes and comments with one query per table.
// Comments keep insertion order.
func hydratePosts(db *gorm.DB, models []postModel) ([]*entities.Post, error) {
	posts := make([]*entities.Post, len(models))
	byID := make(map[string]*entities.Post, len(models))
	ids := make([]string, len(models))
	for i, m := range models {
		blocks := m.Blocks
		if blocks == nil {
			blocks = []entities.Block{}
		}
		posts[i] = &entities.Post{
			ID:        valueobjects.PostID(m.ID),
			AuthorID:  valueobjects.UserID(m.AuthorID),
			Text:      m.Text,
			Blocks:    blocks,
			Likes:     valueobjects.UserIDSet{},
			Comments:  []entities.Comment{},
			CreatedAt: m.CreatedAt.UTC(),
		}
		byID[m.ID] = posts[i]
		ids[i] = m.ID
	}
	if len(ids) == 0 {
		return posts, nil
	}

	var likes []likeModel
	if err := db.Where("post_id IN ?", ids).Find(&likes).Error; err != nil {
		return nil, pkgerrors.NewDatabaseError("load likes", err)
	}
	for _, l := range likes {
		p := byID[l.PostID]
		p.Likes = p.Likes.With(valueobjects.UserID(l.UserID))
	}

	var comments []commentModel
	if err := db.Where("post_id IN ?", ids).Order("id").Find(&comments).Error; err != nil {
		return nil, pkgerrors.NewDatabaseError("load comments", err)
	}
	for _, c := range comments {
		p := byID[c.PostID]
		p.Comments = append(p.Comments, entities.Comment{
			AuthorID:  valueobjects.UserID(c.AuthorID),
			Text:      c.Text,
			CreatedAt: c.CreatedAt.UTC(),
		})
	}
	return posts, nil
}
