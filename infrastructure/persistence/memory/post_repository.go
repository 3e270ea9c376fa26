package memory

import (
	"context"
	"sync"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/feed"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// PostRepository is an in-memory content store
type PostRepository struct {
	mu    sync.RWMutex
	posts map[valueobjects.PostID]*entities.Post
}

// NewPostRepository creates an empty in-memory content store
func NewPostRepository() *PostRepository {
	return &PostRepository{posts: make(map[valueobjects.PostID]*entities.Post)}
}

func (r *PostRepository) Create(ctx context.Context, post *entities.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[post.ID]; exists {
		return pkgerrors.NewConflictError("post already exists")
	}
	r.posts[post.ID] = post.Clone()
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id valueobjects.PostID) (*entities.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("post")
	}
	return p.Clone(), nil
}

func (r *PostRepository) Delete(ctx context.Context, id valueobjects.PostID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return pkgerrors.NewNotFoundError("post")
	}
	delete(r.posts, id)
	return nil
}

func (r *PostRepository) Query(ctx context.Context, filter feed.Filter) ([]*entities.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.Post, 0)
	for _, p := range r.posts {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *PostRepository) ToggleLike(ctx context.Context, id valueobjects.PostID, actor valueobjects.UserID) (bool, *entities.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return false, nil, pkgerrors.NewNotFoundError("post")
	}

	liked := !p.IsLikedBy(actor)
	if liked {
		p.Likes = p.Likes.With(actor)
	} else {
		p.Likes = p.Likes.Without(actor)
	}
	return liked, p.Clone(), nil
}

func (r *PostRepository) AppendComment(ctx context.Context, id valueobjects.PostID, comment entities.Comment) (*entities.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("post")
	}
	p.Comments = append(p.Comments, comment)
	return p.Clone(), nil
}
