package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"devconsole/application/ports"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/feed"
	"devconsole/domain/core/valueobjects"
	"devconsole/pkg/observability"
	pkgerrors "devconsole/pkg/errors"
)

// FeedComment is a comment with its author resolved.
type FeedComment struct {
	Author    entities.PublicProfile `json:"author"`
	Text      string                 `json:"text"`
	CreatedAt time.Time              `json:"createdAt"`
}

// FeedPost is a post as delivered to a viewer.
type FeedPost struct {
	ID        valueobjects.PostID    `json:"id"`
	Author    entities.PublicProfile `json:"author"`
	Text      string                 `json:"text,omitempty"`
	Blocks    []entities.Block       `json:"blocks"`
	Likes     valueobjects.UserIDSet `json:"likes"`
	Comments  []FeedComment          `json:"comments"`
	CreatedAt time.Time              `json:"createdAt"`
}

// FeedService composes ordered post lists for a viewer.
type FeedService struct {
	users    ports.UserRepository
	posts    ports.PostRepository
	profiles *ProfileResolver
	logger   *zap.Logger
	metrics  *observability.Collector
}

// NewFeedService creates a feed service
func NewFeedService(users ports.UserRepository, posts ports.PostRepository, profiles *ProfileResolver, logger *zap.Logger, metrics *observability.Collector) *FeedService {
	return &FeedService{users: users, posts: posts, profiles: profiles, logger: logger, metrics: metrics}
}

// ComposeFeed returns every post selected by mode, ordered, with authors
// resolved. target is required for by-author and by-liker and ignored
// otherwise. There is no cap; callers paginate.
func (s *FeedService) ComposeFeed(ctx context.Context, viewer valueobjects.UserID, mode feed.Mode, target valueobjects.UserID) (result []FeedPost, err error) {
	ctx, span := observability.StartSpan(ctx, "FeedService.ComposeFeed",
		attribute.String("viewer.id", viewer.String()),
		attribute.String("feed.mode", string(mode)),
	)
	defer func() { observability.EndSpan(span, err) }()

	started := time.Now()

	if _, err := feed.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if mode.NeedsTarget() && target.IsZero() {
		return nil, pkgerrors.NewValidationError("feed mode " + string(mode) + " requires a target user")
	}

	viewerRec, err := s.users.GetByID(ctx, viewer)
	if err != nil {
		return nil, err
	}

	filter, err := s.filterFor(ctx, viewerRec, mode, target)
	if err != nil {
		return nil, err
	}

	posts, err := s.posts.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	feed.Order(mode, posts)

	result, err = s.Present(ctx, posts)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordFeed(string(mode), time.Since(started))
	s.logger.Debug("Feed composed",
		zap.String("userID", viewer.String()),
		zap.String("mode", string(mode)),
		zap.Int("posts", len(result)),
	)
	return result, nil
}

func (s *FeedService) filterFor(ctx context.Context, viewer *entities.User, mode feed.Mode, target valueobjects.UserID) (feed.Filter, error) {
	switch mode {
	case feed.ModeFollowingOnly:
		authors := make([]valueobjects.UserID, len(viewer.Following))
		copy(authors, viewer.Following)
		return feed.Filter{Authors: authors}, nil
	case feed.ModeByAuthor, feed.ModeByLiker:
		if _, err := s.users.GetByID(ctx, target); err != nil {
			return feed.Filter{}, err
		}
		if mode == feed.ModeByAuthor {
			return feed.Filter{Authors: []valueobjects.UserID{target}}, nil
		}
		return feed.Filter{LikedBy: target}, nil
	default:
		return feed.Filter{}, nil
	}
}

// Present resolves post and comment authors in one batch. Every post that
// leaves the service goes through here.
func (s *FeedService) Present(ctx context.Context, posts []*entities.Post) ([]FeedPost, error) {
	var ids []valueobjects.UserID
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
		for _, c := range p.Comments {
			ids = append(ids, c.AuthorID)
		}
	}

	profiles, err := s.profiles.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]FeedPost, len(posts))
	for i, p := range posts {
		comments := make([]FeedComment, len(p.Comments))
		for j, c := range p.Comments {
			comments[j] = FeedComment{Author: profiles[c.AuthorID], Text: c.Text, CreatedAt: c.CreatedAt}
		}
		blocks := p.Blocks
		if blocks == nil {
			blocks = []entities.Block{}
		}
		out[i] = FeedPost{
			ID:        p.ID,
			Author:    profiles[p.AuthorID],
			Text:      p.Text,
			Blocks:    blocks,
			Likes:     p.Likes.Clone(),
			Comments:  comments,
			CreatedAt: p.CreatedAt,
		}
	}
	return out, nil
}
