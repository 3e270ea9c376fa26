package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"devconsole/application/ports"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	"devconsole/domain/events"
	"devconsole/pkg/observability"
	pkgerrors "devconsole/pkg/errors"
)

// LikeOutcome is the state of a like after a toggle.
type LikeOutcome string

const (
	Liked   LikeOutcome = "LIKED"
	Unliked LikeOutcome = "UNLIKED"
)

// ContentService creates and deletes posts and applies likes and comments.
type ContentService struct {
	users     ports.UserRepository
	posts     ports.PostRepository
	notifier  Notifier
	publisher ports.EventPublisher
	logger    *zap.Logger
	metrics   *observability.Collector
	now       Clock
}

// NewContentService creates a content service. publisher may be nil.
func NewContentService(
	users ports.UserRepository,
	posts ports.PostRepository,
	notifier Notifier,
	publisher ports.EventPublisher,
	logger *zap.Logger,
	metrics *observability.Collector,
	now Clock,
) *ContentService {
	if now == nil {
		now = SystemClock
	}
	return &ContentService{
		users:     users,
		posts:     posts,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		now:       now,
	}
}

// ToggleLike likes the post if actor has not liked it and unlikes it
// otherwise. A new like notifies the author unless actor is the author.
func (s *ContentService) ToggleLike(ctx context.Context, actor valueobjects.UserID, postID valueobjects.PostID) (outcome LikeOutcome, err error) {
	ctx, span := observability.StartSpan(ctx, "ContentService.ToggleLike",
		attribute.String("actor.id", actor.String()),
		attribute.String("post.id", postID.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if _, err := s.users.GetByID(ctx, actor); err != nil {
		return "", err
	}

	liked, post, err := s.posts.ToggleLike(ctx, postID, actor)
	if err != nil {
		return "", err
	}

	ts := s.now()
	if !liked {
		s.metrics.RecordLike(string(Unliked))
		publishEvent(ctx, s.publisher, s.logger, s.metrics, events.NewPostUnliked(postID, actor, post.AuthorID, ts))
		return Unliked, nil
	}

	s.metrics.RecordLike(string(Liked))
	if post.AuthorID != actor {
		s.notifier.Notify(ctx, entities.NotificationLike, actor, post.AuthorID)
	}
	publishEvent(ctx, s.publisher, s.logger, s.metrics, events.NewPostLiked(postID, actor, post.AuthorID, ts))
	return Liked, nil
}

// AppendComment adds a comment at the end of the post's comments. Comments
// do not notify the author.
func (s *ContentService) AppendComment(ctx context.Context, actor valueobjects.UserID, postID valueobjects.PostID, text string) (*entities.Post, error) {
	comment, err := entities.NewComment(actor, text, s.now())
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, actor); err != nil {
		return nil, err
	}

	post, err := s.posts.AppendComment(ctx, postID, comment)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordComment()
	publishEvent(ctx, s.publisher, s.logger, s.metrics, events.NewCommentAdded(postID, actor, comment.CreatedAt))
	return post, nil
}

// CreatePost validates and stores a new post.
func (s *ContentService) CreatePost(ctx context.Context, author valueobjects.UserID, text string, blocks []entities.Block) (*entities.Post, error) {
	if _, err := s.users.GetByID(ctx, author); err != nil {
		return nil, err
	}

	post, err := entities.NewPost(author, text, blocks, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	s.metrics.RecordPostCreated()
	s.logger.Info("Post created",
		zap.String("postID", post.ID.String()),
		zap.String("userID", author.String()),
		zap.Int("blocks", len(post.Blocks)),
	)
	publishEvent(ctx, s.publisher, s.logger, s.metrics, events.NewPostCreated(post.ID, author, post.CreatedAt))
	return post, nil
}

// DeletePost removes a post. Only its author may delete it.
func (s *ContentService) DeletePost(ctx context.Context, actor valueobjects.UserID, postID valueobjects.PostID) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actor {
		return pkgerrors.NewForbiddenError("you are not authorized to delete this post").
			WithCode(pkgerrors.CodeNotPostOwner)
	}

	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}

	s.metrics.RecordPostDeleted()
	s.logger.Info("Post deleted", zap.String("postID", postID.String()), zap.String("userID", actor.String()))
	publishEvent(ctx, s.publisher, s.logger, s.metrics, events.NewPostDeleted(postID, actor, s.now()))
	return nil
}
