package services

import (
	"context"

	"go.uber.org/zap"

	"devconsole/application/ports"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// DefaultSuggestionDrawSize is how many random users are drawn before
// already-followed users are filtered out.
const DefaultSuggestionDrawSize = 10

// SuggestionService recommends accounts to follow.
type SuggestionService struct {
	users    ports.UserRepository
	drawSize int
	logger   *zap.Logger
}

// NewSuggestionService creates a suggestion service
func NewSuggestionService(users ports.UserRepository, drawSize int, logger *zap.Logger) *SuggestionService {
	if drawSize < 1 {
		drawSize = DefaultSuggestionDrawSize
	}
	return &SuggestionService{users: users, drawSize: drawSize, logger: logger}
}

// SampleSuggestions draws random users other than viewer, drops the ones
// viewer already follows and keeps at most count. Filtering happens after
// the draw, so fewer than count (or none) may come back even when enough
// unfollowed users exist.
func (s *SuggestionService) SampleSuggestions(ctx context.Context, viewer valueobjects.UserID, count int) ([]entities.PublicProfile, error) {
	if count < 1 {
		return nil, pkgerrors.NewValidationError("count must be positive")
	}

	viewerRec, err := s.users.GetByID(ctx, viewer)
	if err != nil {
		return nil, err
	}

	draw := s.drawSize
	if count > draw {
		draw = count
	}

	candidates, err := s.users.SampleRandom(ctx, draw, []valueobjects.UserID{viewer})
	if err != nil {
		return nil, err
	}

	suggestions := make([]entities.PublicProfile, 0, count)
	for _, c := range candidates {
		if c.ID == viewer || viewerRec.IsFollowing(c.ID) {
			continue
		}
		suggestions = append(suggestions, c.Public())
		if len(suggestions) == count {
			break
		}
	}

	s.logger.Debug("Suggestions sampled",
		zap.String("userID", viewer.String()),
		zap.Int("drawn", len(candidates)),
		zap.Int("returned", len(suggestions)),
	)
	return suggestions, nil
}

// ListAllNonFollowed returns every user except viewer and the users viewer
// follows.
func (s *SuggestionService) ListAllNonFollowed(ctx context.Context, viewer valueobjects.UserID) ([]entities.PublicProfile, error) {
	viewerRec, err := s.users.GetByID(ctx, viewer)
	if err != nil {
		return nil, err
	}

	exclude := append([]valueobjects.UserID{viewer}, viewerRec.Following...)
	users, err := s.users.ListAll(ctx, exclude)
	if err != nil {
		return nil, err
	}

	out := make([]entities.PublicProfile, 0, len(users))
	for _, u := range users {
		if u.ID == viewer || viewerRec.IsFollowing(u.ID) {
			continue
		}
		out = append(out, u.Public())
	}
	return out, nil
}
