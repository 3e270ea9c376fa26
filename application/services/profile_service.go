package services

import (
	"context"
	"strings"

	"devconsole/application/ports"
	"devconsole/domain/core/entities"
	pkgerrors "devconsole/pkg/errors"
)

// ProfileService serves read-only profile lookups.
type ProfileService struct {
	users ports.UserRepository
}

func NewProfileService(users ports.UserRepository) *ProfileService {
	return &ProfileService{users: users}
}

// GetProfile looks a user up by username.
func (s *ProfileService) GetProfile(ctx context.Context, username string) (entities.PublicProfile, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return entities.PublicProfile{}, err
	}
	return u.Public(), nil
}

// SearchUsers matches query against usernames and full names.
func (s *ProfileService) SearchUsers(ctx context.Context, query string) ([]entities.PublicProfile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pkgerrors.NewValidationError("search query is required")
	}

	users, err := s.users.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return entities.PublicProfiles(users), nil
}
