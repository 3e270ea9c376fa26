package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"devconsole/application/ports"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	"devconsole/pkg/observability"
)

const profileCachePrefix = "profile:"

// ProfileResolver turns user IDs into public profiles for feed authors,
// comment authors and notification senders. Profiles are read through the
// cache when one is configured; a cache failure falls back to the store.
type ProfileResolver struct {
	users   ports.UserRepository
	cache   ports.Cache
	ttl     time.Duration
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewProfileResolver creates a resolver. cache may be nil.
func NewProfileResolver(users ports.UserRepository, cache ports.Cache, ttl time.Duration, logger *zap.Logger, metrics *observability.Collector) *ProfileResolver {
	return &ProfileResolver{users: users, cache: cache, ttl: ttl, logger: logger, metrics: metrics}
}

// Resolve returns a profile for every requested ID. IDs with no stored user
// map to a profile carrying only the ID.
func (r *ProfileResolver) Resolve(ctx context.Context, ids []valueobjects.UserID) (map[valueobjects.UserID]entities.PublicProfile, error) {
	out := make(map[valueobjects.UserID]entities.PublicProfile, len(ids))
	var misses []valueobjects.UserID

	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		if p, ok := r.fromCache(ctx, id); ok {
			out[id] = p
			continue
		}
		out[id] = entities.UnknownProfile(id)
		misses = append(misses, id)
	}

	if len(misses) == 0 {
		return out, nil
	}

	users, err := r.users.GetByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		p := u.Public()
		out[u.ID] = p
		r.toCache(ctx, p)
	}
	return out, nil
}

// Invalidate drops cached profiles after their follow sets changed.
func (r *ProfileResolver) Invalidate(ctx context.Context, ids ...valueobjects.UserID) {
	if r.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileCachePrefix + id.String()
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("Failed to invalidate cached profiles", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (r *ProfileResolver) fromCache(ctx context.Context, id valueobjects.UserID) (entities.PublicProfile, bool) {
	if r.cache == nil {
		return entities.PublicProfile{}, false
	}
	var p entities.PublicProfile
	hit, err := r.cache.Get(ctx, profileCachePrefix+id.String(), &p)
	if err != nil {
		r.logger.Debug("Profile cache read failed", zap.String("userID", id.String()), zap.Error(err))
		return entities.PublicProfile{}, false
	}
	r.metrics.RecordCache(hit)
	return p, hit
}

func (r *ProfileResolver) toCache(ctx context.Context, p entities.PublicProfile) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	if err := r.cache.Set(ctx, profileCachePrefix+p.ID.String(), p, r.ttl); err != nil {
		r.logger.Debug("Profile cache write failed", zap.String("userID", p.ID.String()), zap.Error(err))
	}
}
