package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"devconsole/application/services"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	"devconsole/infrastructure/cache"
	"devconsole/infrastructure/persistence/memory"
	"devconsole/interfaces/http/rest/middleware"
	"devconsole/pkg/auth"
	pkgerrors "devconsole/pkg/errors"
	"devconsole/pkg/observability"
)

type testServer struct {
	handler http.Handler
	users   *memory.UserRepository
}

func newTestServer(t *testing.T, mutate func(*RouterDeps)) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewCollector("devconsole_test")

	users := memory.NewUserRepository()
	posts := memory.NewPostRepository()
	notifs := memory.NewNotificationRepository()
	for _, name := range []string{"alice", "bob", "carol"} {
		require.NoError(t, users.Create(context.Background(), &entities.User{
			ID: userID(name), Username: name, FullName: name + " example",
		}))
	}

	profiles := services.NewProfileResolver(users, cache.NewMemoryCache(), time.Minute, logger, metrics)
	notifications := services.NewNotificationService(notifs, profiles, nil, logger, metrics, nil)

	deps := RouterDeps{
		Relationships:  services.NewRelationshipService(users, notifications, profiles, nil, logger, metrics, nil),
		Suggestions:    services.NewSuggestionService(users, services.DefaultSuggestionDrawSize, logger),
		Profiles:       services.NewProfileService(users),
		Feeds:          services.NewFeedService(users, posts, profiles, logger, metrics),
		Content:        services.NewContentService(users, posts, notifications, nil, logger, metrics, nil),
		Notifications:  notifications,
		AllowDevHeader: true,
		ErrorHandler:   pkgerrors.NewErrorHandler(logger, false),
		Metrics:        metrics,
		Logger:         logger,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &testServer{handler: NewRouter(deps).Setup(), users: users}
}

func userID(name string) valueobjects.UserID { return valueobjects.UserID("id-" + name) }

func (s *testServer) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(middleware.DevUserHeader, string(userID(user)))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestRouter_ToggleFollow(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/users/follow/id-bob", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]string
	decode(t, rec, &out)
	assert.Equal(t, "FOLLOWED", out["outcome"])

	rec = s.do(t, http.MethodGet, "/api/users/relations/bob/followers", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var followers []entities.PublicProfile
	decode(t, rec, &followers)
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].Username)

	rec = s.do(t, http.MethodGet, "/api/notifications", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox []entities.NotificationView
	decode(t, rec, &inbox)
	require.Len(t, inbox, 1)
	assert.Equal(t, entities.NotificationFollow, inbox[0].Kind)
	assert.Equal(t, "alice", inbox[0].From.Username)

	rec = s.do(t, http.MethodPost, "/api/users/follow/id-bob", "alice", nil)
	decode(t, rec, &out)
	assert.Equal(t, "UNFOLLOWED", out["outcome"])
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name    string
		method  string
		path    string
		user    string
		body    interface{}
		status  int
		errType pkgerrors.ErrorType
		code    string
	}{
		{name: "self follow", method: http.MethodPost, path: "/api/users/follow/id-alice", user: "alice", status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeSelfReference, code: pkgerrors.CodeSelfFollow},
		{name: "unknown route", method: http.MethodGet, path: "/nope", status: http.StatusNotFound, errType: pkgerrors.ErrorTypeNotFound, code: pkgerrors.CodeRouteNotFound},
		{name: "wrong method", method: http.MethodPost, path: "/health", status: http.StatusMethodNotAllowed, errType: pkgerrors.ErrorTypeValidation, code: pkgerrors.CodeMethodNotAllowed},
		{name: "unknown target", method: http.MethodPost, path: "/api/users/follow/id-ghost", user: "alice", status: http.StatusNotFound, errType: pkgerrors.ErrorTypeNotFound},
		{name: "no caller", method: http.MethodGet, path: "/api/users/browse", status: http.StatusUnauthorized, errType: pkgerrors.ErrorTypeUnauthorized},
		{name: "bad relation kind", method: http.MethodGet, path: "/api/users/relations/bob/friends", user: "alice", status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation},
		{name: "bad feed mode", method: http.MethodGet, path: "/api/posts/feed?mode=trending", user: "alice", status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation},
		{name: "by-author without target", method: http.MethodGet, path: "/api/posts/feed?mode=by-author", user: "alice", status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation},
		{name: "bad count", method: http.MethodGet, path: "/api/users/suggested?count=0", user: "alice", status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation},
		{name: "empty comment", method: http.MethodPost, path: "/api/posts/comment/p1", user: "alice", body: map[string]string{"text": ""}, status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation},
		{name: "bad block type", method: http.MethodPost, path: "/api/posts/create", user: "alice", body: map[string]interface{}{"blocks": []map[string]string{{"type": "video"}}}, status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation},
		{name: "unknown profile", method: http.MethodGet, path: "/api/users/profile/nobody", user: "alice", status: http.StatusNotFound, errType: pkgerrors.ErrorTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.user, tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			var resp pkgerrors.ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, string(tt.errType), resp.Type)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestRouter_PostsFeedAndLikes(t *testing.T) {
	s := newTestServer(t, nil)

	var ids []string
	for _, text := range []string{"first", "second"} {
		rec := s.do(t, http.MethodPost, "/api/posts/create", "alice", map[string]string{"text": text})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var post services.FeedPost
		decode(t, rec, &post)
		assert.Equal(t, "alice", post.Author.Username)
		assert.NotContains(t, rec.Body.String(), "authorId")
		ids = append(ids, post.ID.String())
	}

	rec := s.do(t, http.MethodPost, "/api/posts/like/"+ids[0], "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/posts/feed?mode=global-popular&page_size=1", "carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items      []services.FeedPost `json:"items"`
		Pagination struct {
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		} `json:"pagination"`
	}
	decode(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[0], page.Items[0].ID.String())
	assert.Equal(t, "alice", page.Items[0].Author.Username)
	assert.Equal(t, 2, page.Pagination.Total)
	assert.True(t, page.Pagination.HasNext)

	rec = s.do(t, http.MethodPost, "/api/posts/comment/"+ids[1], "carol", map[string]string{"text": "nice"})
	require.Equal(t, http.StatusOK, rec.Code)
	var commented struct {
		Author struct {
			Username string `json:"username"`
		} `json:"author"`
		Comments []struct {
			Author struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"author"`
			Text string `json:"text"`
		} `json:"comments"`
	}
	decode(t, rec, &commented)
	assert.Equal(t, "alice", commented.Author.Username)
	require.Len(t, commented.Comments, 1)
	assert.Equal(t, "carol", commented.Comments[0].Author.Username)
	assert.Equal(t, "id-carol", commented.Comments[0].Author.ID)
	assert.Equal(t, "nice", commented.Comments[0].Text)

	rec = s.do(t, http.MethodGet, "/api/notifications", "alice", nil)
	var inbox []entities.NotificationView
	decode(t, rec, &inbox)
	require.Len(t, inbox, 1)
	assert.Equal(t, entities.NotificationLike, inbox[0].Kind)

	rec = s.do(t, http.MethodDelete, "/api/notifications", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/posts/"+ids[0], "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	var denied pkgerrors.ErrorResponse
	decode(t, rec, &denied)
	assert.Equal(t, pkgerrors.CodeNotPostOwner, denied.Code)
	rec = s.do(t, http.MethodDelete, "/api/posts/"+ids[0], "alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_JWT(t *testing.T) {
	cfg := auth.JWTConfig{SecretKey: "test-secret", Issuer: "devconsole"}
	validator, err := auth.NewJWTValidator(cfg)
	require.NoError(t, err)
	generator, err := auth.NewJWTGenerator(cfg)
	require.NoError(t, err)

	s := newTestServer(t, func(d *RouterDeps) {
		d.Validator = validator
		d.AllowDevHeader = false
	})

	token, err := generator.GenerateToken("id-alice", "alice")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/users/browse", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var browse []entities.PublicProfile
	decode(t, rec, &browse)
	assert.Len(t, browse, 2)

	rec = s.do(t, http.MethodGet, "/api/users/browse", "alice", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_OpsEndpoints(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) {
		d.Readiness = map[string]ReadinessCheck{
			"cache": func(context.Context) error { return errors.New("connection refused") },
		}
	})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/ready", "", nil).Code)

	s.do(t, http.MethodGet, "/api/users/browse", "alice", nil)
	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "devconsole_test_http_requests_total")
}

func TestRouter_ProfilesAndDiscovery(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/users/follow/id-bob", "alice", nil).Code)

	rec := s.do(t, http.MethodGet, "/api/users/profile/bob", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile entities.PublicProfile
	decode(t, rec, &profile)
	assert.Equal(t, userID("bob"), profile.ID)
	assert.True(t, profile.Followers.Contains(userID("alice")))
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodGet, "/api/users/search/CAR", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []entities.PublicProfile
	decode(t, rec, &found)
	require.Len(t, found, 1)
	assert.Equal(t, "carol", found[0].Username)

	rec = s.do(t, http.MethodGet, "/api/users/suggested?count=5", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var suggested []entities.PublicProfile
	decode(t, rec, &suggested)
	require.Len(t, suggested, 1)
	assert.Equal(t, userID("carol"), suggested[0].ID)

	rec = s.do(t, http.MethodGet, "/api/users/relations/alice/following", "carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var following []entities.PublicProfile
	decode(t, rec, &following)
	require.Len(t, following, 1)
	assert.Equal(t, "bob", following[0].Username)
}

func TestRouter_UsernamesMatchingRouteSegments(t *testing.T) {
	// Arrange
	s := newTestServer(t, nil)
	for _, name := range []string{"profile", "search", "relations"} {
		require.NoError(t, s.users.Create(context.Background(), &entities.User{
			ID: userID(name), Username: name, FullName: name + " example",
		}))
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/users/follow/id-profile", "alice", nil).Code)

	// Act
	followersRec := s.do(t, http.MethodGet, "/api/users/relations/profile/followers", "alice", nil)
	relationsRec := s.do(t, http.MethodGet, "/api/users/relations/relations/following", "alice", nil)
	profileRec := s.do(t, http.MethodGet, "/api/users/profile/search", "alice", nil)

	// Assert
	require.Equal(t, http.StatusOK, followersRec.Code, followersRec.Body.String())
	var followers []entities.PublicProfile
	decode(t, followersRec, &followers)
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].Username)

	require.Equal(t, http.StatusOK, relationsRec.Code, relationsRec.Body.String())
	var following []entities.PublicProfile
	decode(t, relationsRec, &following)
	assert.Empty(t, following)

	require.Equal(t, http.StatusOK, profileRec.Code, profileRec.Body.String())
	var profile entities.PublicProfile
	decode(t, profileRec, &profile)
	assert.Equal(t, userID("search"), profile.ID)
}

func TestRouter_SuggestedDefaultsToFullDraw(t *testing.T) {
	// Arrange
	s := newTestServer(t, nil)
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("user%02d", i)
		require.NoError(t, s.users.Create(context.Background(), &entities.User{
			ID: userID(name), Username: name, FullName: name,
		}))
	}

	// Act
	rec := s.do(t, http.MethodGet, "/api/users/suggested", "alice", nil)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var suggested []entities.PublicProfile
	decode(t, rec, &suggested)
	assert.Len(t, suggested, services.DefaultSuggestionDrawSize)
	for _, p := range suggested {
		assert.NotEqual(t, userID("alice"), p.ID)
	}
}
