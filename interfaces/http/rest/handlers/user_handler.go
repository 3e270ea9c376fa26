package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"devconsole/application/services"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// defaultSuggestionCount keeps the whole default draw.
const defaultSuggestionCount = services.DefaultSuggestionDrawSize

// UserHandler serves the follow graph and profile endpoints
type UserHandler struct {
	base
	relationships *services.RelationshipService
	suggestions   *services.SuggestionService
	profiles      *services.ProfileService
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	relationships *services.RelationshipService,
	suggestions *services.SuggestionService,
	profiles *services.ProfileService,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		base:          base{errors: errorHandler, logger: logger},
		relationships: relationships,
		suggestions:   suggestions,
		profiles:      profiles,
	}
}

// ToggleFollow handles POST /users/follow/{id}
func (h *UserHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	target := valueobjects.UserID(chi.URLParam(r, "id"))

	outcome, err := h.relationships.ToggleFollow(r.Context(), actor, target)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	message := "User followed successfully"
	if outcome == services.Unfollowed {
		message = "User unfollowed successfully"
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome), "message": message})
}

// Suggested handles GET /users/suggested?count=
func (h *UserHandler) Suggested(w http.ResponseWriter, r *http.Request) {
	viewer, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	count := defaultSuggestionCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("count must be an integer"))
			return
		}
		count = n
	}

	users, err := h.suggestions.SampleSuggestions(r.Context(), viewer, count)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, users)
}

// Browse handles GET /users/browse
func (h *UserHandler) Browse(w http.ResponseWriter, r *http.Request) {
	viewer, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	users, err := h.suggestions.ListAllNonFollowed(r.Context(), viewer)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, users)
}

// Profile handles GET /users/profile/{username}
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, profile)
}

// Relations handles GET /users/relations/{username}/{kind}
func (h *UserHandler) Relations(w http.ResponseWriter, r *http.Request) {
	kind := entities.RelationKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid type, use 'following' or 'followers'"))
		return
	}

	users, err := h.relationships.ListRelations(r.Context(), chi.URLParam(r, "username"), kind)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, users)
}

// Search handles GET /users/search/{query}
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.profiles.SearchUsers(r.Context(), chi.URLParam(r, "query"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, users)
}
