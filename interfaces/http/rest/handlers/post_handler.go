package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"devconsole/application/services"
	"devconsole/domain/core/entities"
	"devconsole/domain/core/feed"
	"devconsole/domain/core/valueobjects"
	"devconsole/pkg/common"
	pkgerrors "devconsole/pkg/errors"
	"devconsole/pkg/utils"
)

// PostHandler serves feed and content endpoints
type PostHandler struct {
	base
	feeds   *services.FeedService
	content *services.ContentService
}

// NewPostHandler creates a new post handler
func NewPostHandler(feeds *services.FeedService, content *services.ContentService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *PostHandler {
	return &PostHandler{
		base:    base{errors: errorHandler, logger: logger},
		feeds:   feeds,
		content: content,
	}
}

// BlockRequest is a code or image block in a new post
type BlockRequest struct {
	Type        string `json:"type" validate:"required,oneof=code image"`
	CodeSnippet string `json:"codeSnippet,omitempty" validate:"max=20000"`
	Language    string `json:"language,omitempty" validate:"max=32"`
	ImageURL    string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// CreatePostRequest represents the request body for creating a post
type CreatePostRequest struct {
	Text   string         `json:"text" validate:"max=5000"`
	Blocks []BlockRequest `json:"blocks" validate:"max=10,dive"`
}

// CommentRequest represents the request body for commenting on a post
type CommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Feed handles GET /posts/feed?mode=&target=&page=&page_size=
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	viewer, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	rawMode := r.URL.Query().Get("mode")
	if rawMode == "" {
		rawMode = string(feed.ModeGlobalRecent)
	}
	mode, err := feed.ParseMode(rawMode)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	posts, err := h.feeds.ComposeFeed(r.Context(), viewer, mode, valueobjects.UserID(r.URL.Query().Get("target")))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, common.Paginate(posts, common.ExtractPaginationParams(r)))
}

// Create handles POST /posts/create
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	author, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req CreatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	blocks := make([]entities.Block, len(req.Blocks))
	for i, b := range req.Blocks {
		blocks[i] = entities.Block{
			Type:        entities.BlockType(b.Type),
			CodeSnippet: b.CodeSnippet,
			Language:    b.Language,
			ImageURL:    b.ImageURL,
		}
	}

	post, err := h.content.CreatePost(r.Context(), author, req.Text, blocks)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPost(w, r, http.StatusCreated, post)
}

// Delete handles DELETE /posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.content.DeletePost(r.Context(), actor, valueobjects.PostID(chi.URLParam(r, "id"))); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusOK, "Post deleted successfully")
}

// Like handles POST /posts/like/{id}
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	outcome, err := h.content.ToggleLike(r.Context(), actor, valueobjects.PostID(chi.URLParam(r, "id")))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	message := "Post liked successfully"
	if outcome == services.Unliked {
		message = "Post unliked successfully"
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome), "message": message})
}

// Comment handles POST /posts/comment/{id}
func (h *PostHandler) Comment(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	post, err := h.content.AppendComment(r.Context(), actor, valueobjects.PostID(chi.URLParam(r, "id")), req.Text)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondPost(w, r, http.StatusOK, post)
}

// respondPost writes post with its author and comment authors resolved
func (h *PostHandler) respondPost(w http.ResponseWriter, r *http.Request, status int, post *entities.Post) {
	views, err := h.feeds.Present(r.Context(), []*entities.Post{post})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, status, views[0])
}
