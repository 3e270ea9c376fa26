package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"devconsole/application/services"
	pkgerrors "devconsole/pkg/errors"
)

// NotificationHandler serves the caller's notification inbox
type NotificationHandler struct {
	base
	notifications *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *services.NotificationService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		base:          base{errors: errorHandler, logger: logger},
		notifications: notifications,
	}
}

// List handles GET /notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	views, err := h.notifications.ListFor(r.Context(), user)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, views)
}

// Clear handles DELETE /notifications
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	n, err := h.notifications.ClearAll(r.Context(), user)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Notifications deleted successfully",
		"deleted": n,
	})
}
