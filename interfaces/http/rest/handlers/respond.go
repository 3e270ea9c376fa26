package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"devconsole/domain/core/valueobjects"
	"devconsole/pkg/auth"
	pkgerrors "devconsole/pkg/errors"
)

const maxBodyBytes = 1 << 20

// base carries what every handler needs to write responses
type base struct {
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

func (b base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		b.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (b base) respondMessage(w http.ResponseWriter, status int, message string) {
	b.respondJSON(w, status, map[string]string{"message": message})
}

// decodeJSON reads a bounded request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return pkgerrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

// currentUser is the authenticated caller placed on the context by the
// auth middleware
func currentUser(r *http.Request) (valueobjects.UserID, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return "", pkgerrors.NewUnauthorizedError("authentication required")
	}
	return valueobjects.UserID(user.UserID), nil
}
