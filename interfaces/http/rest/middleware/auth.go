package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"devconsole/pkg/auth"
	pkgerrors "devconsole/pkg/errors"
)

// DevUserHeader names the caller when no token validator is configured.
// It is only honoured in development.
const DevUserHeader = "X-User-ID"

// Authenticate resolves the caller from a bearer token. With a nil
// validator and allowDevHeader set, the DevUserHeader is trusted instead.
func Authenticate(validator *auth.JWTValidator, allowDevHeader bool, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var user *auth.UserContext

			switch {
			case validator != nil:
				token := extractToken(r)
				if token == "" {
					errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("missing authentication token"))
					return
				}
				claims, err := validator.ValidateToken(token)
				if err != nil {
					logger.Warn("Invalid token", zap.Error(err), zap.String("path", r.URL.Path))
					errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(tokenMessage(err)))
					return
				}
				user = &auth.UserContext{UserID: claims.Subject, Username: claims.Username}

			case allowDevHeader:
				id := strings.TrimSpace(r.Header.Get(DevUserHeader))
				if id == "" {
					errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("missing "+DevUserHeader+" header"))
					return
				}
				user = &auth.UserContext{UserID: id}

			default:
				errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("authentication is not configured"))
				return
			}

			logger.Debug("Request authenticated",
				zap.String("userID", user.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
		})
	}
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}

	if cookie, err := r.Cookie("jwt"); err == nil {
		return cookie.Value
	}
	return ""
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid token signature"
	default:
		return "invalid token"
	}
}
