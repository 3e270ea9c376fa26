package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routePattern keeps metric label cardinality bounded by labelling with the
// matched pattern instead of the raw path
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
