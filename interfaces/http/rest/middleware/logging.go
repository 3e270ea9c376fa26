package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"devconsole/pkg/observability"
)

// Logger logs every request and records it in the HTTP metrics under its
// route pattern. A nil collector disables the metrics.
func Logger(logger *zap.Logger, metrics *observability.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			metrics.RecordHTTP(r.Method, routePattern(r), ww.Status(), duration)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", duration),
				zap.String("requestID", middleware.GetReqID(r.Context())),
				zap.String("remoteAddr", r.RemoteAddr),
			)
		})
	}
}
