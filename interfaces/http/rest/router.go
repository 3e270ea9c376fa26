package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"devconsole/application/services"
	"devconsole/interfaces/http/rest/handlers"
	"devconsole/interfaces/http/rest/middleware"
	"devconsole/pkg/auth"
	pkgerrors "devconsole/pkg/errors"
	"devconsole/pkg/observability"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// RouterDeps is everything the router wires into handlers
type RouterDeps struct {
	Relationships *services.RelationshipService
	Suggestions   *services.SuggestionService
	Profiles      *services.ProfileService
	Feeds         *services.FeedService
	Content       *services.ContentService
	Notifications *services.NotificationService

	Validator      *auth.JWTValidator
	AllowDevHeader bool
	ErrorHandler   *pkgerrors.ErrorHandler
	Metrics        *observability.Collector
	Logger         *zap.Logger

	EnableCORS     bool
	AllowedOrigins []string
	Readiness      map[string]ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	deps RouterDeps
}

// NewRouter creates a new router instance
func NewRouter(deps RouterDeps) *Router {
	return &Router{deps: deps}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	d := rt.deps
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(d.ErrorHandler.Middleware)
	router.Use(middleware.Logger(d.Logger, d.Metrics))

	if d.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.DevUserHeader},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		d.ErrorHandler.HandleStatus(w, r, http.StatusNotFound, pkgerrors.CodeRouteNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		d.ErrorHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, pkgerrors.CodeMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if d.Metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(d.Metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	users := handlers.NewUserHandler(d.Relationships, d.Suggestions, d.Profiles, d.ErrorHandler, d.Logger)
	posts := handlers.NewPostHandler(d.Feeds, d.Content, d.ErrorHandler, d.Logger)
	notifications := handlers.NewNotificationHandler(d.Notifications, d.ErrorHandler, d.Logger)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Validator, d.AllowDevHeader, d.ErrorHandler, d.Logger))

		r.Route("/users", func(r chi.Router) {
			r.Post("/follow/{id}", users.ToggleFollow)
			r.Get("/suggested", users.Suggested)
			r.Get("/browse", users.Browse)
			r.Get("/profile/{username}", users.Profile)
			r.Get("/search/{query}", users.Search)
			r.Get("/relations/{username}/{kind}", users.Relations)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/feed", posts.Feed)
			r.Post("/create", posts.Create)
			r.Post("/like/{id}", posts.Like)
			r.Post("/comment/{id}", posts.Comment)
			r.Delete("/{id}", posts.Delete)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notifications.List)
			r.Delete("/", notifications.Clear)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck runs every registered check with a short deadline
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range rt.deps.Readiness {
		if err := check(ctx); err != nil {
			rt.deps.Logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		rt.deps.ErrorHandler.Handle(w, r, pkgerrors.NewUnavailableError("dependencies").
			WithDetails(map[string]interface{}{"failed": failed}))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
