package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devconsole/infrastructure/config"
	"devconsole/infrastructure/di"
	"devconsole/interfaces/http/rest"
	"devconsole/pkg/observability"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()

	logger := container.Logger

	if cfg.EnableTracing {
		tp, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName: "devconsole-api",
			Environment: cfg.Environment,
			Endpoint:    cfg.OTELEndpoint,
			SampleRate:  cfg.TracingSampleRate,
		})
		if err != nil {
			logger.Warn("Tracing disabled", zap.Error(err))
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Warn("Tracer shutdown error", zap.Error(err))
				}
			}()
		}
	}

	handler := rest.NewRouter(routerDeps(container)).Setup()

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreBackend),
			zap.String("event_bus", cfg.EventBus),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	_ = logger.Sync()
	log.Println("Server stopped")
}

func routerDeps(c *di.Container) rest.RouterDeps {
	readiness := make(map[string]rest.ReadinessCheck, len(c.Readiness))
	for name, check := range c.Readiness {
		readiness[name] = check
	}

	return rest.RouterDeps{
		Relationships:  c.Services.Relationships,
		Suggestions:    c.Services.Suggestions,
		Profiles:       c.Services.Profiles,
		Feeds:          c.Services.Feeds,
		Content:        c.Services.Content,
		Notifications:  c.Services.Notifications,
		Validator:      c.Validator,
		AllowDevHeader: c.Config.IsDevelopment() && c.Config.JWTSecret == "",
		ErrorHandler:   c.ErrorHandler,
		Metrics:        c.Metrics,
		Logger:         c.Logger,
		EnableCORS:     c.Config.EnableCORS,
		AllowedOrigins: c.Config.CORSAllowedOrigins,
		Readiness:      readiness,
	}
}
