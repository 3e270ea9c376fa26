package main

import (
	"context"
	"log"
	"time"

	"devconsole/infrastructure/config"
	"devconsole/infrastructure/di"
	"devconsole/interfaces/http/rest"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container
	coldStart = true
)

// init builds the container once per execution environment
func init() {
	started := time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connections live as long as the execution environment, so the cleanup
	// func is never called.
	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	handler := rest.NewRouter(routerDeps(container)).Setup()
	mux, ok := handler.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(mux)

	container.Logger.Info("Lambda cold start completed", zap.Duration("took", time.Since(started)))
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if coldStart {
		container.Logger.Info("Serving first request after cold start",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("request_id", req.RequestContext.RequestID),
		)
		coldStart = false
	}

	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	lambda.Start(Handler)
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
		ErrorHandler:   c.ErrorHandler,
		Metrics:        c.Metrics,
		Logger:         c.Logger,
		EnableCORS:     c.Config.EnableCORS,
		AllowedOrigins: c.Config.CORSAllowedOrigins,
		Readiness:      readiness,
	}
}
