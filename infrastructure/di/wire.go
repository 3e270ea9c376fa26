//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"devconsole/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideStores,
	ProvideCache,
	ProvideReadiness,
	ProvideEventPublisher,
	ProvideJWTValidator,
	ProvideErrorHandler,
	ProvideServices,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
