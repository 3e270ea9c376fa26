package di

import (
	"go.uber.org/zap"

	"devconsole/application/ports"
	"devconsole/infrastructure/config"
	"devconsole/pkg/auth"
	pkgerrors "devconsole/pkg/errors"
	"devconsole/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Stores       *Stores
	Cache        ports.Cache
	Publisher    ports.EventPublisher
	Validator    *auth.JWTValidator
	ErrorHandler *pkgerrors.ErrorHandler
	Services     *Services
	Readiness    ReadinessChecks
}
