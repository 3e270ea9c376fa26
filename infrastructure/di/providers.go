package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"devconsole/application/ports"
	"devconsole/application/services"
	"devconsole/infrastructure/cache"
	"devconsole/infrastructure/config"
	"devconsole/infrastructure/messaging"
	"devconsole/infrastructure/messaging/eventbridge"
	"devconsole/infrastructure/messaging/natsbus"
	"devconsole/infrastructure/persistence/dynamodb"
	"devconsole/infrastructure/persistence/gormstore"
	"devconsole/infrastructure/persistence/memory"
	"devconsole/pkg/auth"
	pkgerrors "devconsole/pkg/errors"
	"devconsole/pkg/observability"
)

const cachePrefix = "devconsole:"

// ReadinessChecks names the dependencies /ready probes
type ReadinessChecks map[string]func(ctx context.Context) error

// Stores groups the three repositories of one backend
type Stores struct {
	Users         ports.UserRepository
	Posts         ports.PostRepository
	Notifications ports.NotificationRepository
	Ready         func(ctx context.Context) error
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

// ProvideMetrics returns nil when metrics are disabled; the collector's
// methods are nil-safe.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("devconsole")
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at a local
// endpoint when one is configured
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideStores selects the persistence backend
func ProvideStores(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (*Stores, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		dcfg := dynamodb.Config{
			TableName:     cfg.TableName,
			GSI1IndexName: cfg.GSI1IndexName,
			GSI2IndexName: cfg.GSI2IndexName,
		}
		var users ports.UserRepository = dynamodb.NewUserRepository(client, dcfg, logger)
		if cfg.TransactionalFollows {
			users = dynamodb.NewTransactionalUserRepository(client, dcfg, logger)
		}
		return &Stores{
			Users:         users,
			Posts:         dynamodb.NewPostRepository(client, dcfg, logger),
			Notifications: dynamodb.NewNotificationRepository(client, dcfg, logger),
			Ready: func(ctx context.Context) error {
				_, err := client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(cfg.TableName)})
				return err
			},
		}, func() {}, nil

	case config.StorePostgres:
		db, err := gormstore.OpenPostgres(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, pkgerrors.NewDatabaseError("get connection pool", err)
		}
		cleanup := func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Failed to close database", zap.Error(err))
			}
		}
		return &Stores{
			Users:         gormstore.NewUserRepository(db, logger),
			Posts:         gormstore.NewPostRepository(db, logger),
			Notifications: gormstore.NewNotificationRepository(db, logger),
			Ready:         sqlDB.PingContext,
		}, cleanup, nil

	default:
		logger.Warn("Using in-memory store; data is lost on restart")
		return &Stores{
			Users:         memory.NewUserRepository(),
			Posts:         memory.NewPostRepository(),
			Notifications: memory.NewNotificationRepository(),
		}, func() {}, nil
	}
}

// ProvideCache uses Redis when an address is configured and an in-process
// cache otherwise
func ProvideCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(), func() {}, nil
	}

	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Prefix:   cachePrefix,
	})
	if err != nil {
		return nil, nil, pkgerrors.NewUnavailableError("redis").WithCause(err)
	}
	logger.Info("Profile cache backed by Redis", zap.String("addr", cfg.RedisAddr))

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	return cache.NewRedisCache(client, cachePrefix), cleanup, nil
}

// ProvideReadiness collects the probes for the store and any remote cache
func ProvideReadiness(stores *Stores, c ports.Cache) ReadinessChecks {
	checks := ReadinessChecks{}
	if stores.Ready != nil {
		checks["store"] = stores.Ready
	}
	if p, ok := c.(pinger); ok {
		checks["cache"] = p.Ping
	}
	return checks
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ProvideEventPublisher builds the configured bus behind a circuit breaker
func ProvideEventPublisher(cfg *config.Config, ebClient *awseventbridge.Client, logger *zap.Logger) (ports.EventPublisher, func(), error) {
	switch cfg.EventBus {
	case config.EventBusEventBridge:
		pub := eventbridge.NewPublisher(ebClient, cfg.EventBusName, logger)
		return messaging.NewBreakerPublisher(pub, messaging.DefaultBreakerConfig("eventbridge"), logger), func() {}, nil

	case config.EventBusNATS:
		conn, err := natsbus.Connect(cfg.NATSURL, "devconsole", logger)
		if err != nil {
			return nil, nil, pkgerrors.NewUnavailableError("nats").WithCause(err)
		}
		cleanup := func() {
			if err := conn.Drain(); err != nil {
				logger.Warn("Failed to drain nats connection", zap.Error(err))
			}
		}
		pub := natsbus.NewPublisher(conn, cfg.NATSSubjectPrefix, logger)
		return messaging.NewBreakerPublisher(pub, messaging.DefaultBreakerConfig("nats"), logger), cleanup, nil

	default:
		return messaging.NewLogPublisher(logger), func() {}, nil
	}
}

// ProvideJWTValidator returns nil when no secret is configured; the auth
// middleware then falls back to the development header if allowed.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
}

// ProvideErrorHandler creates the shared HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideServices builds the application services over the selected stores
func ProvideServices(
	cfg *config.Config,
	stores *Stores,
	profileCache ports.Cache,
	publisher ports.EventPublisher,
	logger *zap.Logger,
	metrics *observability.Collector,
) *Services {
	profiles := services.NewProfileResolver(stores.Users, profileCache, cfg.ProfileCacheTTL, logger, metrics)
	notifications := services.NewNotificationService(stores.Notifications, profiles, publisher, logger, metrics, nil)

	return &Services{
		Profiles:      services.NewProfileService(stores.Users),
		Relationships: services.NewRelationshipService(stores.Users, notifications, profiles, publisher, logger, metrics, nil),
		Suggestions:   services.NewSuggestionService(stores.Users, cfg.SuggestionDrawSize, logger),
		Feeds:         services.NewFeedService(stores.Users, stores.Posts, profiles, logger, metrics),
		Content:       services.NewContentService(stores.Users, stores.Posts, notifications, publisher, logger, metrics, nil),
		Notifications: notifications,
	}
}

// Services are the use cases exposed over HTTP
type Services struct {
	Profiles      *services.ProfileService
	Relationships *services.RelationshipService
	Suggestions   *services.SuggestionService
	Feeds         *services.FeedService
	Content       *services.ContentService
	Notifications *services.NotificationService
}
