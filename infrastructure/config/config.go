// Package config loads service configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
)

// Event bus backends
const (
	EventBusNone        = "none"
	EventBusEventBridge = "eventbridge"
	EventBusNATS        = "nats"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`
	LogLevel      string `yaml:"log_level"`

	// Persistence
	StoreBackend         string `yaml:"store_backend"`
	AWSRegion            string `yaml:"aws_region"`
	TableName            string `yaml:"table_name"`
	GSI1IndexName        string `yaml:"gsi1_index_name"`
	GSI2IndexName        string `yaml:"gsi2_index_name"`
	DynamoDBEndpoint     string `yaml:"dynamodb_endpoint"`
	TransactionalFollows bool   `yaml:"transactional_follows"`
	DatabaseURL          string `yaml:"database_url"`

	// Events
	EventBus          string `yaml:"event_bus"`
	EventBusName      string `yaml:"event_bus_name"`
	NATSURL           string `yaml:"nats_url"`
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`

	// Cache
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	ProfileCacheTTL time.Duration `yaml:"profile_cache_ttl"`

	// Suggestions
	SuggestionDrawSize int `yaml:"suggestion_draw_size"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Feature flags
	EnableMetrics      bool     `yaml:"enable_metrics"`
	EnableTracing      bool     `yaml:"enable_tracing"`
	OTELEndpoint       string   `yaml:"otel_endpoint"`
	TracingSampleRate  float64  `yaml:"tracing_sample_rate"`
	EnableCORS         bool     `yaml:"enable_cors"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		ServerAddress:      ":8080",
		Environment:        "development",
		LogLevel:           "info",
		StoreBackend:       StoreMemory,
		AWSRegion:          "us-west-2",
		TableName:          "devconsole",
		GSI1IndexName:      "GSI1",
		GSI2IndexName:      "GSI2",
		EventBus:           EventBusNone,
		EventBusName:       "devconsole-events",
		NATSURL:            "nats://127.0.0.1:4222",
		NATSSubjectPrefix:  "devconsole",
		ProfileCacheTTL:    5 * time.Minute,
		SuggestionDrawSize: 10,
		JWTIssuer:          "devconsole",
		EnableMetrics:      true,
		TracingSampleRate:  1.0,
		EnableCORS:         true,
		CORSAllowedOrigins: []string{"*"},
	}
}

// LoadConfig builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.ServerAddress, "SERVER_ADDRESS")
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.StoreBackend, "STORE_BACKEND")
	setString(&c.AWSRegion, "AWS_REGION")
	setString(&c.TableName, "TABLE_NAME")
	setString(&c.GSI1IndexName, "GSI1_INDEX_NAME")
	setString(&c.GSI2IndexName, "GSI2_INDEX_NAME")
	setString(&c.DynamoDBEndpoint, "DYNAMODB_ENDPOINT")
	setBool(&c.TransactionalFollows, "TRANSACTIONAL_FOLLOWS")
	setString(&c.DatabaseURL, "DATABASE_URL")

	setString(&c.EventBus, "EVENT_BUS")
	setString(&c.EventBusName, "EVENT_BUS_NAME")
	setString(&c.NATSURL, "NATS_URL")
	setString(&c.NATSSubjectPrefix, "NATS_SUBJECT_PREFIX")

	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")

	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.JWTIssuer, "JWT_ISSUER")

	setBool(&c.EnableMetrics, "ENABLE_METRICS")
	setBool(&c.EnableTracing, "ENABLE_TRACING")
	setString(&c.OTELEndpoint, "OTEL_ENDPOINT")
	setBool(&c.EnableCORS, "ENABLE_CORS")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}

	if v := os.Getenv("PROFILE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PROFILE_CACHE_TTL %q: %w", v, err)
		}
		c.ProfileCacheTTL = d
	}
	if v := os.Getenv("SUGGESTION_DRAW_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SUGGESTION_DRAW_SIZE %q: %w", v, err)
		}
		c.SuggestionDrawSize = n
	}
	if v := os.Getenv("TRACING_SAMPLE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TRACING_SAMPLE_RATE %q: %w", v, err)
		}
		c.TracingSampleRate = f
	}
	return nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreDynamoDB:
		if c.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.EventBus {
	case EventBusNone:
	case EventBusEventBridge:
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required for eventbridge")
		}
	case EventBusNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required for nats")
		}
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}

	if c.SuggestionDrawSize < 1 {
		return fmt.Errorf("SUGGESTION_DRAW_SIZE must be at least 1")
	}
	if c.ProfileCacheTTL < 0 {
		return fmt.Errorf("PROFILE_CACHE_TTL must not be negative")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value == "true" || value == "1" || value == "yes"
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
