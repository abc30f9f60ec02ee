// Package config loads host and provider settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
	"github.com/ajitpratap0/mcp-userhub/pkg/store"
)

// Logging selects the log level and format. ENV: LOG_LEVEL, LOG_FORMAT
type Logging struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
}

// NewLogger builds a logger writing to w.
func (c Logging) NewLogger(w io.Writer) (logging.Logger, error) {
	return logging.NewFromConfig(logging.Config{Level: c.Level, Format: c.Format, Output: w})
}

// Tracing configures the OpenTelemetry exporter.
type Tracing struct {
	Exporter    string  `env:"OTEL_EXPORTER,default=noop"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE,default=true"`
	SampleRate  float64 `env:"OTEL_SAMPLE_RATE,default=1"`
	Environment string  `env:"DEPLOY_ENV,default=development"`
}

// NewProvider builds a tracing provider for service.
func (c Tracing) NewProvider(service, version string) (*observability.TracingProvider, error) {
	return observability.NewTracingProvider(observability.TracingConfig{
		ServiceName:    service,
		ServiceVersion: version,
		Environment:    c.Environment,
		ExporterType:   observability.ExporterType(c.Exporter),
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	})
}

// Store backends
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store selects where user records live.
type Store struct {
	Backend     string `env:"STORE_BACKEND,default=file"`
	Path        string `env:"STORE_PATH,default=users.json"`
	RedisAddr   string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPrefix string `env:"REDIS_KEY_PREFIX,default=userhub:"`
}

// Open connects to the configured backend. A Redis backend is pinged
// before it is returned.
func (c Store) Open(ctx context.Context) (store.Store, error) {
	switch strings.ToLower(c.Backend) {
	case "", BackendFile:
		return store.NewFileStore(c.Path)
	case BackendMemory:
		return store.NewMemoryStore(), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", c.RedisAddr, err)
		}
		return store.NewRedisStore(store.RedisConfig{Client: client, KeyPrefix: c.RedisPrefix})
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Backend)
	}
}

// Provider is the provider process configuration.
type Provider struct {
	Log     Logging
	Tracing Tracing
	Store   Store

	// MetricsAddr serves /metrics when set, e.g. ":9464".
	MetricsAddr    string        `env:"METRICS_ADDR"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=60s"`
}

// Host is the interactive host configuration.
type Host struct {
	Log     Logging
	Tracing Tracing

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL,default=gemini-2.0-flash"`

	// ProviderCommand is the provider binary the host spawns.
	ProviderCommand string   `env:"PROVIDER_COMMAND,default=userhub-provider"`
	ProviderArgs    []string `env:"PROVIDER_ARGS"`

	AgentMaxIterations int           `env:"AGENT_MAX_ITERATIONS,default=8"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT,default=60s"`
	MetricsAddr        string        `env:"METRICS_ADDR"`
}

// LoadProvider reads the provider configuration from the environment.
func LoadProvider() (*Provider, error) {
	var cfg Provider
	if err := decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadHost reads the host configuration from the environment. It fails
// when GEMINI_API_KEY is missing.
func LoadHost() (*Host, error) {
	var cfg Host
	if err := decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envdecode cannot.
func (c *Provider) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case BackendFile, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of file, memory, redis; got %q", c.Store.Backend)
	}
	if c.Store.Backend == BackendFile && c.Store.Path == "" {
		return errors.New("STORE_PATH is required for the file backend")
	}
	return nil
}

// Validate checks values envdecode cannot.
func (c *Host) Validate() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is required")
	}
	if c.ProviderCommand == "" {
		return errors.New("PROVIDER_COMMAND is required")
	}
	if c.AgentMaxIterations <= 0 {
		return fmt.Errorf("AGENT_MAX_ITERATIONS must be positive, got %d", c.AgentMaxIterations)
	}
	return nil
}

// decode fills target from the environment. Running with nothing set is
// fine; every field has a default or is validated afterwards.
func decode(target interface{}) error {
	err := envdecode.Decode(target)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}
