package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/propertyhub/propertyhub/internal/apiclient"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"45s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	UpstreamURL             string        `envconfig:"UPSTREAM_URL" default:"http://127.0.0.1:8081"`
	UpstreamTimeout         time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
	RateLimitBackoff        time.Duration `envconfig:"UPSTREAM_RATE_LIMIT_BACKOFF" default:"3s"`
	RateLimitMaxRetries     int           `envconfig:"UPSTREAM_RATE_LIMIT_MAX_RETRIES" default:"5"`
	RateLimitMultiplier     float64       `envconfig:"UPSTREAM_RATE_LIMIT_MULTIPLIER" default:"2"`
	WorkspaceCacheSize      int           `envconfig:"WORKSPACE_CACHE_SIZE" default:"1024"`
	CredentialStoragePrefix string        `envconfig:"CREDENTIAL_STORAGE_PREFIX" default:"propertyhub:credential"`
}

// DevAPIConfig configures the in-memory development backend.
type DevAPIConfig struct {
	AppEnv       string        `envconfig:"APP_ENV" default:"development"`
	LogFormat    string        `envconfig:"LOG_FORMAT" default:"pretty"`
	Addr         string        `envconfig:"DEVAPI_ADDR" default:":8081"`
	Secret       string        `envconfig:"DEVAPI_SECRET" default:"propertyhub-dev-secret"`
	TokenTTL     time.Duration `envconfig:"DEVAPI_TOKEN_TTL" default:"15m"`
	RenewalTTL   time.Duration `envconfig:"DEVAPI_REFRESH_TTL" default:"168h"`
	SeedPassword string        `envconfig:"DEVAPI_SEED_PASSWORD" default:"changeme123"`
	LoginLimit   int           `envconfig:"DEVAPI_LOGIN_RATE_LIMIT" default:"20"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.UpstreamURL == "" {
		return nil, errors.New("upstream url must be provided")
	}
	return &cfg, nil
}

// LoadDevAPIConfig reads the development backend settings.
func LoadDevAPIConfig() (*DevAPIConfig, error) {
	var cfg DevAPIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.AppEnv == "production" {
		return nil, errors.New("devapi must not run in production")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// RetryPolicy builds the rate-limit retry policy from configuration.
func (c *Config) RetryPolicy() apiclient.RetryPolicy {
	policy := apiclient.DefaultRetryPolicy
	if c == nil {
		return policy
	}
	if c.RateLimitBackoff > 0 {
		policy.Backoff = c.RateLimitBackoff
	}
	if c.RateLimitMultiplier >= 1 {
		policy.Multiplier = c.RateLimitMultiplier
	}
	policy.MaxRetries = c.RateLimitMaxRetries
	return policy
}
