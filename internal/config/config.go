package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// PublicBaseURL is the externally reachable base URL of this service,
	// used to build the webhook callback URL handed to the provider.
	PublicBaseURL string `env:"PUBLIC_BASE_URL,required"`

	S3       S3Config
	Provider ProviderConfig
	Webhook  WebhookConfig
	Upload   UploadConfig

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`
	ReconcileGrace    time.Duration `env:"RECONCILE_GRACE" envDefault:"15m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config configures the audio object store.
type S3Config struct {
	Endpoint      string        `env:"S3_ENDPOINT"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket        string        `env:"S3_BUCKET,required"`
	Prefix        string        `env:"S3_PREFIX"`
	AccessKey     string        `env:"S3_ACCESS_KEY,required"`
	SecretKey     string        `env:"S3_SECRET_KEY,required"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"2h"`
	PresignMaxTTL time.Duration `env:"S3_PRESIGN_MAX_TTL" envDefault:"6h"`
}

// ProviderConfig configures the AssemblyAI client.
type ProviderConfig struct {
	APIKey  string        `env:"ASSEMBLYAI_API_KEY,required"`
	BaseURL string        `env:"ASSEMBLYAI_BASE_URL" envDefault:"https://api.assemblyai.com"`
	Timeout time.Duration `env:"ASSEMBLYAI_TIMEOUT" envDefault:"30s"`
}

// WebhookConfig configures inbound completion webhook authentication.
// The header name/value pair is registered with the provider at submission
// time and verified on every delivery.
type WebhookConfig struct {
	AuthHeader string `env:"WEBHOOK_AUTH_HEADER" envDefault:"X-Webhook-Secret"`
	AuthSecret string `env:"WEBHOOK_AUTH_SECRET,required"`
}

// UploadConfig bounds accepted audio uploads.
type UploadConfig struct {
	MaxBytes     int64  `env:"UPLOAD_MAX_BYTES" envDefault:"524288000"`
	ContentTypes string `env:"UPLOAD_CONTENT_TYPES" envDefault:"audio/mpeg,audio/mp4,audio/wav,audio/x-wav,audio/ogg,audio/flac,audio/webm"`
}

// AllowedContentTypes returns the parsed content-type allowlist.
func (u UploadConfig) AllowedContentTypes() map[string]bool {
	out := make(map[string]bool)
	for _, ct := range strings.Split(u.ContentTypes, ",") {
		ct = strings.TrimSpace(ct)
		if ct != "" {
			out[strings.ToLower(ct)] = true
		}
	}
	return out
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags can't express.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.PublicBaseURL, "http://") && !strings.HasPrefix(c.PublicBaseURL, "https://") {
		return fmt.Errorf("PUBLIC_BASE_URL must be an absolute http(s) URL, got %q", c.PublicBaseURL)
	}
	if c.S3.PresignExpiry <= 0 {
		return fmt.Errorf("S3_PRESIGN_EXPIRY must be positive, got %s", c.S3.PresignExpiry)
	}
	if c.S3.PresignExpiry > c.S3.PresignMaxTTL {
		return fmt.Errorf("S3_PRESIGN_EXPIRY %s exceeds S3_PRESIGN_MAX_TTL %s", c.S3.PresignExpiry, c.S3.PresignMaxTTL)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive, got %s", c.ReconcileInterval)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.Upload.MaxBytes)
	}
	if len(c.Upload.AllowedContentTypes()) == 0 {
		return fmt.Errorf("UPLOAD_CONTENT_TYPES must list at least one content type")
	}
	return nil
}

// WebhookURL returns the full callback URL registered with the provider.
func (c *Config) WebhookURL() string {
	return strings.TrimSuffix(c.PublicBaseURL, "/") + "/api/v1/webhook"
}
