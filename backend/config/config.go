// Package config loads service configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type (
	Properties struct {
		Env      string `env:"APP_ENV" envDefault:"development"`
		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
		// DatabaseURL empty runs on the in-memory repositories; development only.
		DatabaseURL string `env:"DATABASE_URL"`
		RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

		Server    HTTPServerProperties `envPrefix:"HTTP_"`
		Session   SessionProperties    `envPrefix:"SESSION_"`
		Media     MediaProperties      `envPrefix:"MEDIA_"`
		AWS       AWSProperties        `envPrefix:"AWS_"`
		Minio     MinioProperties      `envPrefix:"MINIO_"`
		RateLimit RateLimitProperties  `envPrefix:"RATE_LIMIT_"`
		APIKey    APIKeyProperties     `envPrefix:"API_KEY_"`
		Purge     PurgeProperties      `envPrefix:"PURGE_"`
	}

	HTTPServerProperties struct {
		Port            string        `env:"PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
		AllowedOrigin   string        `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`
	}

	SessionProperties struct {
		Secret     string        `env:"SECRET"`
		TTL        time.Duration `env:"TTL" envDefault:"30m"`
		CookieName string        `env:"COOKIE_NAME" envDefault:"image_session"`
		Secure     bool          `env:"COOKIE_SECURE" envDefault:"true"`
	}

	MediaProperties struct {
		// Backend is "s3" or "minio".
		Backend         string        `env:"BACKEND" envDefault:"s3"`
		TransformURL    string        `env:"TRANSFORM_URL"`
		UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
		ArchiveURLTTL   time.Duration `env:"ARCHIVE_URL_TTL" envDefault:"15m"`
		MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	}

	AWSProperties struct {
		Region    string `env:"REGION"`
		Bucket    string `env:"BUCKET_NAME"`
		AccessKey string `env:"S3_BUCKET_ACCESS_KEY"`
		SecretKey string `env:"S3_BUCKET_SECRET_ACCESS_KEY"`
		// CDNDomain, when set, replaces the bucket host in public asset URLs.
		CDNDomain string `env:"CLOUDFRONT_DOMAIN"`
	}

	MinioProperties struct {
		Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		Bucket    string `env:"BUCKET" envDefault:"images"`
		UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	}

	RateLimitProperties struct {
		Requests int           `env:"REQUESTS" envDefault:"100"`
		Window   time.Duration `env:"WINDOW" envDefault:"1m"`
	}

	APIKeyProperties struct {
		Header     string `env:"HEADER" envDefault:"X-Api-Key"`
		BcryptCost int    `env:"BCRYPT_COST" envDefault:"12"`
	}

	PurgeProperties struct {
		Interval time.Duration `env:"INTERVAL" envDefault:"5m"`
	}
)

// Load reads .env when present, parses the environment into Properties and
// validates everything the HTTP server needs.
func Load() (*Properties, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load without validation. The CLI uses it because most commands
// only need the database.
func Parse() (*Properties, error) {
	_ = godotenv.Load(".env")

	cfg := &Properties{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed by the HTTP server.
func (p *Properties) Validate() error {
	if p.Session.Secret == "" {
		return errors.New("config: SESSION_SECRET is required")
	}
	if p.Session.TTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	switch p.Media.Backend {
	case "s3":
		if p.AWS.Region == "" || p.AWS.Bucket == "" {
			return errors.New("config: AWS_REGION and AWS_BUCKET_NAME are required for the s3 backend")
		}
		if p.AWS.AccessKey == "" || p.AWS.SecretKey == "" {
			return errors.New("config: AWS credentials are required for the s3 backend")
		}
	case "minio":
		if p.Minio.AccessKey == "" || p.Minio.SecretKey == "" {
			return errors.New("config: MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio backend")
		}
	default:
		return fmt.Errorf("config: unknown MEDIA_BACKEND %q", p.Media.Backend)
	}
	if p.Media.TransformURL == "" {
		return errors.New("config: MEDIA_TRANSFORM_URL is required")
	}
	if p.Media.MaxUploadBytes <= 0 {
		return errors.New("config: MEDIA_MAX_UPLOAD_BYTES must be positive")
	}
	if p.RateLimit.Requests <= 0 || p.RateLimit.Window <= 0 {
		return errors.New("config: RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if p.Purge.Interval <= 0 {
		return errors.New("config: PURGE_INTERVAL must be positive")
	}
	if p.APIKey.BcryptCost < 4 || p.APIKey.BcryptCost > 31 {
		return errors.New("config: API_KEY_BCRYPT_COST must be between 4 and 31")
	}
	return nil
}

func (p *Properties) IsProduction() bool {
	return p.Env == "production"
}
