// Package bootstrap builds the long lived dependencies shared by the HTTP
// server and the operator CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/ravigill3969/image-converter/backend/apikeys"
	"github.com/ravigill3969/image-converter/backend/config"
	"github.com/ravigill3969/image-converter/backend/database"
	"github.com/ravigill3969/image-converter/backend/media"
	"github.com/ravigill3969/image-converter/backend/repository"
	"github.com/ravigill3969/image-converter/backend/sessions"
	"github.com/ravigill3969/image-converter/backend/tracker"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Repositories struct {
	DB     *sql.DB
	Images repository.ImageRepository
	Keys   apikeys.Repository
}

// OpenRepositories connects to Postgres and applies pending migrations when
// migrate is set. Without DATABASE_URL everything lives in memory and is lost
// on restart.
func OpenRepositories(ctx context.Context, cfg *config.Properties, migrate bool, log logrus.FieldLogger) (*Repositories, error) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		log.Warn("DATABASE_URL not set, using in-memory repositories")
		return &Repositories{
			Images: repository.NewMemoryImageRepository(),
			Keys:   apikeys.NewMemoryRepository(),
		}, nil
	}

	if migrate {
		if err := database.Migrate(cfg.DatabaseURL, database.DirectionUp); err != nil {
			return nil, err
		}
		log.Info("database migrations applied")
	}

	db, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		DB:     db,
		Images: repository.NewPostgresImageRepository(db),
		Keys:   apikeys.NewPostgresRepository(db),
	}, nil
}

func (r *Repositories) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewMediaStore picks the object store named by MEDIA_BACKEND.
func NewMediaStore(cfg *config.Properties) (media.Store, error) {
	switch cfg.Media.Backend {
	case "s3":
		return media.NewS3Store(cfg.AWS)
	case "minio":
		return media.NewMinioStore(cfg.Minio)
	}
	return nil, fmt.Errorf("unknown media backend %q", cfg.Media.Backend)
}

func NewMediaService(cfg *config.Properties, log logrus.FieldLogger) (*media.Service, error) {
	store, err := NewMediaStore(cfg)
	if err != nil {
		return nil, err
	}
	transformer := media.NewHTTPTransformer(cfg.Media.TransformURL, store.Bucket(), &http.Client{
		Timeout: cfg.Media.UpstreamTimeout,
	})
	return media.NewService(store, transformer, cfg.Media.UpstreamTimeout, cfg.Media.ArchiveURLTTL, log), nil
}

func NewTracker(cfg *config.Properties, rdb redis.Cmdable, repos *Repositories, mediaSvc tracker.MediaService, log logrus.FieldLogger) *tracker.Tracker {
	return tracker.New(
		sessions.NewStore(rdb, cfg.Session.TTL),
		sessions.NewTokenCodec(cfg.Session.Secret),
		repos.Images,
		mediaSvc,
		cfg.Media.MaxUploadBytes,
		log,
	)
}

func NewAPIKeys(cfg *config.Properties, repos *Repositories, log logrus.FieldLogger) (*apikeys.Service, error) {
	return apikeys.NewService(repos.Keys, cfg.APIKey.BcryptCost, log)
}
