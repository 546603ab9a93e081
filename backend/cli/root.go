// Package cli is imgctl, the operator command line for the image service.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ravigill3969/image-converter/backend/apikeys"
	"github.com/ravigill3969/image-converter/backend/bootstrap"
	"github.com/ravigill3969/image-converter/backend/config"
	"github.com/ravigill3969/image-converter/backend/database"
	"github.com/ravigill3969/image-converter/backend/logger"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type KeyService interface {
	Create(ctx context.Context, name string) (*models.IssuedAPIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	Revoke(ctx context.Context, prefix string) error
}

type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Backend opens only what a command needs, so "migrate" works without Redis
// or object storage credentials.
type Backend interface {
	Keys(ctx context.Context) (KeyService, error)
	Purger(ctx context.Context) (Purger, error)
	Migrate(direction string) error
	Close() error
}

var (
	appBackend Backend
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "imgctl",
	Short: "Operate the image conversion service",
	Long: `imgctl manages API keys, purges expired images and runs database
migrations against the same configuration the server reads.`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeApp,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appBackend == nil {
			return nil
		}
		return appBackend.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(migrateCmd)
}

func initializeApp(cmd *cobra.Command, args []string) error {
	if appBackend != nil {
		return nil
	}
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	appBackend = &configBackend{cfg: cfg, log: logger.New(logLevel, cfg.IsProduction())}
	return nil
}

func getContext() context.Context {
	if ctx := rootCmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// configBackend builds dependencies from the environment on first use.
type configBackend struct {
	cfg   *config.Properties
	log   logrus.FieldLogger
	repos *bootstrap.Repositories
	rdb   *redis.Client
}

func (b *configBackend) repositories(ctx context.Context) (*bootstrap.Repositories, error) {
	if b.repos != nil {
		return b.repos, nil
	}
	if b.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	repos, err := bootstrap.OpenRepositories(ctx, b.cfg, false, b.log)
	if err != nil {
		return nil, err
	}
	b.repos = repos
	return repos, nil
}

func (b *configBackend) Keys(ctx context.Context) (KeyService, error) {
	repos, err := b.repositories(ctx)
	if err != nil {
		return nil, err
	}
	return apikeys.NewService(repos.Keys, b.cfg.APIKey.BcryptCost, b.log)
}

func (b *configBackend) Purger(ctx context.Context) (Purger, error) {
	repos, err := b.repositories(ctx)
	if err != nil {
		return nil, err
	}
	rdb, err := bootstrap.NewRedis(ctx, b.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	b.rdb = rdb
	mediaSvc, err := bootstrap.NewMediaService(b.cfg, b.log)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewTracker(b.cfg, rdb, repos, mediaSvc, b.log), nil
}

func (b *configBackend) Migrate(direction string) error {
	return database.Migrate(b.cfg.DatabaseURL, direction)
}

func (b *configBackend) Close() error {
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
	if b.repos != nil {
		return b.repos.Close()
	}
	return nil
}
