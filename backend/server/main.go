package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ravigill3969/image-converter/backend/bootstrap"
	"github.com/ravigill3969/image-converter/backend/config"
	"github.com/ravigill3969/image-converter/backend/handlers"
	"github.com/ravigill3969/image-converter/backend/logger"
	middleware "github.com/ravigill3969/image-converter/backend/middlewares"
	"github.com/ravigill3969/image-converter/backend/routes"
	"github.com/ravigill3969/image-converter/backend/tracker"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Error loading config: %s", err)
	}

	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := bootstrap.OpenRepositories(ctx, cfg, true, log)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer func() {
		if closeErr := repos.Close(); closeErr != nil {
			log.WithError(closeErr).Error("error closing database connection")
		}
	}()

	redisClient, err := bootstrap.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}
	defer redisClient.Close()

	mediaSvc, err := bootstrap.NewMediaService(cfg, log)
	if err != nil {
		log.Fatalf("Media backend failed: %v", err)
	}

	imageTracker := bootstrap.NewTracker(cfg, redisClient, repos, mediaSvc, log)
	keys, err := bootstrap.NewAPIKeys(cfg, repos, log)
	if err != nil {
		log.Fatalf("API keys: %v", err)
	}

	mux := http.NewServeMux()

	imageHandler := &handlers.ImageHandler{
		Tracker:        imageTracker,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		Log:            log,
	}
	adminHandler := &handlers.AdminHandler{
		Keys:    keys,
		Tracker: imageTracker,
		Log:     log,
	}

	sessionAuth := middleware.NewSessionAuth(imageTracker, middleware.CookieOptions{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.Secure,
	}, log)

	routes.ImageRoutes(mux, imageHandler, sessionAuth)
	routes.AdminRoutes(mux, adminHandler, middleware.NewAPIKeyAuth(keys, cfg.APIKey.Header, log))
	routes.SystemRoutes(mux)

	limiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window, log)
	handler := middleware.RequestLogger(log)(
		middleware.CORS(cfg.Server.AllowedOrigin)(
			middleware.SetCommonHeaders(
				limiter.Middleware(mux),
			),
		),
	)

	go runPurgeLoop(ctx, imageTracker, cfg.Purge.Interval, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("server is running on http://localhost:%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// runPurgeLoop removes expired sessions' images every interval until ctx ends.
func runPurgeLoop(ctx context.Context, t *tracker.Tracker, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := t.PurgeExpired(ctx, now.UTC()); err != nil {
				log.WithError(err).Error("purge failed")
			}
		}
	}
}
