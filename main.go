package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/config"
	"github.com/princinho/escolaportal/controllers"
	"github.com/princinho/escolaportal/database"
	"github.com/princinho/escolaportal/logger"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/repository/memstore"
	"github.com/princinho/escolaportal/repository/mongostore"
	"github.com/princinho/escolaportal/router"
	"github.com/princinho/escolaportal/services"
	"github.com/princinho/escolaportal/storage"
	"github.com/princinho/escolaportal/utils"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	l := logger.New(cfg.Env)
	if err != nil {
		l.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeStore, err := openStore(ctx, cfg, l)
	if err != nil {
		l.Fatal().Err(err).Msg("store init failed")
	}
	defer closeStore()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("blob store init failed")
	}
	defer closeBlobs()

	auth := services.NewAuthService(repos.Users, repos.Tokens, cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL(), l)
	if err := auth.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		l.Fatal().Err(err).Msg("seed admin failed")
	}

	availability := services.NewAvailabilityService(repos.Availability, cfg.Location(), l)
	requests := services.NewRequestService(repos.Requests, repos.Equipment, availability, map[models.RequestType]time.Duration{
		models.RequestTypeReservation: cfg.HiddenCutoffReservations,
		models.RequestTypePurchase:    cfg.HiddenCutoffPurchases,
		models.RequestTypeSupport:     cfg.HiddenCutoffSupport,
	}, l)
	notifications := services.NewNotificationService(repos.Notifications, cfg.NotificationDisplayLimit, services.RetentionMode(cfg.NotificationRetentionMode), l)
	validator := storage.NewFileValidator(cfg.AllowedFileExtensions, cfg.AllowedFileMimeTypes, cfg.MaxUploadSizeMB)
	notices := services.NewNoticeService(repos.Notices, blobs, validator, cfg.MaxAttachmentsPerNotice, l)

	worker := services.NewOutboxWorker(repos.Outbox, notifications, cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.OutboxMaxAttempts, l)
	go worker.Run(ctx)

	r := router.New(router.Deps{
		Log:            l,
		AllowedOrigins: cfg.Origins(),
		Cookies:        utils.CookieSettings{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure},
		Limits:         controllers.Limits{Default: cfg.DefaultReadQueryLimit, Max: cfg.ReadQueryMaxLimit},
		Auth:           auth,
		Requests:       requests,
		Notifications:  notifications,
		Availability:   availability,
		Equipment:      services.NewEquipmentService(repos.Equipment),
		Notices:        notices,
		ViewedStates:   repos.ViewedStates,
	})

	// no WriteTimeout: /notices/stream holds its response open
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Str("store", cfg.Store).Str("blobs", cfg.BlobBackend).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	l.Info().Msg("shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, l zerolog.Logger) (repository.Repositories, func(), error) {
	if cfg.Store == "memory" {
		l.Warn().Msg("STORE=memory: data is lost on restart")
		return memstore.New().Repositories(), func() {}, nil
	}
	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return repository.Repositories{}, nil, err
	}
	db := client.Database(cfg.DatabaseName)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return repository.Repositories{}, nil, err
	}
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			l.Error().Err(err).Msg("mongo disconnect failed")
		}
	}
	return mongostore.New(db), closeFn, nil
}

func openBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, func(), error) {
	switch cfg.BlobBackend {
	case "r2":
		s, err := storage.NewR2Store(ctx, storage.R2Config{
			Bucket:          cfg.R2Bucket,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			PublicDomain:    cfg.R2PublicDomain,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "gcs":
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return nil, func() {}, nil
}
