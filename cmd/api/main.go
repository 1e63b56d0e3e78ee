package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"showcase/api/internal/app"
	"showcase/api/internal/assets"
	"showcase/api/internal/config"
	"showcase/api/internal/crm"
	"showcase/api/internal/email"
	"showcase/api/internal/export"
	"showcase/api/internal/pdfgen"
	"showcase/api/internal/session"
	"showcase/api/internal/store"
	"showcase/api/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("showcase api stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "showcase-api", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return err
	}

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	deps := app.Deps{
		Store:     store.NewPostgresStore(db),
		Assets:    assets.NewRelocator(storage),
		Generator: pdfgen.NewClient(cfg.PDFGeneratorURL, cfg.GeneratorToken, cfg.CollaboratorTimeout),
		Forwarder: crm.NewForwarder(cfg.CRMBaseURL, cfg.CollaboratorTimeout, logger),
		Mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
		Exporter: export.NewService(export.ChromeRenderer{Timeout: 30 * time.Second}),
		Logger:   logger,
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
		logger.Info("refresh sessions enabled", "backend", "redis")
	} else {
		logger.Warn("REDIS_URL is empty, refresh tokens disabled")
	}
	if cfg.CRMBaseURL == "" {
		logger.Warn("CRM_BASE_URL is empty, submissions are not forwarded")
	}

	service := app.New(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("showcase api listening", "addr", cfg.Addr, "storage", cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-sigCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg config.Config) (assets.Storage, error) {
	if cfg.StorageBackend == config.StorageMinio {
		return assets.NewMinioStorage(ctx, assets.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	return assets.NewLocalStorage(cfg.UploadsDir)
}
