package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liquidintel/taplist/pkg/activity"
	"github.com/liquidintel/taplist/pkg/api"
	"github.com/liquidintel/taplist/pkg/auth"
	"github.com/liquidintel/taplist/pkg/config"
	"github.com/liquidintel/taplist/pkg/directory"
	"github.com/liquidintel/taplist/pkg/identity"
	"github.com/liquidintel/taplist/pkg/inventory"
	"github.com/liquidintel/taplist/pkg/observability"
	"github.com/liquidintel/taplist/pkg/storage"
	"github.com/liquidintel/taplist/pkg/untappd"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting taplist api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("taplist api exited with error")
		os.Exit(1)
	}
	logger.Info("taplist api stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		observability.ShutdownOTel(shutdownCtx, otelProviders, logger)
	}()

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connection established")

	maintenance := storage.NewMaintenance(db, logger, metrics)
	if err := maintenance.Start(); err != nil {
		return err
	}
	defer maintenance.Stop()

	graph := directory.NewClient(cfg.Directory, logger, metrics)
	membership := directory.NewGroupMembership(graph, cfg.Directory.AuthorizedGroups)
	adminCache := auth.NewAdminCache(membership, auth.AdminCacheOptions{
		TTL:  cfg.Directory.AdminCacheTTL,
		Size: cfg.Directory.AdminCacheSize,
	}, logger, metrics)

	validator, err := auth.NewOIDCValidator(ctx, cfg.Directory)
	if err != nil {
		return err
	}

	apiKeys := auth.NewAPIKeyVerifier(db, logger, metrics)
	bearer := auth.NewBearerVerifier(validator, adminCache, logger, metrics)

	var catalog inventory.BeerCatalog
	if cfg.Untappd.Enabled() {
		catalog = untappd.NewClient(cfg.Untappd)
		logger.Info("beer catalog enrichment enabled")
	}

	server := api.NewServer(api.Options{
		Inventory:     inventory.NewService(db, catalog, logger, metrics),
		Identity:      identity.NewService(db, membership, cfg.Directory.Tenant, logger, metrics),
		Activity:      activity.NewService(db, logger, metrics),
		BasicAuth:     auth.RequireAPIKey(apiKeys, logger),
		BearerAuth:    auth.RequireBearer(bearer, logger),
		Logger:        logger,
		Metrics:       metrics,
		EnableTracing: cfg.Observability.OTelEnabled,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("api server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("health server shutdown failed")
	}
	return nil
}
