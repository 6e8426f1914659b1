package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/auditdesk/internal/auditing"
	"github.com/rpattn/auditdesk/internal/config"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/rpattn/auditdesk/internal/export"
	"github.com/rpattn/auditdesk/internal/httpapi"
	"github.com/rpattn/auditdesk/internal/ingestion"
	"github.com/rpattn/auditdesk/internal/logging"
	"github.com/rpattn/auditdesk/internal/mapview"
	"github.com/rpattn/auditdesk/internal/metrics"
	"github.com/rpattn/auditdesk/internal/questionnaire"
	"github.com/rpattn/auditdesk/internal/repository"
	"github.com/rpattn/auditdesk/internal/users"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Migrations.Auto {
		if err := db.RunMigrations(cfg.Database, logger); err != nil {
			return err
		}
	}

	m := metrics.New()
	store := repository.NewStore(conn.Pool, logger)

	auditSvc := auditing.NewService(store, auditing.WithLogger(logger), auditing.WithMetrics(m))
	userSvc := users.NewService(store,
		users.WithLogger(logger),
		users.WithSessionTTL(cfg.Auth.SessionTTL),
		users.WithBcryptCost(cfg.Auth.BcryptCost),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Store:          store,
		Questionnaires: questionnaire.NewService(store, questionnaire.WithLogger(logger), questionnaire.WithMetrics(m)),
		Auditing:       auditSvc,
		MapView:        mapview.NewService(store, logger),
		Export:         export.NewService(store, export.WithLogger(logger), export.WithMetrics(m)),
		Ingestion:      ingestion.NewService(store, auditSvc.Engine(), ingestion.WithLogger(logger), ingestion.WithMetrics(m)),
		Users:          userSvc,
		Logger:         logger,
		Metrics:        m,
		DB:             conn,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go purgeSessions(ctx, userSvc, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

// purgeSessions drops expired login sessions hourly until ctx ends.
func purgeSessions(ctx context.Context, svc *users.Service, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Warn("purge expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}
