// Package main is the entry point of the Progress Hub HTTP service.
//
// The service accepts learning events, keeps one daily summary per student
// and day, and serves the derived views: streak, confidence, rewards,
// topic analysis and the combined dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/progress-hub/config"
	"github.com/alem-hub/progress-hub/internal/app"
	httpapi "github.com/alem-hub/progress-hub/internal/interface/http"
	"github.com/alem-hub/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := app.NewLogger(cfg.Observability, cfg.App.Name)
	defer func() { _ = log.Sync() }()

	log.Info("starting Progress Hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("store", string(cfg.App.Store)),
		logger.Bool("redis_locks", !cfg.Redis.Disabled),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORES, LOCKS, EVENT BUS, HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		log.Info("releasing resources")
		application.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		EnableCORS:     cfg.HTTP.EnableCORS,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		EnableMetrics:  cfg.HTTP.EnableMetrics,
	}, httpapi.Dependencies{
		IngestEventHandler:      application.Ingest,
		GetStudentHandler:       application.Student,
		GetStreakHandler:        application.Streak,
		GetConfidenceHandler:    application.Confidence,
		SettleRewardsHandler:    application.Rewards,
		GetDashboardHandler:     application.Dashboard,
		GetTopicAnalysisHandler: application.Analysis,
		Validator:               application.Validator,
		Logger:                  log,
		HealthChecker:           application.Health,
		Metrics:                 application.Metrics,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 5. RUN UNTIL SIGNAL, THEN SHUT DOWN GRACEFULLY
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}
