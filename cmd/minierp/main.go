package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mini-erp/mini-erp/internal/accounting"
	"github.com/mini-erp/mini-erp/internal/app"
	"github.com/mini-erp/mini-erp/internal/ar"
	"github.com/mini-erp/mini-erp/internal/fx"
	"github.com/mini-erp/mini-erp/internal/notify"
	"github.com/mini-erp/mini-erp/internal/observability"
	"github.com/mini-erp/mini-erp/internal/partners"
	"github.com/mini-erp/mini-erp/internal/platform/db"
	"github.com/mini-erp/mini-erp/internal/projects"
	"github.com/mini-erp/mini-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns, MaxConnLifetime: time.Hour})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("close inspector", slog.Any("error", err))
		}
	}()
	queue := asynq.NewClient(redisOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("close queue client", slog.Any("error", err))
		}
	}()

	accountingService := accounting.NewService(accounting.NewRepository(pool), logger, accounting.ServiceConfig{BaseCurrency: cfg.BaseCurrency})
	arService := ar.NewService(ar.NewRepository(pool), logger, ar.ServiceConfig{BaseCurrency: cfg.BaseCurrency})
	partnersService := partners.NewService(partners.NewRepository(pool), logger)
	projectsService := projects.NewService(projects.NewRepository(pool), logger)
	notifyService := notify.NewService(notify.NewRepository(pool))
	fxService := fx.NewService(fx.NewRepository(pool), cfg.BaseCurrency)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountingHandler: accounting.NewHandler(logger, accountingService),
		ARHandler:         ar.NewHandler(logger, arService),
		PartnersHandler:   partners.NewHandler(logger, partnersService),
		ProjectsHandler:   projects.NewHandler(logger, projectsService),
		NotifyHandler:     notify.NewHandler(logger, notifyService),
		FXHandler:         fx.NewHandler(logger, fxService),
		JobHandler:        jobs.NewHandler(inspector, queue, logger),
		Metrics:           observability.NewMetrics(),
		Database:          pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("base_currency", cfg.BaseCurrency))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
