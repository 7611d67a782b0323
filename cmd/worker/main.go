package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stockcore/stockcore/internal/app"
	"github.com/stockcore/stockcore/internal/inventory"
	"github.com/stockcore/stockcore/internal/platform/cache"
	"github.com/stockcore/stockcore/internal/platform/db"
	"github.com/stockcore/stockcore/internal/shared"
	"github.com/stockcore/stockcore/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	repo := inventory.NewRepository(pool)
	service := inventory.NewService(repo, auditLogger, idempotencyStore, nil, shared.NewKeyedMutex(), nil, nil, inventory.Config{
		AllowNegativeStock: cfg.AllowNegativeStock,
		DefaultStrategy:    inventory.StrategyType(cfg.DefaultStrategy),
		ExpiryAlertDays:    cfg.ExpiryAlertDays,
	})
	ledgerService := inventory.NewLedgerService(repo, nil, shared.NewRedisLock(redisClient, cfg.LedgerLockTTL))

	sweepJob := &jobs.ExpirySweepJob{Service: service, Logger: logger}
	ledgerJob := &jobs.LedgerDailyJob{Ledger: ledgerService, Logger: logger}

	var cron []jobs.CronRegistration
	for _, tenant := range cfg.Tenants {
		sweepTask, err := jobs.NewExpirySweepTask(jobs.ExpirySweepPayload{TenantID: tenant})
		if err != nil {
			logger.Error("build sweep task", slog.Any("error", err))
			os.Exit(1)
		}
		ledgerTask, err := jobs.NewLedgerDailyTask(jobs.LedgerDailyPayload{TenantID: tenant})
		if err != nil {
			logger.Error("build ledger task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron,
			jobs.CronRegistration{Spec: "0 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			jobs.CronRegistration{Spec: "30 0 * * *", Task: ledgerTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeExpirySweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskTypeLedgerDaily, Handler: ledgerJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
