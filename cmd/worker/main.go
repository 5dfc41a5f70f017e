package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/millstone-erp/millstone-erp/internal/app"
	"github.com/millstone-erp/millstone-erp/internal/logistics/consolidation"
	"github.com/millstone-erp/millstone-erp/internal/orders"
	"github.com/millstone-erp/millstone-erp/internal/platform/db"
	"github.com/millstone-erp/millstone-erp/jobs"
)

func main() {
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	weightJob := jobs.NewWeightRecalcJob(orders.NewWeightService(pool), logger, nil)
	scanJob := jobs.NewConsolidationScanJob(
		consolidation.NewRepository(pool),
		orders.NewRepository(pool),
		logger,
		nil,
	)

	scanTask, err := jobs.NewConsolidationScanTask(jobs.ConsolidationScanPayload{})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskWeightRecalc, Handler: weightJob.Handle},
			{Type: jobs.TaskConsolidationScan, Handler: scanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ConsolidationScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
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
