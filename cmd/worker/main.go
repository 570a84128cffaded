package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/comanda-pos/comanda-pos/internal/app"
	"github.com/comanda-pos/comanda-pos/internal/delivery"
	"github.com/comanda-pos/comanda-pos/internal/events"
	"github.com/comanda-pos/comanda-pos/internal/finance"
	"github.com/comanda-pos/comanda-pos/internal/inventory"
	"github.com/comanda-pos/comanda-pos/internal/orders"
	"github.com/comanda-pos/comanda-pos/internal/platform/db"
	"github.com/comanda-pos/comanda-pos/internal/platform/store"
	"github.com/comanda-pos/comanda-pos/internal/weborders"
	"github.com/comanda-pos/comanda-pos/jobs"
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := finance.EnsureSchema(ctx, pool); err != nil {
		logger.Error("ensure ledger schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := store.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	recordStore := store.NewStore(redisClient, logger)
	bus := events.NewBus(redisClient, logger)

	ordersService := orders.NewService(orders.NewRepository(recordStore, logger), bus, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(recordStore, logger), bus, logger, cfg.InventoryAllowNegative)
	financeService := finance.NewService(finance.NewRepository(pool), bus, logger)
	deliveryService := delivery.NewService(delivery.NewRepository(recordStore, logger), bus, logger,
		func(ctx context.Context, orderID string, to orders.Status) error {
			_, err := ordersService.UpdateStatus(ctx, orderID, to)
			return err
		})
	webOrdersService := weborders.NewService(weborders.NewRepository(recordStore, logger), ordersService, bus, logger)

	// the worker consumes the broadcast stream, so orders settled by an API
	// instance still trigger inventory and settlement handlers here
	inventoryService.RegisterSubscriptions(ordersService.Get)
	deliveryService.RegisterSubscriptions(ordersService.Get)
	financeService.RegisterSubscriptions(ordersService.Get)

	expiryTask, err := jobs.NewWebOrderExpiryTask(cfg.WebOrderTTL)
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Tasks: &jobs.Tasks{
			Orders:    ordersService,
			Finance:   financeService,
			Inventory: inventoryService,
			WebOrders: webOrdersService,
			Logger:    logger,
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.FinanceSyncSchedule, Task: jobs.NewFinanceSyncTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.WebOrderExpirySchedule, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.LowStockSchedule, Task: jobs.NewLowStockReportTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting worker")
		return worker.Run(gctx)
	})

	g.Go(func() error {
		return bus.Listen(gctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
