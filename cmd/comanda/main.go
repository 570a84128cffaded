package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/comanda-pos/comanda-pos/internal/app"
	"github.com/comanda-pos/comanda-pos/internal/delivery"
	"github.com/comanda-pos/comanda-pos/internal/events"
	"github.com/comanda-pos/comanda-pos/internal/finance"
	"github.com/comanda-pos/comanda-pos/internal/inventory"
	"github.com/comanda-pos/comanda-pos/internal/observability"
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

	inventoryService.RegisterSubscriptions(ordersService.Get)
	deliveryService.RegisterSubscriptions(ordersService.Get)
	financeService.RegisterSubscriptions(ordersService.Get)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		OrdersHandler:    orders.NewHandler(logger, ordersService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		FinanceHandler: finance.NewHandler(logger, financeService, func(r *http.Request) (int, error) {
			settled, err := ordersService.ListSettled(r.Context())
			if err != nil {
				return 0, err
			}
			return financeService.SyncAllSettled(r.Context(), settled)
		}),
		DeliveryHandler:  delivery.NewHandler(logger, deliveryService),
		WebOrdersHandler: weborders.NewHandler(logger, webOrdersService),
		JobHandler:       jobs.NewHandler(inspector, queueClient, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		// re-dispatches events published by other instances and the worker
		return bus.Listen(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("runtime", slog.Any("error", err))
		os.Exit(1)
	}
}
