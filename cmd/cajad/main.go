package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"caja/internal/amqp"
	"caja/internal/cache"
	"caja/internal/cli"
	apphttp "caja/internal/http"
	"caja/internal/log"
	"caja/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(os.Getenv("LOG_LEVEL")))
	logger := cli.SetupLogger(cfg.LogLevel)

	repo := cli.InitSQLite(logger.WithComponent(log.ComponentStorage), cfg)

	ledger := services.NewLedgerService(repo, logger.WithComponent(log.ComponentLedger), services.LedgerServiceConfig{
		ReportCacheSize: cfg.ReportCacheSize,
		ReportCacheTTL:  cfg.ReportCacheTTL,
	})
	defer ledger.Close()

	caches := cache.NewManager()
	caches.Register(ledger.ReportCache())
	if cfg.ReportCacheTTL > 0 {
		caches.StartCleanup(cfg.ReportCacheTTL)
	}
	defer caches.Stop()

	// Events stay pending in the outbox while no broker is configured.
	var outbox *services.OutboxProcessor
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		outbox = services.NewOutboxProcessor(repo, client, services.OutboxProcessorConfig{
			PollInterval: cfg.OutboxPollInterval,
			BatchSize:    cfg.OutboxBatchSize,
			MaxAttempts:  cfg.OutboxMaxAttempts,
		})
	} else {
		logger.Warn("AMQP disabled, ledger events will accumulate in the outbox")
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledger, logger.WithComponent(log.ComponentHTTP), apphttp.Config{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting caja server", "port", cfg.Port, log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := services.NewCycleScheduler(ledger, cfg.CycleSchedulerInterval).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if outbox != nil {
		if err := outbox.Start(gctx); err != nil {
			logger.Error("Failed to start outbox processor", log.FieldError, err)
			os.Exit(1)
		}
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if outbox != nil {
			if err := outbox.Stop(shutdownCtx); err != nil {
				logger.Error("Outbox processor shutdown error", log.FieldError, err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("caja server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("caja server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
