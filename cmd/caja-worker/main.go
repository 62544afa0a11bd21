package main

import (
	"context"
	"errors"
	"os"

	"caja/internal/amqp"
	"caja/internal/backend"
	"caja/internal/cli"
	"caja/internal/log"
	"caja/internal/worker"
)

const seenEvents = 4096

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(os.Getenv("LOG_LEVEL")))
	root := cli.SetupLogger(cfg.LogLevel)
	logger := root.WithComponent(log.ComponentWorker)

	logger.Info("Starting caja-worker", log.FieldOperation, log.OpStartup)

	if cfg.AMQPURL == "" {
		logger.Error("caja-worker requires AMQP_URL")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid journal backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	journal, err := backend.NewFactory(root).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize journal backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	defer journal.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewJournalWorker(journal.Journal, seenEvents)
	logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue, "backend", backendCfg.Type)
	if err := w.Run(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Journal worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("caja-worker stopped gracefully", log.FieldOperation, log.OpShutdown)
}
