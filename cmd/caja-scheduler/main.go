// Command caja-scheduler activates planned cycles whose start date has come.
// cajad runs the same loop in-process; this binary serves deployments that
// prefer a cron job (-once) or a dedicated scheduler process. Activation is a
// compare-and-set on the cycle status, so running both is harmless.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"caja/internal/cli"
	"caja/internal/log"
	"caja/internal/services"
)

func main() {
	once := flag.Bool("once", false, "activate due cycles once and exit")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(os.Getenv("LOG_LEVEL")))
	root := cli.SetupLogger(cfg.LogLevel)
	logger := root.WithComponent(log.ComponentScheduler)

	repo := cli.InitSQLite(root.WithComponent(log.ComponentStorage), cfg)
	ledger := services.NewLedgerService(repo, root.WithComponent(log.ComponentLedger), services.LedgerServiceConfig{})
	defer ledger.Close()

	scheduler := services.NewCycleScheduler(ledger, cfg.CycleSchedulerInterval)

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.TxTimeout*2)
		defer cancel()

		count, err := scheduler.ActivateDueCycles(ctx, time.Now())
		if err != nil {
			logger.Error("Cycle activation failed", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Cycle activation complete", "activated", count)
		return
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	logger.Info("Starting caja-scheduler",
		"interval", cfg.CycleSchedulerInterval,
		"sqlite_db", cfg.SQLiteDBPath,
		log.FieldOperation, log.OpStartup)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scheduler stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("caja-scheduler stopped", log.FieldOperation, log.OpShutdown)
}
