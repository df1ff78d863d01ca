package main

import (
	"context"
	"fmt"
	"time"

	"spendir/internal/amqp"
	"spendir/internal/cli"
	"spendir/internal/log"
	"spendir/internal/sheets"
	gsheet "spendir/internal/sheets/google"
	"spendir/internal/sheets/memory"
	"spendir/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting spendir-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitRepository(logger, cfg.SQLiteDBPath)

	zone := time.FixedZone(fmt.Sprintf("UTC%+d", cfg.TimezoneOffset), cfg.TimezoneOffset*3600)

	// The journal target: Google Sheets when configured, in-memory
	// otherwise so the pipeline stays exercisable locally.
	var journal sheets.JournalWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, zone)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			journal = memory.New()
			logger.Warn("Falling back to in-memory journal")
		} else {
			journal = client
			logger.Info("Google Sheets journal initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		}
	} else {
		journal = memory.New()
		logger.Info("Journal mirroring to memory - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
	}

	syncWorker := worker.NewSyncWorker(repo, journal, cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if amqpClient != nil {
			amqpClient.Close()
		}
		if err := repo.Close(); err != nil {
			logger.Error("Closing repository failed", log.FieldError, err)
		}
	})

	// On startup, process any pending spends that might have been missed
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
		// Don't exit - continue with normal operation
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeSpendEvents(ctx, func(msg *amqp.SpendEventMessage) error {
				return syncWorker.HandleEvent(ctx, msg)
			})
			if err != nil && err != context.Canceled {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP consumption - relying on the periodic backup pass")
	}

	// Periodic backup pass for any missed messages
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.ProcessPendingSpends(ctx); err != nil {
					logger.Error("Periodic sync failed", log.FieldError, err)
				}
			}
		}
	}()

	logger.Info("Worker running", "sync_interval", cfg.SyncInterval.String())
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
