package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendir/internal/amqp"
	"spendir/internal/bot"
	"spendir/internal/cli"
	"spendir/internal/core"
	"spendir/internal/log"
	"spendir/internal/rates"
	"spendir/internal/schedule"
	"spendir/internal/telegram"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentApp)
	logger.Info("Starting spendir")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.TelegramToken == "" {
		logger.Error("TELEGRAM_TOKEN is required")
		os.Exit(1)
	}

	repo := cli.InitRepository(logger, cfg.SQLiteDBPath)

	table := core.NewTable(core.DefaultCurrency)
	agg := core.NewAggregator(table)
	agg.Zone = time.FixedZone(fmt.Sprintf("UTC%+d", cfg.TimezoneOffset), cfg.TimezoneOffset*3600)

	// The publisher is optional: without it the journal worker still
	// picks rows up through its pending-sync backup pass.
	var publisher bot.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client, continuing without publishing", log.FieldError, err)
		} else {
			amqpClient = client
			publisher = client
		}
	}

	tg := telegram.NewClient(cfg.TelegramToken, cfg.TelegramAPIBase, logger.WithComponent(log.ComponentTelegram))

	ctx, _ := cli.GracefulShutdown(logger, 30*time.Second, nil)

	username := ""
	if me, err := tg.Me(ctx); err != nil {
		logger.Warn("Could not resolve bot username, @-suffixed commands disabled", log.FieldError, err)
	} else {
		username = me.Username
		logger.Info("Resolved bot account", "username", username)
	}

	b := bot.New(bot.Options{
		Storage:      repo,
		Transport:    tg,
		Publisher:    publisher,
		Table:        table,
		Aggregator:   agg,
		Username:     username,
		MessageLimit: cfg.MessageLimit,
		Logger:       logger.WithComponent(log.ComponentBot),
	})

	refresher := rates.NewRefresher(
		rates.NewClient(cfg.RatesURL),
		table,
		24*time.Hour,
		logger.WithComponent(log.ComponentRates),
	)
	daily := schedule.NewDaily(agg.Zone, b.DailyJob, logger.WithComponent(log.ComponentScheduler))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tg.Listen(ctx, b.HandleMessage)
	})
	g.Go(func() error {
		refresher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		daily.Run(ctx)
		return nil
	})

	err := g.Wait()

	if amqpClient != nil {
		amqpClient.Close()
	}
	if cerr := repo.Close(); cerr != nil {
		logger.Error("Closing repository failed", log.FieldError, cerr)
	}

	if err != nil && err != context.Canceled {
		logger.Error("Bot stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Bot stopped gracefully")
}
