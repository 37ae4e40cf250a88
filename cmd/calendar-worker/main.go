package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/log"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting calendar-worker", log.FieldOperation, log.OpStartup)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the calendar worker")
		os.Exit(1)
	}

	db := cli.OpenStorage(logger, cfg.SQLiteDBPath)
	defer db.Close()

	gcal, err := cli.NewCalendar(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Calendar client", log.FieldError, err)
		os.Exit(1)
	}
	if gcal == nil {
		logger.Error("Google Calendar credentials are required for the calendar worker")
		os.Exit(1)
	}
	calSync := worker.NewCalendarSync(db, gcal, logger.WithComponent(log.ComponentCalendar))

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
	})

	logger.Info("Consuming calendar sync requests", "queue", cfg.AMQPQueue, "calendar_id", cfg.GoogleCalendarID)
	if err := amqpClient.ConsumeCalendarSync(ctx, calSync.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Calendar worker stopped")
}
