package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/auth"
	"cashflow/internal/cache"
	"cashflow/internal/calendar"
	"cashflow/internal/cli"
	apphttp "cashflow/internal/http"
	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/services"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	db := cli.OpenStorage(logger, cfg.SQLiteDBPath)

	conv, err := cli.NewConverter(cfg, logger)
	if err != nil {
		logger.Error("Failed to configure currency converter", log.FieldError, err)
		os.Exit(1)
	}
	caches := cache.NewManager(logger.WithComponent(log.ComponentCurrency))
	caches.Register(conv.Cache())
	caches.StartCleanup(cfg.RatesCacheTTL)

	// Calendar sync runs in-process unless a broker is configured, in
	// which case cmd/calendar-worker consumes the queue.
	var calSync *worker.CalendarSync
	gcal, err := cli.NewCalendar(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Calendar client", log.FieldError, err)
		os.Exit(1)
	}
	if gcal != nil {
		var store calendar.Store = gcal
		calSync = worker.NewCalendarSync(db, store, logger.WithComponent(log.ComponentCalendar))
		logger.Info("Google Calendar enabled", "calendar_id", cfg.GoogleCalendarID)
	}

	var (
		pub        worker.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		pub = amqpClient
		logger.Info("Calendar sync routed through AMQP", "queue", cfg.AMQPQueue)
	}

	dispatcher := worker.NewDispatcher(
		worker.CalendarHandler(pub, calSync, logger.WithComponent(log.ComponentWorker)),
		cfg.SideEffectWorkers, cfg.SideEffectBuffer, logger.WithComponent(log.ComponentWorker),
	)

	budgets := services.NewBudgetResolver(cfg.ReportingCurrency, logger.WithComponent(log.ComponentBudget))
	ledger := services.NewLedger(db, budgets, conv, dispatcher, logger.WithComponent(log.ComponentLedger))
	categories := services.NewCategories(db, logger.WithComponent(log.ComponentCategory))
	bridge := services.NewBridge(db, budgets, conv, dispatcher, logger.WithComponent(log.ComponentBridge))

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		logger.Error("Failed to configure token verifier", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:       ":" + cfg.Port,
		Ledger:     ledger,
		Categories: categories,
		Bridge:     bridge,
		Tokens:     tokens,
		DB:         db,
		Logger:     logger.WithComponent(log.ComponentHTTP),
		RateLimit:  ratelimit.Config{Requests: cfg.RateLimitPerMinute, Window: time.Minute},
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := dispatcher.Stop(ctx); err != nil {
			logger.Warn("Side-effect queue not drained", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := db.Close(); err != nil {
			logger.Warn("Database close error", log.FieldError, err)
		}
	})
	// Queued side effects drain on shutdown, so they do not share the
	// signal context.
	dispatcher.Start(context.Background())

	logger.Info("Starting cashflow server",
		"port", cfg.Port,
		"reporting_currency", cfg.ReportingCurrency,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
