// Package cli provides common CLI initialization utilities shared by
// cmd/cashflow, cmd/calendar-worker and cmd/resync.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cashflow/internal/calendar/google"
	"cashflow/internal/config"
	"cashflow/internal/currency"
	"cashflow/internal/log"
	"cashflow/internal/storage"
)

// SetupLogger builds the process logger at level and installs it as the
// slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStorage opens and migrates the SQLite database at dbPath, exiting on
// failure.
func OpenStorage(logger *log.Logger, dbPath string) *storage.DB {
	db, err := storage.Open(dbPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return db
}

// NewConverter wires the rate sources from cfg: the HTTP API first, then
// the configured fallback table.
func NewConverter(cfg *config.Config, logger *log.Logger) (*currency.Converter, error) {
	var sources []currency.RateSource
	if cfg.RatesAPIURL != "" {
		sources = append(sources, currency.NewHTTPSource(cfg.RatesAPIURL, 10*time.Second))
	}
	if cfg.FallbackRates != "" {
		rates, err := currency.ParseRates(cfg.FallbackRates)
		if err != nil {
			return nil, fmt.Errorf("fallback rates: %w", err)
		}
		sources = append(sources, currency.NewStaticSource(cfg.ReportingCurrency, rates))
	}
	source := currency.NewChainSource(logger.WithComponent(log.ComponentCurrency), sources...)
	return currency.NewConverter(source, cfg.ReportingCurrency, cfg.RatesCacheTTL, logger.WithComponent(log.ComponentCurrency)), nil
}

// NewCalendar connects to Google Calendar, or returns nil when no
// credentials are configured.
func NewCalendar(ctx context.Context, cfg *config.Config, logger *log.Logger) (*google.Client, error) {
	if !cfg.CalendarEnabled() {
		return nil, nil
	}
	creds, err := google.Credentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		return nil, err
	}
	return google.New(ctx, creds, cfg.GoogleCalendarID, logger.WithComponent(log.ComponentCalendar))
}

// GracefulShutdown cancels the returned context on SIGINT or SIGTERM, then
// runs cleanup bounded by timeout. done is closed once cleanup returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
