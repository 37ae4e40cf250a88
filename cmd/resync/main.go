// Command resync re-runs the subscription bridge for one user's clients
// and suppliers. Runs are idempotent, so it is safe to schedule.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"cashflow/internal/cli"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

func main() {
	var (
		userID  = flag.String("user", "", "user whose subscriptions are synced (required)")
		role    = flag.String("role", "all", "client, supplier or all")
		oneYear = flag.Bool("default-end", false, "materialize open-ended subscriptions one year ahead")
		timeout = flag.Duration("timeout", 5*time.Minute, "overall deadline")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentBridge)

	if *userID == "" {
		logger.Error("-user is required")
		os.Exit(2)
	}

	var roles []core.EntityRole
	switch *role {
	case "all":
		roles = []core.EntityRole{core.RoleClient, core.RoleSupplier}
	case string(core.RoleClient), string(core.RoleSupplier):
		roles = []core.EntityRole{core.EntityRole(*role)}
	default:
		logger.Error("-role must be client, supplier or all", "role", *role)
		os.Exit(2)
	}

	db := cli.OpenStorage(logger, cfg.SQLiteDBPath)
	defer db.Close()

	conv, err := cli.NewConverter(cfg, logger)
	if err != nil {
		logger.Error("Failed to configure currency converter", log.FieldError, err)
		os.Exit(1)
	}

	budgets := services.NewBudgetResolver(cfg.ReportingCurrency, logger.WithComponent(log.ComponentBudget))
	bridge := services.NewBridge(db, budgets, conv, nil, logger)
	if *oneYear {
		bridge.ClientPolicy = services.DefaultOneYearAhead{}
		bridge.SupplierPolicy = services.DefaultOneYearAhead{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	failed := false
	for _, r := range roles {
		results, err := bridge.SyncAll(ctx, *userID, r)
		for _, res := range results {
			logger.Info("Subscription synced",
				log.FieldUserID, *userID,
				log.FieldEntityID, res.EntityID,
				log.FieldPolicy, res.Policy,
				"created", res.Created,
				"skipped", res.Skipped,
				"failed", res.Failed,
				"reason", res.Reason)
			if res.Failed > 0 {
				failed = true
			}
		}
		if err != nil {
			logger.Error("Resync aborted", "role", r, log.FieldError, err)
			os.Exit(1)
		}
	}
	if failed {
		os.Exit(1)
	}
}
