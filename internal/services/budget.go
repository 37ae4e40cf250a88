// Package services implements the ledger operations on top of a user-scoped store.
package services

import (
	"context"
	"errors"
	"fmt"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/storage"
	"cashflow/internal/worker"
)

// Notifier receives side-effect tasks. *worker.Dispatcher satisfies it.
type Notifier interface {
	Enqueue(task worker.Task) bool
}

type discardNotifier struct{}

func (discardNotifier) Enqueue(worker.Task) bool { return false }

// BudgetResolver finds or lazily creates budget periods.
type BudgetResolver struct {
	reporting string
	logger    *log.Logger
}

func NewBudgetResolver(reporting string, logger *log.Logger) *BudgetResolver {
	if reporting == "" {
		reporting = core.ReportingCurrency
	}
	if logger == nil {
		logger = log.Default(log.ComponentBudget)
	}
	return &BudgetResolver{reporting: reporting, logger: logger}
}

// Resolve returns the period for (month, year, budgetType), creating it with
// currency (or the reporting currency) when absent. A concurrent creator
// winning the unique key is resolved by reading its row.
func (r *BudgetResolver) Resolve(ctx context.Context, s *storage.Scope, month, year int, currency string, budgetType core.BudgetType) (core.BudgetPeriod, error) {
	if err := core.ValidatePeriod(month, year, budgetType); err != nil {
		return core.BudgetPeriod{}, err
	}

	b, err := s.FindBudget(ctx, month, year, budgetType)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.BudgetPeriod{}, fmt.Errorf("find budget: %w", err)
	}

	if currency == "" {
		currency = r.reporting
	}
	b = core.BudgetPeriod{Month: month, Year: year, Type: budgetType, Currency: currency}
	err = s.InsertBudget(ctx, &b)
	switch {
	case err == nil:
		r.logger.DebugContext(ctx, "Budget period created",
			log.FieldUserID, s.UserID(),
			log.FieldYear, year,
			log.FieldMonth, month,
			log.FieldBudgetType, budgetType)
		return b, nil
	case errors.Is(err, core.ErrConflict):
		b, err = s.FindBudget(ctx, month, year, budgetType)
		if err != nil {
			return core.BudgetPeriod{}, fmt.Errorf("re-read budget after conflict: %w", err)
		}
		return b, nil
	}
	return core.BudgetPeriod{}, fmt.Errorf("create budget: %w", err)
}

// notifyPeriods enqueues one calendar sync per distinct period.
func notifyPeriods(n Notifier, userID, reason string, budgetType core.BudgetType, dates ...core.Date) {
	seen := make(map[[2]int]bool, len(dates))
	for _, d := range dates {
		key := [2]int{d.Year(), d.Month()}
		if seen[key] {
			continue
		}
		seen[key] = true
		n.Enqueue(worker.Task{
			Name:   worker.TaskCalendarSync,
			UserID: userID,
			Month:  d.Month(),
			Year:   d.Year(),
			Type:   budgetType,
			Reason: reason,
		})
	}
}
