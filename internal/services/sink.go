package services

import (
	"context"
	"fmt"

	"cashflow/internal/core"
	"cashflow/internal/recurrence"
	"cashflow/internal/storage"
)

// ledgerSink stores materialized instances in the period of their own date.
type ledgerSink struct {
	scope      *storage.Scope
	budgets    *BudgetResolver
	budgetType core.BudgetType
}

var _ recurrence.Sink = (*ledgerSink)(nil)

func (s *ledgerSink) Exists(ctx context.Context, kind core.Kind, sig recurrence.Signature) (bool, error) {
	switch sig.Scope {
	case recurrence.ScopeSeries:
		return s.scope.SeriesInstanceExists(ctx, kind, sig.Key, sig.Date)
	case recurrence.ScopeClient:
		return s.scope.EntityInstanceExists(ctx, kind, core.RoleClient, sig.Key, sig.Amount, sig.Date)
	case recurrence.ScopeSupplier:
		return s.scope.EntityInstanceExists(ctx, kind, core.RoleSupplier, sig.Key, sig.Amount, sig.Date)
	}
	return false, fmt.Errorf("unknown signature scope %q", sig.Scope)
}

func (s *ledgerSink) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	budget, err := s.budgets.Resolve(ctx, s.scope, t.Date.Month(), t.Date.Year(), "", s.budgetType)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("resolve budget for %s: %w", t.Date, err)
	}
	t.BudgetID = budget.ID
	if err := s.scope.InsertTransaction(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}
