package services

import (
	"context"
	"errors"
	"fmt"

	"cashflow/internal/aggregate"
	"cashflow/internal/core"
	"cashflow/internal/currency"
	"cashflow/internal/log"
	"cashflow/internal/recurrence"
	"cashflow/internal/storage"
)

// Ledger manages the five transaction kinds.
type Ledger struct {
	db       *storage.DB
	budgets  *BudgetResolver
	conv     *currency.Converter
	notifier Notifier
	logger   *log.Logger
}

func NewLedger(db *storage.DB, budgets *BudgetResolver, conv *currency.Converter, notifier Notifier, logger *log.Logger) *Ledger {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if logger == nil {
		logger = log.Default(log.ComponentLedger)
	}
	return &Ledger{db: db, budgets: budgets, conv: conv, notifier: notifier, logger: logger}
}

// AddResult reports the stored row and, for recurring input, what happened
// to the rest of the series.
type AddResult struct {
	Transaction core.Transaction `json:"transaction"`
	Created     int              `json:"instancesCreated"`
	Skipped     int              `json:"instancesSkipped"`
	Failed      int              `json:"instancesFailed"`
	Truncated   bool             `json:"truncated,omitempty"`
}

// Add stores one row in the (month, year, budgetType) period. Recurring input
// with an end date also materializes the following instances, each in the
// period of its own date. Failed instances are logged and counted; the call
// still succeeds once the first row is stored.
func (l *Ledger) Add(ctx context.Context, userID string, kind core.Kind, month, year int, budgetType core.BudgetType, in core.TransactionInput) (AddResult, error) {
	scope, err := l.db.Scope(userID)
	if err != nil {
		return AddResult{}, err
	}
	if err := core.ValidatePeriod(month, year, budgetType); err != nil {
		return AddResult{}, err
	}
	if err := in.Normalize(kind, budgetType); err != nil {
		return AddResult{}, err
	}

	if err := checkLinks(ctx, scope, in); err != nil {
		return AddResult{}, err
	}

	budget, err := l.budgets.Resolve(ctx, scope, month, year, "", budgetType)
	if err != nil {
		return AddResult{}, err
	}

	t := in.Transaction(kind)
	t.BudgetID = budget.ID
	if err := scope.InsertTransaction(ctx, &t); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return AddResult{}, core.Conflict("an identical entry already exists")
		}
		return AddResult{}, fmt.Errorf("add %s: %w", kind, err)
	}

	res := AddResult{Transaction: t}
	touched := []core.Date{t.Date}

	if t.IsRecurring && t.RecurrenceEnd != nil {
		dates, truncated, err := recurrence.Following(t.Cadence, t.Date, *t.RecurrenceEnd)
		if err != nil {
			return res, err
		}
		if truncated {
			l.logger.WarnContext(ctx, "Recurring series truncated",
				log.FieldID, t.ID,
				"max_instances", recurrence.MaxInstances)
		}
		res.Truncated = truncated

		// Later instances start unpaid whatever the first row says.
		template := t
		template.RecurringSourceID = t.ID
		template.IsPaid = false
		template.PaymentDate = nil
		sink := &ledgerSink{scope: scope, budgets: l.budgets, budgetType: budgetType}
		run := recurrence.NewMaterializer(sink, l.logger.WithComponent(log.ComponentRecurrence)).
			Run(ctx, template, dates, recurrence.SeriesPolicy{})

		res.Created, res.Skipped, res.Failed = len(run.Created), run.Skipped, run.Failed
		if err := run.Err(); err != nil {
			l.logger.WarnContext(ctx, "Recurring series partially materialized",
				log.FieldID, t.ID,
				log.FieldKind, kind,
				log.FieldError, err)
		}
		for _, c := range run.Created {
			touched = append(touched, c.Date)
		}
	}

	l.logger.InfoContext(ctx, "Transaction added",
		log.FieldUserID, userID,
		log.FieldKind, kind,
		log.FieldID, t.ID,
		"instances", res.Created)
	notifyPeriods(l.notifier, userID, string(kind)+".create", budgetType, touched...)
	return res, nil
}

// Update applies patch to the row and, in FUTURE mode, to every later row of
// its series. Date and payment changes only ever touch the addressed row.
func (l *Ledger) Update(ctx context.Context, userID string, kind core.Kind, id string, patch core.TransactionPatch, mode core.UpdateMode) ([]core.Transaction, error) {
	scope, err := l.db.Scope(userID)
	if err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, core.Invalid("unknown transaction kind")
	}
	if !mode.Valid() {
		return nil, core.Invalid("mode must be SINGLE or FUTURE")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var (
		updated    []core.Transaction
		budgetType core.BudgetType
		touched    []core.Date
	)
	err = scope.InTx(ctx, func(tx *storage.Scope) error {
		target, err := tx.GetTransaction(ctx, kind, id)
		if err != nil {
			return err
		}
		budget, err := tx.GetBudget(ctx, target.BudgetID)
		if err != nil {
			return fmt.Errorf("load budget: %w", err)
		}
		budgetType = budget.Type
		if patch.VAT != nil && budgetType != core.Business {
			return core.Invalid("VAT applies only to business budgets")
		}

		rows := []core.Transaction{target}
		if mode == core.ModeFuture && target.IsRecurring {
			if rows, err = tx.ListSeries(ctx, kind, target.SeriesID(), target.Date); err != nil {
				return err
			}
		}

		for _, row := range rows {
			touched = append(touched, row.Date)
			if row.ID == target.ID {
				patch.ApplyInstance(&row)
			} else {
				patch.Apply(&row)
			}
			if row.ID == target.ID && patch.Date != nil &&
				(row.Date.Year() != budget.Year || row.Date.Month() != budget.Month) {
				moved, err := l.budgets.Resolve(ctx, tx, row.Date.Month(), row.Date.Year(), "", budgetType)
				if err != nil {
					return err
				}
				row.BudgetID = moved.ID
			}
			if err := tx.UpdateTransaction(ctx, &row); err != nil {
				return err
			}
			touched = append(touched, row.Date)
			updated = append(updated, row)
		}
		return nil
	})
	if errors.Is(err, core.ErrConflict) {
		return nil, core.Conflict("another entry of this series already falls on that date")
	}
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "Transaction updated",
		log.FieldUserID, userID,
		log.FieldKind, kind,
		log.FieldID, id,
		"mode", mode,
		"rows", len(updated))
	notifyPeriods(l.notifier, userID, string(kind)+".update", budgetType, touched...)
	return updated, nil
}

// Delete removes the row, or in FUTURE mode the row and every later row of
// its series, and returns how many rows were removed.
func (l *Ledger) Delete(ctx context.Context, userID string, kind core.Kind, id string, mode core.UpdateMode) (int64, error) {
	scope, err := l.db.Scope(userID)
	if err != nil {
		return 0, err
	}
	if !kind.Valid() {
		return 0, core.Invalid("unknown transaction kind")
	}
	if !mode.Valid() {
		return 0, core.Invalid("mode must be SINGLE or FUTURE")
	}

	var (
		deleted    int64
		budgetType core.BudgetType
		touched    []core.Date
	)
	err = scope.InTx(ctx, func(tx *storage.Scope) error {
		target, err := tx.GetTransaction(ctx, kind, id)
		if err != nil {
			return err
		}
		budget, err := tx.GetBudget(ctx, target.BudgetID)
		if err != nil {
			return fmt.Errorf("load budget: %w", err)
		}
		budgetType = budget.Type

		rows := []core.Transaction{target}
		if mode == core.ModeFuture && target.IsRecurring {
			if rows, err = tx.ListSeries(ctx, kind, target.SeriesID(), target.Date); err != nil {
				return err
			}
		}
		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
			touched = append(touched, r.Date)
		}
		deleted, err = tx.DeleteTransactions(ctx, kind, ids...)
		return err
	})
	if err != nil {
		return 0, err
	}

	l.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldUserID, userID,
		log.FieldKind, kind,
		log.FieldID, id,
		"mode", mode,
		"rows", deleted)
	notifyPeriods(l.notifier, userID, string(kind)+".delete", budgetType, touched...)
	return deleted, nil
}

// List returns the period's rows of kind with totals in the reporting currency.
func (l *Ledger) List(ctx context.Context, userID string, kind core.Kind, month, year int, budgetType core.BudgetType) (core.Listing, error) {
	scope, err := l.db.Scope(userID)
	if err != nil {
		return core.Listing{}, err
	}
	if !kind.Valid() {
		return core.Listing{}, core.Invalid("unknown transaction kind")
	}
	budget, err := l.budgets.Resolve(ctx, scope, month, year, "", budgetType)
	if err != nil {
		return core.Listing{}, err
	}

	items, err := scope.ListTransactions(ctx, kind, budget.ID)
	if err != nil {
		return core.Listing{}, fmt.Errorf("list %s: %w", kind, err)
	}
	if items == nil {
		items = []core.Transaction{}
	}

	totals, err := aggregate.Sum(ctx, l.conv.Batch(), items, aggregate.Options{BudgetType: budgetType, ByCategory: true})
	if err != nil {
		l.logger.ErrorContext(ctx, "Aggregation failed",
			log.FieldUserID, userID,
			log.FieldKind, kind,
			log.FieldError, err)
		return core.Listing{}, err
	}

	return core.Listing{Budget: budget, Items: items, Totals: totals.Rounded()}, nil
}

// Overview compares income against every outflow kind for one period. All
// kinds share one rate batch.
func (l *Ledger) Overview(ctx context.Context, userID string, month, year int, budgetType core.BudgetType) (core.MonthOverview, error) {
	scope, err := l.db.Scope(userID)
	if err != nil {
		return core.MonthOverview{}, err
	}
	budget, err := l.budgets.Resolve(ctx, scope, month, year, "", budgetType)
	if err != nil {
		return core.MonthOverview{}, err
	}

	batch := l.conv.Batch()
	ov := core.MonthOverview{
		Year:     year,
		Month:    month,
		Type:     budgetType,
		Currency: batch.Reporting(),
		ByKind:   make(map[core.Kind]core.Totals, len(core.Kinds)),
	}
	for _, kind := range core.Kinds {
		items, err := scope.ListTransactions(ctx, kind, budget.ID)
		if err != nil {
			return core.MonthOverview{}, fmt.Errorf("list %s: %w", kind, err)
		}
		totals, err := aggregate.Sum(ctx, batch, items, aggregate.Options{BudgetType: budgetType})
		if err != nil {
			return core.MonthOverview{}, err
		}
		if kind.Inflow() {
			ov.Income = ov.Income.Add(totals.Total)
		} else {
			ov.Outflow = ov.Outflow.Add(totals.Total)
		}
		ov.ByKind[kind] = totals.Rounded()
	}
	ov.Balance = core.Round2(ov.Income.Sub(ov.Outflow))
	ov.Income = core.Round2(ov.Income)
	ov.Outflow = core.Round2(ov.Outflow)
	return ov, nil
}

// Budget returns the user's period for (month, year, budgetType), creating
// it on first access.
func (l *Ledger) Budget(ctx context.Context, userID string, month, year int, budgetType core.BudgetType) (core.BudgetPeriod, error) {
	scope, err := l.db.Scope(userID)
	if err != nil {
		return core.BudgetPeriod{}, err
	}
	return l.budgets.Resolve(ctx, scope, month, year, "", budgetType)
}

// Budgets lists every period the user has touched.
func (l *Ledger) Budgets(ctx context.Context, userID string) ([]core.BudgetPeriod, error) {
	scope, err := l.db.Scope(userID)
	if err != nil {
		return nil, err
	}
	budgets, err := scope.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if budgets == nil {
		budgets = []core.BudgetPeriod{}
	}
	return budgets, nil
}

// checkLinks makes sure a referenced client or supplier belongs to the
// caller. Another user's entity reads as missing.
func checkLinks(ctx context.Context, scope *storage.Scope, in core.TransactionInput) error {
	links := []struct {
		role core.EntityRole
		id   string
	}{
		{core.RoleClient, in.ClientID},
		{core.RoleSupplier, in.SupplierID},
	}
	for _, link := range links {
		if link.id == "" {
			continue
		}
		if _, err := scope.GetEntity(ctx, link.role, link.id); err != nil {
			return fmt.Errorf("%s %q: %w", link.role, link.id, err)
		}
	}
	return nil
}
