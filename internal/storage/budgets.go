package storage

import (
	"context"
	"fmt"

	"cashflow/internal/core"
)

const budgetColumns = `id, user_id, month, year, type, currency, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (core.BudgetPeriod, error) {
	var (
		b       core.BudgetPeriod
		created string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Month, &b.Year, &b.Type, &b.Currency, &created); err != nil {
		return core.BudgetPeriod{}, err
	}
	b.CreatedAt = parseTime(created)
	return b, nil
}

// FindBudget returns core.ErrNotFound when the period has no row yet.
func (s *Scope) FindBudget(ctx context.Context, month, year int, budgetType core.BudgetType) (core.BudgetPeriod, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND month = ? AND year = ? AND type = ?`,
		s.userID, month, year, string(budgetType))
	b, err := scanBudget(row)
	if err != nil {
		return core.BudgetPeriod{}, mapErr(err)
	}
	return b, nil
}

func (s *Scope) GetBudget(ctx context.Context, id string) (core.BudgetPeriod, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND id = ?`, s.userID, id)
	b, err := scanBudget(row)
	if err != nil {
		return core.BudgetPeriod{}, mapErr(err)
	}
	return b, nil
}

// InsertBudget fills ID, UserID and CreatedAt. A concurrent insert of the
// same period surfaces as core.ErrConflict.
func (s *Scope) InsertBudget(ctx context.Context, b *core.BudgetPeriod) error {
	b.ID = newID()
	b.UserID = s.userID
	now := s.now().UTC()
	b.CreatedAt = now
	if b.Currency == "" {
		b.Currency = core.ReportingCurrency
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Month, b.Year, string(b.Type), b.Currency, now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert budget: %w", mapErr(err))
	}
	return nil
}

// ListBudgets returns the user's periods, newest first.
func (s *Scope) ListBudgets(ctx context.Context) ([]core.BudgetPeriod, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY year DESC, month DESC, type`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetPeriod
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
