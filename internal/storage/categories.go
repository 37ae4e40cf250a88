package storage

import (
	"context"
	"fmt"

	"cashflow/internal/core"
)

const categoryColumns = `id, user_id, name, type, scope, color`

func scanCategory(row rowScanner) (core.Category, error) {
	var c core.Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Scope, &c.Color); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// ListCategories filters by type and scope when they are non-empty.
func (s *Scope) ListCategories(ctx context.Context, typ core.CategoryType, scope core.BudgetType) ([]core.Category, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ? AND (? = '' OR type = ?) AND (? = '' OR scope = ?)
		ORDER BY type, name`,
		s.userID, string(typ), string(typ), string(scope), string(scope))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Scope) CountCategories(ctx context.Context, typ core.CategoryType, scope core.BudgetType) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE user_id = ? AND type = ? AND scope = ?`,
		s.userID, string(typ), string(scope)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

func (s *Scope) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND id = ?`, s.userID, id)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, mapErr(err)
	}
	return c, nil
}

// FindCategory looks a category up by its natural key.
func (s *Scope) FindCategory(ctx context.Context, name string, typ core.CategoryType, scope core.BudgetType) (core.Category, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND name = ? AND type = ? AND scope = ?`,
		s.userID, name, string(typ), string(scope))
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, mapErr(err)
	}
	return c, nil
}

func (s *Scope) InsertCategory(ctx context.Context, c *core.Category) error {
	c.ID = newID()
	c.UserID = s.userID
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), string(c.Scope), c.Color, s.stamp())
	if err != nil {
		return fmt.Errorf("insert category: %w", mapErr(err))
	}
	return nil
}

func (s *Scope) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ? WHERE user_id = ? AND id = ?`,
		c.Name, c.Color, s.userID, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", mapErr(err))
	}
	return requireAffected(res)
}

func (s *Scope) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM categories WHERE user_id = ? AND id = ?`, s.userID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(res)
}

// CountCategoryUsage counts ledger rows of the given kinds that reference
// name inside budget periods of scope.
func (s *Scope) CountCategoryUsage(ctx context.Context, kinds []core.Kind, scope core.BudgetType, name string) (int, error) {
	total := 0
	for _, kind := range kinds {
		table, err := tableFor(kind)
		if err != nil {
			return 0, err
		}
		var n int
		err = s.q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` t JOIN budgets b ON b.id = t.budget_id
			WHERE t.user_id = ? AND t.category = ? AND b.type = ?`,
			s.userID, name, string(scope)).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("count %s using category: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// RewriteCategory replaces from with to on ledger rows of the given kinds
// inside budget periods of scope.
func (s *Scope) RewriteCategory(ctx context.Context, kinds []core.Kind, scope core.BudgetType, from, to string) (int64, error) {
	var total int64
	for _, kind := range kinds {
		table, err := tableFor(kind)
		if err != nil {
			return total, err
		}
		res, err := s.q.ExecContext(ctx,
			`UPDATE `+table+` SET category = ?, updated_at = ?
			WHERE user_id = ? AND category = ?
			AND budget_id IN (SELECT id FROM budgets WHERE user_id = ? AND type = ?)`,
			to, s.stamp(), s.userID, from, s.userID, string(scope))
		if err != nil {
			return total, fmt.Errorf("rewrite category on %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
