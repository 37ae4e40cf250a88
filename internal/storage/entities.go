package storage

import (
	"context"
	"database/sql"
	"fmt"

	"cashflow/internal/core"
)

const entityColumns = `id, user_id, name, email, phone, tax_id, notes, scope,
	subscription_price, subscription_currency, subscription_cadence,
	subscription_start, subscription_end, subscription_status, created_at, updated_at`

func entityTable(role core.EntityRole) (string, error) {
	switch role {
	case core.RoleClient:
		return "clients", nil
	case core.RoleSupplier:
		return "suppliers", nil
	}
	return "", core.Invalid(fmt.Sprintf("unknown entity role %q", role))
}

func scanEntity(role core.EntityRole, row rowScanner) (core.Entity, error) {
	var (
		e                core.Entity
		cadence          sql.NullString
		start, end       sql.NullString
		created, updated string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.Email, &e.Phone, &e.TaxID, &e.Notes, &e.Scope,
		&e.Subscription.Price, &e.Subscription.Currency, &cadence,
		&start, &end, &e.Subscription.Status, &created, &updated)
	if err != nil {
		return core.Entity{}, err
	}
	e.Role = role
	e.Subscription.Cadence = core.Cadence(cadence.String)
	if e.Subscription.StartDate, err = scanDate(start); err != nil {
		return core.Entity{}, err
	}
	if e.Subscription.EndDate, err = scanDate(end); err != nil {
		return core.Entity{}, err
	}
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return e, nil
}

func (s *Scope) InsertEntity(ctx context.Context, e *core.Entity) error {
	table, err := entityTable(e.Role)
	if err != nil {
		return err
	}
	e.ID = newID()
	e.UserID = s.userID
	now := s.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	sub := e.Subscription

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO `+table+` (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Name, e.Email, e.Phone, e.TaxID, e.Notes, string(e.Scope),
		sub.Price, sub.Currency, nullString(string(sub.Cadence)),
		nullDate(sub.StartDate), nullDate(sub.EndDate), string(sub.Status),
		now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, mapErr(err))
	}
	return nil
}

func (s *Scope) GetEntity(ctx context.Context, role core.EntityRole, id string) (core.Entity, error) {
	table, err := entityTable(role)
	if err != nil {
		return core.Entity{}, err
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM `+table+` WHERE user_id = ? AND id = ?`, s.userID, id)
	e, err := scanEntity(role, row)
	if err != nil {
		return core.Entity{}, mapErr(err)
	}
	return e, nil
}

func (s *Scope) ListEntities(ctx context.Context, role core.EntityRole) ([]core.Entity, error) {
	table, err := entityTable(role)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM `+table+` WHERE user_id = ? ORDER BY name`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		e, err := scanEntity(role, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Scope) UpdateEntity(ctx context.Context, e *core.Entity) error {
	table, err := entityTable(e.Role)
	if err != nil {
		return err
	}
	e.UpdatedAt = s.now().UTC()
	sub := e.Subscription

	res, err := s.q.ExecContext(ctx, `UPDATE `+table+` SET
		name = ?, email = ?, phone = ?, tax_id = ?, notes = ?, scope = ?,
		subscription_price = ?, subscription_currency = ?, subscription_cadence = ?,
		subscription_start = ?, subscription_end = ?, subscription_status = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		e.Name, e.Email, e.Phone, e.TaxID, e.Notes, string(e.Scope),
		sub.Price, sub.Currency, nullString(string(sub.Cadence)),
		nullDate(sub.StartDate), nullDate(sub.EndDate), string(sub.Status), e.UpdatedAt.Format(timeLayout),
		s.userID, e.ID)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, mapErr(err))
	}
	return requireAffected(res)
}

func (s *Scope) DeleteEntity(ctx context.Context, role core.EntityRole, id string) error {
	table, err := entityTable(role)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ? AND id = ?`, s.userID, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return requireAffected(res)
}
