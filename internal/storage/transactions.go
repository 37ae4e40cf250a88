package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

var kindTables = map[core.Kind]string{
	core.KindExpense: "expenses",
	core.KindIncome:  "incomes",
	core.KindBill:    "bills",
	core.KindDebt:    "debts",
	core.KindSaving:  "savings",
}

func tableFor(kind core.Kind) (string, error) {
	t, ok := kindTables[kind]
	if !ok {
		return "", core.Invalid(fmt.Sprintf("unknown transaction kind %q", kind))
	}
	return t, nil
}

const txColumns = `id, user_id, budget_id, amount, currency, date, description, category,
	amount_before_vat, vat_rate, vat_amount, is_deductible, is_paid, payment_date,
	client_id, supplier_id, project_id, invoice_id,
	is_recurring, recurring_source_id, recurring_start, recurring_end, cadence, generated,
	total_amount, goal, created_at, updated_at`

const txPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

func vatArgs(v *core.VAT) (before, rate, amount decimal.NullDecimal) {
	if v == nil {
		return
	}
	return decimal.NewNullDecimal(v.AmountBeforeVAT), decimal.NewNullDecimal(v.Rate), decimal.NewNullDecimal(v.Amount)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func txArgs(t *core.Transaction) []any {
	before, rate, vat := vatArgs(t.VAT)
	return []any{
		t.ID, t.UserID, t.BudgetID, t.Amount, t.Currency, t.Date.String(), t.Description, t.Category,
		before, rate, vat, t.IsDeductible, t.IsPaid, nullDate(t.PaymentDate),
		nullString(t.ClientID), nullString(t.SupplierID), nullString(t.ProjectID), nullString(t.InvoiceID),
		t.IsRecurring, nullString(t.RecurringSourceID), nullDate(t.RecurrenceStart), nullDate(t.RecurrenceEnd),
		nullString(string(t.Cadence)), t.Generated,
		nullDecimal(t.TotalAmount), nullDecimal(t.Goal),
		t.CreatedAt.UTC().Format(timeLayout), t.UpdatedAt.UTC().Format(timeLayout),
	}
}

func scanTransaction(kind core.Kind, row rowScanner) (core.Transaction, error) {
	var (
		t                       core.Transaction
		date, created, updated  string
		before, rate, vat       decimal.NullDecimal
		total, goal             decimal.NullDecimal
		paymentDate, start, end sql.NullString
		client, supplier        sql.NullString
		project, invoice        sql.NullString
		source, cadence         sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.BudgetID, &t.Amount, &t.Currency, &date, &t.Description, &t.Category,
		&before, &rate, &vat, &t.IsDeductible, &t.IsPaid, &paymentDate,
		&client, &supplier, &project, &invoice,
		&t.IsRecurring, &source, &start, &end, &cadence, &t.Generated,
		&total, &goal, &created, &updated,
	)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Kind = kind
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	t.Date = d
	if vat.Valid || before.Valid || rate.Valid {
		t.VAT = &core.VAT{AmountBeforeVAT: before.Decimal, Rate: rate.Decimal, Amount: vat.Decimal}
	}
	if t.PaymentDate, err = scanDate(paymentDate); err != nil {
		return core.Transaction{}, err
	}
	if t.RecurrenceStart, err = scanDate(start); err != nil {
		return core.Transaction{}, err
	}
	if t.RecurrenceEnd, err = scanDate(end); err != nil {
		return core.Transaction{}, err
	}
	t.ClientID = client.String
	t.SupplierID = supplier.String
	t.ProjectID = project.String
	t.InvoiceID = invoice.String
	t.RecurringSourceID = source.String
	t.Cadence = core.Cadence(cadence.String)
	if total.Valid {
		v := total.Decimal
		t.TotalAmount = &v
	}
	if goal.Valid {
		v := goal.Decimal
		t.Goal = &v
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

func (s *Scope) queryTransactions(ctx context.Context, kind core.Kind, where string, args ...any) ([]core.Transaction, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+txColumns+` FROM `+table+` WHERE user_id = ? AND `+where+` ORDER BY date, id`,
		append([]any{s.userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTransaction assigns an ID when t has none and stamps ownership and
// timestamps. Unique index violations come back as core.ErrConflict.
func (s *Scope) InsertTransaction(ctx context.Context, t *core.Transaction) error {
	table, err := tableFor(t.Kind)
	if err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = newID()
	}
	t.UserID = s.userID
	now := s.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO `+table+` (`+txColumns+`) VALUES (`+txPlaceholders+`)`, txArgs(t)...)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, mapErr(err))
	}
	return nil
}

func (s *Scope) GetTransaction(ctx context.Context, kind core.Kind, id string) (core.Transaction, error) {
	table, err := tableFor(kind)
	if err != nil {
		return core.Transaction{}, err
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM `+table+` WHERE user_id = ? AND id = ?`, s.userID, id)
	t, err := scanTransaction(kind, row)
	if err != nil {
		return core.Transaction{}, mapErr(err)
	}
	return t, nil
}

// ListTransactions returns the rows of one budget period in ascending date order.
func (s *Scope) ListTransactions(ctx context.Context, kind core.Kind, budgetID string) ([]core.Transaction, error) {
	return s.queryTransactions(ctx, kind, `budget_id = ?`, budgetID)
}

// ListSeries returns every row of a recurring series dated on or after from.
func (s *Scope) ListSeries(ctx context.Context, kind core.Kind, seriesID string, from core.Date) ([]core.Transaction, error) {
	return s.queryTransactions(ctx, kind,
		`(id = ? OR recurring_source_id = ?) AND date >= ?`, seriesID, seriesID, from.String())
}

// ListByEntity returns rows tied to a client or supplier within [from, to].
func (s *Scope) ListByEntity(ctx context.Context, kind core.Kind, role core.EntityRole, entityID string, from, to core.Date) ([]core.Transaction, error) {
	col, err := entityColumn(role)
	if err != nil {
		return nil, err
	}
	return s.queryTransactions(ctx, kind,
		col+` = ? AND date >= ? AND date <= ?`, entityID, from.String(), to.String())
}

// UpdateTransaction overwrites every mutable column of an existing row.
func (s *Scope) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	table, err := tableFor(t.Kind)
	if err != nil {
		return err
	}
	t.UpdatedAt = s.now().UTC()
	before, rate, vat := vatArgs(t.VAT)

	res, err := s.q.ExecContext(ctx, `UPDATE `+table+` SET
		budget_id = ?, amount = ?, currency = ?, date = ?, description = ?, category = ?,
		amount_before_vat = ?, vat_rate = ?, vat_amount = ?, is_deductible = ?, is_paid = ?, payment_date = ?,
		project_id = ?, invoice_id = ?, total_amount = ?, goal = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		t.BudgetID, t.Amount, t.Currency, t.Date.String(), t.Description, t.Category,
		before, rate, vat, t.IsDeductible, t.IsPaid, nullDate(t.PaymentDate),
		nullString(t.ProjectID), nullString(t.InvoiceID), nullDecimal(t.TotalAmount), nullDecimal(t.Goal),
		t.UpdatedAt.Format(timeLayout),
		s.userID, t.ID)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, mapErr(err))
	}
	return requireAffected(res)
}

// DeleteTransactions removes the given rows and reports how many were deleted.
func (s *Scope) DeleteTransactions(ctx context.Context, kind core.Kind, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, s.userID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return res.RowsAffected()
}

// SeriesInstanceExists reports whether the series already has a row on date.
func (s *Scope) SeriesInstanceExists(ctx context.Context, kind core.Kind, seriesID string, date core.Date) (bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	var n int
	err = s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE user_id = ? AND (id = ? OR recurring_source_id = ?) AND date = ?`,
		s.userID, seriesID, seriesID, date.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check series instance: %w", err)
	}
	return n > 0, nil
}

// EntityInstanceExists reports whether a row with the same entity, amount and
// day is already stored, whether it was generated or entered by hand.
func (s *Scope) EntityInstanceExists(ctx context.Context, kind core.Kind, role core.EntityRole, entityID string, amount decimal.Decimal, date core.Date) (bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	col, err := entityColumn(role)
	if err != nil {
		return false, err
	}
	var n int
	err = s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE user_id = ? AND `+col+` = ? AND amount = ? AND date = ?`,
		s.userID, entityID, amount, date.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check entity instance: %w", err)
	}
	return n > 0, nil
}

// DetachEntity clears links to a client or supplier across every ledger table.
func (s *Scope) DetachEntity(ctx context.Context, role core.EntityRole, entityID string) (int64, error) {
	col, err := entityColumn(role)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, kind := range core.Kinds {
		table := kindTables[kind]
		res, err := s.q.ExecContext(ctx,
			`UPDATE `+table+` SET `+col+` = NULL, updated_at = ? WHERE user_id = ? AND `+col+` = ?`,
			s.stamp(), s.userID, entityID)
		if err != nil {
			return total, fmt.Errorf("detach %s from %s: %w", role, table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// CountEntityLinks counts ledger rows of every kind tied to the entity.
func (s *Scope) CountEntityLinks(ctx context.Context, role core.EntityRole, entityID string) (int, error) {
	col, err := entityColumn(role)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, kind := range core.Kinds {
		var n int
		err := s.q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+kindTables[kind]+` WHERE user_id = ? AND `+col+` = ?`,
			s.userID, entityID).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("count %s links: %w", role, err)
		}
		total += n
	}
	return total, nil
}

func entityColumn(role core.EntityRole) (string, error) {
	switch role {
	case core.RoleClient:
		return "client_id", nil
	case core.RoleSupplier:
		return "supplier_id", nil
	}
	return "", core.Invalid(fmt.Sprintf("unknown entity role %q", role))
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
