// Package calendar mirrors a budget period's ledger rows as all-day calendar events.
package calendar

import (
	"context"
	"fmt"
	"time"

	"cashflow/internal/core"
)

// AppTag marks events this application owns; only tagged events are ever deleted.
const AppTag = "Budget Manager"

// Google Calendar color ids.
const (
	ColorRed       = "11"
	ColorGreen     = "10"
	ColorBlueberry = "9"
)

// Event is one all-day entry.
type Event struct {
	ID          string
	Summary     string
	Description string
	Date        core.Date
	ColorID     string
}

// Ports for outbound adapters.
type (
	EventLister interface {
		// ListTagged returns the ids of AppTag events dated in [from, to].
		ListTagged(ctx context.Context, from, to core.Date) ([]string, error)
	}

	EventWriter interface {
		Insert(ctx context.Context, e Event) error
		Delete(ctx context.Context, id string) error
	}

	Store interface {
		EventLister
		EventWriter
	}
)

// MonthWindow returns the first and last day of a month.
func MonthWindow(year, month int) (core.Date, core.Date) {
	first := core.NewDate(year, month, 1)
	last := core.DateOf(first.AddDate(0, 1, -1))
	return first, last
}

// BuildEvents renders ledger rows as events. Kinds without a calendar
// representation (savings) are skipped.
func BuildEvents(rows []core.Transaction) []Event {
	events := make([]Event, 0, len(rows))
	for _, t := range rows {
		var summary, color string
		desc := fmt.Sprintf("[%s]\nAmount: %s %s", AppTag, t.Amount.StringFixed(2), t.Currency)

		switch t.Kind {
		case core.KindBill:
			summary = "Bill: " + t.Description
			color = ColorRed
			desc += "\nStatus: " + paidLabel(t)
		case core.KindDebt:
			summary = "Loan: " + t.Description
			color = ColorBlueberry
			if t.TotalAmount != nil {
				desc += "\nBalance: " + t.TotalAmount.StringFixed(2)
			}
		case core.KindIncome:
			summary = "Income: " + t.Description
			color = ColorGreen
		case core.KindExpense:
			summary = "Expense: " + t.Description
			color = ColorRed
			if t.Category != "" {
				desc += "\nCategory: " + t.Category
			}
		default:
			continue
		}

		events = append(events, Event{Summary: summary, Description: desc, Date: t.Date, ColorID: color})
	}
	return events
}

func paidLabel(t core.Transaction) string {
	if t.IsPaid || t.PaymentDate != nil {
		return "paid"
	}
	return "unpaid"
}

// Replace deletes every tagged event of the month and inserts events.
// Deletion failures are returned before anything is inserted so a retry
// does not duplicate entries.
func Replace(ctx context.Context, store Store, year, month int, events []Event) (deleted, inserted int, err error) {
	from, to := MonthWindow(year, month)
	ids, err := store.ListTagged(ctx, from, to)
	if err != nil {
		return 0, 0, fmt.Errorf("list tagged events: %w", err)
	}
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			return deleted, 0, fmt.Errorf("delete event %s: %w", id, err)
		}
		deleted++
	}
	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			return deleted, inserted, fmt.Errorf("insert event on %s: %w", e.Date, err)
		}
		inserted++
	}
	return deleted, inserted, nil
}

// NextDay is the exclusive end of an all-day event.
func NextDay(d core.Date) core.Date {
	return core.DateOf(d.Add(24 * time.Hour))
}
