package calendar_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"cashflow/internal/calendar"
	"cashflow/internal/calendar/memory"
	"cashflow/internal/core"
)

func TestMonthWindow(t *testing.T) {
	tests := []struct {
		year, month int
		last        string
	}{
		{2024, 2, "2024-02-29"},
		{2023, 2, "2023-02-28"},
		{2024, 12, "2024-12-31"},
		{2024, 4, "2024-04-30"},
	}
	for _, tt := range tests {
		t.Run(tt.last, func(t *testing.T) {
			first, last := calendar.MonthWindow(tt.year, tt.month)
			if first.Day() != 1 || last.String() != tt.last {
				t.Errorf("MonthWindow(%d, %d) = %s..%s", tt.year, tt.month, first, last)
			}
		})
	}
}

func TestBuildEvents(t *testing.T) {
	balance := decimal.NewFromInt(5000)
	rows := []core.Transaction{
		{Kind: core.KindBill, Description: "Electricity", Amount: decimal.NewFromInt(300), Currency: "ILS", Date: core.NewDate(2024, 3, 10), IsPaid: true},
		{Kind: core.KindDebt, Description: "Car loan", Amount: decimal.NewFromInt(900), Currency: "ILS", Date: core.NewDate(2024, 3, 15), TotalAmount: &balance},
		{Kind: core.KindIncome, Description: "Salary", Amount: decimal.NewFromInt(12000), Currency: "ILS", Date: core.NewDate(2024, 3, 1)},
		{Kind: core.KindExpense, Description: "Groceries", Amount: decimal.RequireFromString("42.5"), Currency: "USD", Date: core.NewDate(2024, 3, 2), Category: "Food"},
		{Kind: core.KindSaving, Description: "Vacation", Amount: decimal.NewFromInt(100), Currency: "ILS", Date: core.NewDate(2024, 3, 3)},
	}

	events := calendar.BuildEvents(rows)
	if len(events) != 4 {
		t.Fatalf("BuildEvents() returned %d events, want 4", len(events))
	}

	checks := []struct {
		summary, color, contains string
	}{
		{"Bill: Electricity", calendar.ColorRed, "Status: paid"},
		{"Loan: Car loan", calendar.ColorBlueberry, "Balance: 5000.00"},
		{"Income: Salary", calendar.ColorGreen, "Amount: 12000.00 ILS"},
		{"Expense: Groceries", calendar.ColorRed, "Category: Food"},
	}
	for i, c := range checks {
		e := events[i]
		if e.Summary != c.summary || e.ColorID != c.color {
			t.Errorf("event[%d] = %q/%s, want %q/%s", i, e.Summary, e.ColorID, c.summary, c.color)
		}
		if !strings.Contains(e.Description, c.contains) || !strings.Contains(e.Description, "["+calendar.AppTag+"]") {
			t.Errorf("event[%d].Description = %q, want it to contain %q", i, e.Description, c.contains)
		}
	}
}

func TestReplace_OnlyTouchesTaggedEventsInMonth(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	foreign := store.AddForeign(calendar.Event{Summary: "Dentist", Date: core.NewDate(2024, 3, 5)})
	_ = store.Insert(ctx, calendar.Event{Summary: "old", Date: core.NewDate(2024, 3, 7)})
	_ = store.Insert(ctx, calendar.Event{Summary: "april", Date: core.NewDate(2024, 4, 1)})

	events := []calendar.Event{
		{Summary: "new 1", Date: core.NewDate(2024, 3, 1)},
		{Summary: "new 2", Date: core.NewDate(2024, 3, 31)},
	}
	deleted, inserted, err := calendar.Replace(ctx, store, 2024, 3, events)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if deleted != 1 || inserted != 2 {
		t.Errorf("Replace() = %d deleted, %d inserted; want 1, 2", deleted, inserted)
	}

	got := store.Events()
	var summaries []string
	for _, e := range got {
		summaries = append(summaries, e.Summary)
	}
	want := "new 1,Dentist,new 2,april"
	if strings.Join(summaries, ",") != want {
		t.Errorf("events = %v, want %s", summaries, want)
	}
	if got[1].ID != foreign {
		t.Errorf("foreign event id changed")
	}

	// a second run converges to the same set
	if _, _, err := calendar.Replace(ctx, store, 2024, 3, events); err != nil {
		t.Fatalf("second Replace() error = %v", err)
	}
	if len(store.Events()) != 4 {
		t.Errorf("after second Replace() %d events, want 4", len(store.Events()))
	}
}
