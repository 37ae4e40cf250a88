package services

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
	"cashflow/internal/currency"
	"cashflow/internal/storage"
	"cashflow/internal/worker"
)

type recordingNotifier struct {
	mu    sync.Mutex
	tasks []worker.Task
}

func (n *recordingNotifier) Enqueue(t worker.Task) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, t)
	return true
}

func (n *recordingNotifier) Tasks() []worker.Task {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]worker.Task(nil), n.tasks...)
}

type harness struct {
	db         *storage.DB
	notifier   *recordingNotifier
	budgets    *BudgetResolver
	ledger     *Ledger
	categories *Categories
	bridge     *Bridge
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "services.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rates := currency.NewStaticSource("ILS", map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("3.5"),
	})
	conv := currency.NewConverter(rates, "ILS", time.Hour, nil)
	n := &recordingNotifier{}
	budgets := NewBudgetResolver("ILS", nil)
	return &harness{
		db:         db,
		notifier:   n,
		budgets:    budgets,
		ledger:     NewLedger(db, budgets, conv, n, nil),
		categories: NewCategories(db, nil),
		bridge:     NewBridge(db, budgets, conv, n, nil),
	}
}

func (h *harness) scope(t *testing.T, user string) *storage.Scope {
	t.Helper()
	s, err := h.db.Scope(user)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func datePtr(y, m, d int) *core.Date {
	v := core.NewDate(y, m, d)
	return &v
}

func expense(amount, currency string, date core.Date) core.TransactionInput {
	return core.TransactionInput{
		Amount:      dec(amount),
		Currency:    currency,
		Date:        date,
		Description: "Groceries run",
	}
}
