package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"cashflow/internal/amqp"
	"cashflow/internal/calendar"
	"cashflow/internal/calendar/memory"
	"cashflow/internal/core"
	"cashflow/internal/storage"
)

func seedPeriod(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	s, _ := db.Scope("u1")
	b := core.BudgetPeriod{Month: 3, Year: 2024, Type: core.Personal}
	if err := s.InsertBudget(ctx, &b); err != nil {
		t.Fatal(err)
	}
	for _, tx := range []core.Transaction{
		{Kind: core.KindIncome, Description: "Salary", Date: core.NewDate(2024, 3, 1)},
		{Kind: core.KindBill, Description: "Water", Date: core.NewDate(2024, 3, 12)},
		{Kind: core.KindSaving, Description: "Rainy day", Date: core.NewDate(2024, 3, 20)},
	} {
		tx.BudgetID = b.ID
		tx.Amount = decimal.NewFromInt(100)
		tx.Currency = "ILS"
		if err := s.InsertTransaction(ctx, &tx); err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func TestCalendarSync_SyncPeriod(t *testing.T) {
	db := seedPeriod(t)
	store := memory.New()
	sync := NewCalendarSync(db, store, nil)

	n, err := sync.SyncPeriod(context.Background(), "u1", 3, 2024, core.Personal)
	if err != nil {
		t.Fatalf("SyncPeriod() error = %v", err)
	}
	if n != 2 {
		t.Errorf("SyncPeriod() = %d events, want 2 (savings are not shown)", n)
	}

	// re-sync replaces instead of duplicating
	if _, err := sync.SyncPeriod(context.Background(), "u1", 3, 2024, core.Personal); err != nil {
		t.Fatal(err)
	}
	if got := len(store.Events()); got != 2 {
		t.Errorf("events after re-sync = %d, want 2", got)
	}

	// another user's period is empty and clears nothing of u1 in other months
	n, err = sync.SyncPeriod(context.Background(), "u2", 4, 2024, core.Personal)
	if err != nil || n != 0 {
		t.Errorf("SyncPeriod(u2) = %d, %v", n, err)
	}
}

func TestCalendarSync_SkipsBusinessAndRequiresUser(t *testing.T) {
	db := seedPeriod(t)
	store := memory.New()
	sync := NewCalendarSync(db, store, nil)

	n, err := sync.SyncPeriod(context.Background(), "u1", 3, 2024, core.Business)
	if err != nil || n != 0 || len(store.Events()) != 0 {
		t.Errorf("business SyncPeriod() = %d, %v", n, err)
	}

	if _, err := sync.SyncPeriod(context.Background(), "", 3, 2024, core.Personal); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("SyncPeriod(\"\") error = %v, want ErrUnauthorized", err)
	}
}

type recordingPublisher struct {
	msgs []*amqp.CalendarSyncMessage
	err  error
}

func (p *recordingPublisher) PublishCalendarSync(_ context.Context, msg *amqp.CalendarSyncMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestCalendarHandler_Routing(t *testing.T) {
	ctx := context.Background()

	t.Run("publisher first", func(t *testing.T) {
		pub := &recordingPublisher{}
		store := memory.New()
		h := CalendarHandler(pub, NewCalendarSync(seedPeriod(t), store, nil), nil)
		if err := h(ctx, task(3)); err != nil {
			t.Fatal(err)
		}
		if len(pub.msgs) != 1 || pub.msgs[0].Month != 3 || pub.msgs[0].UserID != "u1" {
			t.Errorf("published = %+v", pub.msgs)
		}
		if len(store.Events()) != 0 {
			t.Error("in-process sync should not run when a publisher is set")
		}
	})

	t.Run("in-process fallback", func(t *testing.T) {
		store := memory.New()
		h := CalendarHandler(nil, NewCalendarSync(seedPeriod(t), store, nil), nil)
		if err := h(ctx, task(3)); err != nil {
			t.Fatal(err)
		}
		if len(store.Events()) != 2 {
			t.Errorf("events = %d, want 2", len(store.Events()))
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		if err := CalendarHandler(nil, nil, nil)(ctx, task(3)); err != nil {
			t.Errorf("handler error = %v", err)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		if err := CalendarHandler(nil, nil, nil)(ctx, Task{Name: "email"}); err == nil {
			t.Error("unknown task should fail")
		}
	})
}

var _ calendar.Store = (*memory.Store)(nil)
