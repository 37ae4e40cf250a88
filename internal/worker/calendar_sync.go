package worker

import (
	"context"
	"errors"
	"fmt"

	"cashflow/internal/amqp"
	"cashflow/internal/calendar"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/storage"
)

// calendarKinds are the ledger kinds shown on the calendar.
var calendarKinds = []core.Kind{core.KindBill, core.KindDebt, core.KindIncome, core.KindExpense}

// CalendarSync mirrors a personal budget period into a calendar.
type CalendarSync struct {
	db     *storage.DB
	store  calendar.Store
	logger *log.Logger
}

func NewCalendarSync(db *storage.DB, store calendar.Store, logger *log.Logger) *CalendarSync {
	if logger == nil {
		logger = log.Default(log.ComponentCalendar)
	}
	return &CalendarSync{db: db, store: store, logger: logger}
}

// SyncPeriod replaces the month's tagged events with the period's rows and
// returns how many events were written. Business periods are not mirrored.
func (s *CalendarSync) SyncPeriod(ctx context.Context, userID string, month, year int, budgetType core.BudgetType) (int, error) {
	if budgetType != core.Personal {
		s.logger.DebugContext(ctx, "Skipping calendar sync for non-personal period",
			log.FieldUserID, userID,
			log.FieldBudgetType, budgetType)
		return 0, nil
	}

	scope, err := s.db.Scope(userID)
	if err != nil {
		return 0, err
	}

	var rows []core.Transaction
	budget, err := scope.FindBudget(ctx, month, year, budgetType)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// nothing to show; stale events are still cleared below
	case err != nil:
		return 0, fmt.Errorf("find budget: %w", err)
	default:
		for _, kind := range calendarKinds {
			txs, err := scope.ListTransactions(ctx, kind, budget.ID)
			if err != nil {
				return 0, fmt.Errorf("list %s: %w", kind, err)
			}
			rows = append(rows, txs...)
		}
	}

	events := calendar.BuildEvents(rows)
	deleted, inserted, err := calendar.Replace(ctx, s.store, year, month, events)
	if err != nil {
		return inserted, err
	}

	s.logger.InfoContext(ctx, "Calendar synced",
		log.FieldUserID, userID,
		log.FieldYear, year,
		log.FieldMonth, month,
		"deleted", deleted,
		"inserted", inserted)
	return inserted, nil
}

// HandleMessage adapts SyncPeriod to the AMQP consumer.
func (s *CalendarSync) HandleMessage(ctx context.Context, msg *amqp.CalendarSyncMessage) error {
	_, err := s.SyncPeriod(ctx, msg.UserID, msg.Month, msg.Year, msg.Type)
	return err
}

// Publisher hands a calendar sync request to a broker.
type Publisher interface {
	PublishCalendarSync(ctx context.Context, msg *amqp.CalendarSyncMessage) error
}

// CalendarHandler routes calendar sync tasks to the broker when pub is set,
// otherwise runs them in-process with sync. With neither, tasks are skipped.
func CalendarHandler(pub Publisher, sync *CalendarSync, logger *log.Logger) Handler {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return func(ctx context.Context, task Task) error {
		if task.Name != TaskCalendarSync {
			return fmt.Errorf("unknown task %q", task.Name)
		}
		switch {
		case pub != nil:
			return pub.PublishCalendarSync(ctx,
				amqp.NewCalendarSyncMessage(task.UserID, task.Month, task.Year, task.Type, task.Reason))
		case sync != nil:
			_, err := sync.SyncPeriod(ctx, task.UserID, task.Month, task.Year, task.Type)
			return err
		}
		logger.DebugContext(ctx, "No calendar backend configured, skipping", log.FieldTask, task.String())
		return nil
	}
}
