package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/aggregate"
	"cashflow/internal/core"
	"cashflow/internal/currency"
	"cashflow/internal/log"
	"cashflow/internal/recurrence"
	"cashflow/internal/storage"
)

// SubscriptionPrefix starts the description of every generated ledger row.
// It is display text only; duplicates are detected by entity, amount and day.
const SubscriptionPrefix = "Subscription: "

// EndDatePolicy decides the last date a subscription generates rows for.
// ok=false means the subscription generates nothing.
type EndDatePolicy interface {
	Name() string
	EndDate(sub core.Subscription, today core.Date) (end core.Date, ok bool)
}

// RequireEndDate generates only for subscriptions with an explicit end date.
type RequireEndDate struct{}

func (RequireEndDate) Name() string { return "require_end_date" }

func (RequireEndDate) EndDate(sub core.Subscription, _ core.Date) (core.Date, bool) {
	if sub.EndDate == nil {
		return core.Date{}, false
	}
	return *sub.EndDate, true
}

// DefaultOneYearAhead falls back to one year after today when no end date is set.
type DefaultOneYearAhead struct{}

func (DefaultOneYearAhead) Name() string { return "default_one_year_ahead" }

func (DefaultOneYearAhead) EndDate(sub core.Subscription, today core.Date) (core.Date, bool) {
	if sub.EndDate != nil {
		return *sub.EndDate, true
	}
	return core.DateOf(today.AddDate(1, 0, 0)), true
}

// SyncResult reports one subscription sync.
type SyncResult struct {
	EntityID string `json:"entityId"`
	Policy   string `json:"policy"`
	Created  int    `json:"created"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	// Reason explains why nothing was attempted.
	Reason    string `json:"reason,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Bridge turns client and supplier subscriptions into income and expense rows.
type Bridge struct {
	db       *storage.DB
	budgets  *BudgetResolver
	conv     *currency.Converter
	notifier Notifier
	logger   *log.Logger

	ClientPolicy   EndDatePolicy
	SupplierPolicy EndDatePolicy

	now   func() time.Time
	locks keyedMutex
}

func NewBridge(db *storage.DB, budgets *BudgetResolver, conv *currency.Converter, notifier Notifier, logger *log.Logger) *Bridge {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if logger == nil {
		logger = log.Default(log.ComponentBridge)
	}
	return &Bridge{
		db:             db,
		budgets:        budgets,
		conv:           conv,
		notifier:       notifier,
		logger:         logger,
		ClientPolicy:   RequireEndDate{},
		SupplierPolicy: DefaultOneYearAhead{},
		now:            time.Now,
	}
}

func (b *Bridge) policyFor(role core.EntityRole) EndDatePolicy {
	if role == core.RoleClient {
		return b.ClientPolicy
	}
	return b.SupplierPolicy
}

// Create stores a new client or supplier and syncs its subscription.
func (b *Bridge) Create(ctx context.Context, userID string, role core.EntityRole, in core.EntityInput) (core.Entity, SyncResult, error) {
	s, err := b.db.Scope(userID)
	if err != nil {
		return core.Entity{}, SyncResult{}, err
	}
	if !role.Valid() {
		return core.Entity{}, SyncResult{}, core.Invalid("unknown entity role")
	}
	if err := in.Normalize(); err != nil {
		return core.Entity{}, SyncResult{}, err
	}

	e := entityFromInput(role, in)
	if err := s.InsertEntity(ctx, &e); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.Entity{}, SyncResult{}, core.Conflict(fmt.Sprintf("a %s named %q already exists", role, in.Name))
		}
		return core.Entity{}, SyncResult{}, err
	}
	b.logger.InfoContext(ctx, "Entity created",
		log.FieldUserID, userID,
		log.FieldEntityID, e.ID,
		"role", role)

	res, err := b.sync(ctx, s, e)
	return e, res, err
}

// Update replaces the entity's fields and re-syncs its subscription. Rows
// generated earlier are kept as they are.
func (b *Bridge) Update(ctx context.Context, userID string, role core.EntityRole, id string, in core.EntityInput) (core.Entity, SyncResult, error) {
	s, err := b.db.Scope(userID)
	if err != nil {
		return core.Entity{}, SyncResult{}, err
	}
	if !role.Valid() {
		return core.Entity{}, SyncResult{}, core.Invalid("unknown entity role")
	}
	if err := in.Normalize(); err != nil {
		return core.Entity{}, SyncResult{}, err
	}

	current, err := s.GetEntity(ctx, role, id)
	if err != nil {
		return core.Entity{}, SyncResult{}, err
	}
	e := entityFromInput(role, in)
	e.ID, e.UserID, e.CreatedAt = current.ID, current.UserID, current.CreatedAt
	if err := s.UpdateEntity(ctx, &e); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.Entity{}, SyncResult{}, core.Conflict(fmt.Sprintf("a %s named %q already exists", role, in.Name))
		}
		return core.Entity{}, SyncResult{}, err
	}

	res, err := b.sync(ctx, s, e)
	return e, res, err
}

func (b *Bridge) Get(ctx context.Context, userID string, role core.EntityRole, id string) (core.Entity, error) {
	s, err := b.db.Scope(userID)
	if err != nil {
		return core.Entity{}, err
	}
	return s.GetEntity(ctx, role, id)
}

func (b *Bridge) List(ctx context.Context, userID string, role core.EntityRole) ([]core.Entity, error) {
	s, err := b.db.Scope(userID)
	if err != nil {
		return nil, err
	}
	out, err := s.ListEntities(ctx, role)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Entity{}
	}
	return out, nil
}

// Delete removes a client or supplier. While ledger rows still reference it
// the delete is refused, unless detach is set: then the rows lose the link
// and stay in the ledger.
func (b *Bridge) Delete(ctx context.Context, userID string, role core.EntityRole, id string, detach bool) error {
	s, err := b.db.Scope(userID)
	if err != nil {
		return err
	}
	err = s.InTx(ctx, func(tx *storage.Scope) error {
		if _, err := tx.GetEntity(ctx, role, id); err != nil {
			return err
		}
		links, err := tx.CountEntityLinks(ctx, role, id)
		if err != nil {
			return err
		}
		if links > 0 {
			if !detach {
				return core.Conflict(fmt.Sprintf("this %s has %d ledger entries", role, links))
			}
			if _, err := tx.DetachEntity(ctx, role, id); err != nil {
				return err
			}
		}
		return tx.DeleteEntity(ctx, role, id)
	})
	if err != nil {
		return err
	}
	b.logger.InfoContext(ctx, "Entity deleted",
		log.FieldUserID, userID,
		log.FieldEntityID, id,
		"role", role,
		"detached", detach)
	return nil
}

// SyncClientIncomes generates the income rows of a client subscription.
func (b *Bridge) SyncClientIncomes(ctx context.Context, userID, clientID string) (SyncResult, error) {
	return b.Sync(ctx, userID, core.RoleClient, clientID)
}

// SyncSupplierExpenses generates the expense rows of a supplier subscription.
func (b *Bridge) SyncSupplierExpenses(ctx context.Context, userID, supplierID string) (SyncResult, error) {
	return b.Sync(ctx, userID, core.RoleSupplier, supplierID)
}

// Sync re-runs the subscription of one entity. Running it again creates only
// the rows that are still missing.
func (b *Bridge) Sync(ctx context.Context, userID string, role core.EntityRole, id string) (SyncResult, error) {
	s, err := b.db.Scope(userID)
	if err != nil {
		return SyncResult{}, err
	}
	e, err := s.GetEntity(ctx, role, id)
	if err != nil {
		return SyncResult{}, err
	}
	return b.sync(ctx, s, e)
}

// SyncAll re-runs every subscription of role for the user.
func (b *Bridge) SyncAll(ctx context.Context, userID string, role core.EntityRole) ([]SyncResult, error) {
	s, err := b.db.Scope(userID)
	if err != nil {
		return nil, err
	}
	entities, err := s.ListEntities(ctx, role)
	if err != nil {
		return nil, err
	}
	out := make([]SyncResult, 0, len(entities))
	for _, e := range entities {
		res, err := b.sync(ctx, s, e)
		if err != nil {
			return out, fmt.Errorf("sync %s %s: %w", role, e.ID, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (b *Bridge) sync(ctx context.Context, s *storage.Scope, e core.Entity) (SyncResult, error) {
	policy := b.policyFor(e.Role)
	res := SyncResult{EntityID: e.ID, Policy: policy.Name()}
	sub := e.Subscription

	switch {
	case sub.Cadence == "":
		res.Reason = "no cadence"
	case !sub.Price.IsPositive():
		res.Reason = "no price"
	case sub.StartDate == nil:
		res.Reason = "no start date"
	case e.Role == core.RoleClient && sub.Status != core.StatusPaid:
		res.Reason = "subscription not paid"
	}
	end, ok := policy.EndDate(sub, core.DateOf(b.now().UTC()))
	if res.Reason == "" && !ok {
		res.Reason = "no end date"
	}
	if res.Reason != "" {
		b.logger.DebugContext(ctx, "Subscription sync skipped",
			log.FieldUserID, s.UserID(),
			log.FieldEntityID, e.ID,
			log.FieldPolicy, policy.Name(),
			"reason", res.Reason)
		return res, nil
	}

	dates, truncated, err := recurrence.Schedule(sub.Cadence, *sub.StartDate, end)
	if err != nil {
		return res, err
	}
	res.Truncated = truncated
	if truncated {
		b.logger.WarnContext(ctx, "Subscription schedule truncated",
			log.FieldEntityID, e.ID,
			"max_instances", recurrence.MaxInstances)
	}

	unlock := b.locks.Lock(s.UserID() + "/" + string(e.Role) + "/" + e.ID)
	defer unlock()

	template := core.Transaction{
		Kind:        e.Role.LedgerKind(),
		Amount:      sub.Price,
		Currency:    sub.Currency,
		Description: SubscriptionPrefix + e.Name,
		IsPaid:      sub.Status == core.StatusPaid,
		Generated:   true,
	}
	if e.Role == core.RoleClient {
		template.ClientID = e.ID
	} else {
		template.SupplierID = e.ID
	}

	sink := &ledgerSink{scope: s, budgets: b.budgets, budgetType: e.Scope}
	run := recurrence.NewMaterializer(sink, b.logger.WithComponent(log.ComponentRecurrence)).
		Run(ctx, template, dates, recurrence.EntityPolicy{})
	res.Created, res.Skipped, res.Failed = len(run.Created), run.Skipped, run.Failed
	if err := run.Err(); err != nil {
		b.logger.WarnContext(ctx, "Subscription partially synced",
			log.FieldEntityID, e.ID,
			log.FieldError, err)
	}

	b.logger.InfoContext(ctx, "Subscription synced",
		log.FieldUserID, s.UserID(),
		log.FieldEntityID, e.ID,
		log.FieldPolicy, policy.Name(),
		"created", res.Created,
		"skipped", res.Skipped)

	if len(run.Created) > 0 {
		touched := make([]core.Date, len(run.Created))
		for i, t := range run.Created {
			touched[i] = t.Date
		}
		notifyPeriods(b.notifier, s.UserID(), string(e.Role)+".sync", e.Scope, touched...)
	}
	return res, nil
}

// Stats sums the rows tied to an entity per month of year in the reporting currency.
func (b *Bridge) Stats(ctx context.Context, userID string, role core.EntityRole, id string, year int) (core.EntityStats, error) {
	s, err := b.db.Scope(userID)
	if err != nil {
		return core.EntityStats{}, err
	}
	if err := core.ValidatePeriod(1, year, core.Personal); err != nil {
		return core.EntityStats{}, err
	}
	e, err := s.GetEntity(ctx, role, id)
	if err != nil {
		return core.EntityStats{}, err
	}

	rows, err := s.ListByEntity(ctx, role.LedgerKind(), role, e.ID, core.NewDate(year, 1, 1), core.NewDate(year, 12, 31))
	if err != nil {
		return core.EntityStats{}, err
	}

	batch := b.conv.Batch()
	stats := core.EntityStats{
		EntityID: e.ID,
		Year:     year,
		Currency: batch.Reporting(),
		Monthly:  make([]decimal.Decimal, 12),
		Total:    decimal.Zero,
		Count:    len(rows),
	}
	for i := range stats.Monthly {
		stats.Monthly[i] = decimal.Zero
	}

	byMonth := make(map[int][]core.Transaction)
	for _, t := range rows {
		byMonth[t.Date.Month()] = append(byMonth[t.Date.Month()], t)
	}
	for month, txs := range byMonth {
		totals, err := aggregate.Sum(ctx, batch, txs, aggregate.Options{BudgetType: e.Scope})
		if err != nil {
			return core.EntityStats{}, err
		}
		stats.Monthly[month-1] = core.Round2(totals.Total)
		stats.Total = stats.Total.Add(totals.Total)
	}
	stats.Total = core.Round2(stats.Total)
	return stats, nil
}

func entityFromInput(role core.EntityRole, in core.EntityInput) core.Entity {
	return core.Entity{
		Role:         role,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		TaxID:        in.TaxID,
		Notes:        in.Notes,
		Scope:        in.Scope,
		Subscription: in.Subscription,
	}
}

// keyedMutex serializes work per key within this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
