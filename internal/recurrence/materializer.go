package recurrence

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

// Signature identifies an instance for duplicate detection. Scope tells the
// sink which field Key refers to.
type Signature struct {
	Scope  SignatureScope
	Key    string
	Amount decimal.Decimal
	Date   core.Date
}

type SignatureScope string

const (
	ScopeSeries   SignatureScope = "series"
	ScopeClient   SignatureScope = "client"
	ScopeSupplier SignatureScope = "supplier"
)

func (s Signature) String() string {
	if s.Scope == ScopeSeries {
		return fmt.Sprintf("%s:%s@%s", s.Scope, s.Key, s.Date)
	}
	return fmt.Sprintf("%s:%s:%s@%s", s.Scope, s.Key, s.Amount.String(), s.Date)
}

// Policy derives the idempotency signature of an instance.
type Policy interface {
	Name() string
	Signature(t core.Transaction) Signature
}

// SeriesPolicy matches instances of the same recurring series on the same day.
type SeriesPolicy struct{}

func (SeriesPolicy) Name() string { return "series" }

func (SeriesPolicy) Signature(t core.Transaction) Signature {
	return Signature{Scope: ScopeSeries, Key: t.SeriesID(), Date: t.Date}
}

// EntityPolicy matches rows tied to the same client or supplier with the same
// amount on the same day, independent of any series id.
type EntityPolicy struct{}

func (EntityPolicy) Name() string { return "entity" }

func (EntityPolicy) Signature(t core.Transaction) Signature {
	if t.ClientID != "" {
		return Signature{Scope: ScopeClient, Key: t.ClientID, Amount: t.Amount, Date: t.Date}
	}
	return Signature{Scope: ScopeSupplier, Key: t.SupplierID, Amount: t.Amount, Date: t.Date}
}

// Sink is where instances are checked and written.
type Sink interface {
	// Exists reports whether a row with sig is already stored.
	Exists(ctx context.Context, kind core.Kind, sig Signature) (bool, error)
	// Create resolves the budget period for t.Date and stores t.
	// It returns an error wrapping core.ErrConflict if sig was taken concurrently.
	Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
}

// Result counts what a run did.
type Result struct {
	Created []core.Transaction
	Skipped int
	Failed  int
	Errs    []error
}

// Err is nil unless some instance failed.
func (r Result) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return &core.PartialFailure{Failed: r.Failed, Errs: r.Errs}
}

// Materializer creates one row per date, skipping dates that already have a
// matching row.
type Materializer struct {
	sink   Sink
	logger *log.Logger
}

func NewMaterializer(sink Sink, logger *log.Logger) *Materializer {
	if logger == nil {
		logger = log.Default(log.ComponentRecurrence)
	}
	return &Materializer{sink: sink, logger: logger}
}

// Run materializes template at each date in ascending order. A failing
// instance is logged and counted; the run continues with the next date so a
// later run can complete the series.
func (m *Materializer) Run(ctx context.Context, template core.Transaction, dates []core.Date, policy Policy) Result {
	var res Result
	seen := make(map[string]struct{}, len(dates))

	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			res.Failed++
			res.Errs = append(res.Errs, err)
			break
		}

		inst := template
		inst.ID = ""
		inst.Date = d
		sig := policy.Signature(inst)

		if _, dup := seen[sig.String()]; dup {
			res.Skipped++
			continue
		}
		seen[sig.String()] = struct{}{}

		exists, err := m.sink.Exists(ctx, inst.Kind, sig)
		if err != nil {
			m.fail(ctx, &res, inst, policy, fmt.Errorf("check %s: %w", sig, err))
			continue
		}
		if exists {
			res.Skipped++
			continue
		}

		created, err := m.sink.Create(ctx, inst)
		if errors.Is(err, core.ErrConflict) {
			res.Skipped++
			continue
		}
		if err != nil {
			m.fail(ctx, &res, inst, policy, fmt.Errorf("create %s: %w", sig, err))
			continue
		}
		res.Created = append(res.Created, created)
	}

	m.logger.InfoContext(ctx, "Series materialized",
		log.FieldPolicy, policy.Name(),
		log.FieldKind, template.Kind,
		"requested", len(dates),
		"created", len(res.Created),
		"skipped", res.Skipped,
		"failed", res.Failed)

	return res
}

func (m *Materializer) fail(ctx context.Context, res *Result, inst core.Transaction, policy Policy, err error) {
	res.Failed++
	res.Errs = append(res.Errs, err)
	m.logger.ErrorContext(ctx, "Failed to materialize instance",
		log.FieldPolicy, policy.Name(),
		log.FieldKind, inst.Kind,
		log.FieldDate, inst.Date.String(),
		log.FieldError, err)
}
