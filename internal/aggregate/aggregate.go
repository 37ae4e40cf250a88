// Package aggregate sums multi-currency transactions in the reporting currency.
package aggregate

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

// Uncategorized labels rows without a category in per-category sums.
const Uncategorized = "Uncategorized"

// Converter converts one amount into the reporting currency.
type Converter interface {
	ToReporting(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error)
	Reporting() string
}

type Options struct {
	// BudgetType decides whether VAT is netted out of deductible rows.
	BudgetType core.BudgetType
	ByCategory bool
}

// Sum converts and adds up txs. Rows are accumulated in ascending date order
// (ties broken by id) so results do not depend on input order; nothing is
// rounded. The first conversion failure aborts the whole sum.
func Sum(ctx context.Context, conv Converter, txs []core.Transaction, opts Options) (core.Totals, error) {
	totals := core.Totals{
		Currency: conv.Reporting(),
		Total:    decimal.Zero,
		Net:      decimal.Zero,
		VAT:      decimal.Zero,
		Paid:     decimal.Zero,
		Unpaid:   decimal.Zero,
	}

	ordered := make([]core.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})

	byCategory := make(map[string]decimal.Decimal)

	for _, t := range ordered {
		amount, err := conv.ToReporting(ctx, t.Amount, t.Currency)
		if err != nil {
			return core.Totals{}, err
		}
		net := amount
		if n := t.Net(opts.BudgetType); !n.Equal(t.Amount) {
			if net, err = conv.ToReporting(ctx, n, t.Currency); err != nil {
				return core.Totals{}, err
			}
		}

		totals.Count++
		totals.Total = totals.Total.Add(amount)
		totals.Net = totals.Net.Add(net)
		if t.VAT != nil && !t.VAT.Amount.IsZero() {
			vat, err := conv.ToReporting(ctx, t.VAT.Amount, t.Currency)
			if err != nil {
				return core.Totals{}, err
			}
			totals.VAT = totals.VAT.Add(vat)
		}
		if t.IsPaid || t.PaymentDate != nil {
			totals.Paid = totals.Paid.Add(amount)
		} else {
			totals.Unpaid = totals.Unpaid.Add(amount)
		}

		if opts.ByCategory {
			name := t.Category
			if name == "" {
				name = Uncategorized
			}
			byCategory[name] = byCategory[name].Add(amount)
		}
	}

	if opts.ByCategory {
		totals.ByCategory = make([]core.CategoryAmount, 0, len(byCategory))
		for name, amount := range byCategory {
			totals.ByCategory = append(totals.ByCategory, core.CategoryAmount{Name: name, Amount: amount})
		}
		sort.Slice(totals.ByCategory, func(i, j int) bool {
			return totals.ByCategory[i].Name < totals.ByCategory[j].Name
		})
	}

	return totals, nil
}
