package core

import "github.com/shopspring/decimal"

// CategoryAmount represents a category and its total in the reporting currency.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Totals are sums of a set of transactions in the reporting currency.
type Totals struct {
	Currency   string           `json:"currency"`
	Count      int              `json:"count"`
	Total      decimal.Decimal  `json:"totalInReportingCurrency"`
	Net        decimal.Decimal  `json:"totalNetInReportingCurrency"`
	VAT        decimal.Decimal  `json:"totalVat"`
	Paid       decimal.Decimal  `json:"totalPaid"`
	Unpaid     decimal.Decimal  `json:"totalUnpaid"`
	ByCategory []CategoryAmount `json:"byCategory,omitempty"`
}

// Rounded returns a copy rounded for presentation.
func (t Totals) Rounded() Totals {
	out := t
	out.Total = Round2(t.Total)
	out.Net = Round2(t.Net)
	out.VAT = Round2(t.VAT)
	out.Paid = Round2(t.Paid)
	out.Unpaid = Round2(t.Unpaid)
	if t.ByCategory != nil {
		out.ByCategory = make([]CategoryAmount, len(t.ByCategory))
		for i, c := range t.ByCategory {
			out.ByCategory[i] = CategoryAmount{Name: c.Name, Amount: Round2(c.Amount)}
		}
	}
	return out
}

// Listing is a page of one kind of transaction with its totals.
type Listing struct {
	Budget BudgetPeriod  `json:"budget"`
	Items  []Transaction `json:"items"`
	Totals Totals        `json:"totals"`
}

// MonthOverview compares inflow and outflow for one budget period.
type MonthOverview struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Type     BudgetType      `json:"type"`
	Currency string          `json:"currency"`
	ByKind   map[Kind]Totals `json:"byKind"`
	Income   decimal.Decimal `json:"income"`
	Outflow  decimal.Decimal `json:"outflow"`
	Balance  decimal.Decimal `json:"balance"`
}

// EntityStats is the monthly revenue or spend tied to one client or supplier.
type EntityStats struct {
	EntityID string            `json:"entityId"`
	Year     int               `json:"year"`
	Currency string            `json:"currency"`
	Monthly  []decimal.Decimal `json:"monthly"`
	Total    decimal.Decimal   `json:"total"`
	Count    int               `json:"count"`
}
