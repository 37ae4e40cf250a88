// Package core provides money parsing and handling utilities.
//
// Amounts are decimals tagged with an ISO 4217 code; they are never
// converted when stored.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ReportingCurrency is the currency aggregates are normalized into by default.
const ReportingCurrency = "ILS"

// MinAmount is the smallest accepted transaction amount.
var MinAmount = decimal.RequireFromString("0.01")

var supportedCurrencies = map[string]struct{}{
	"ILS": {},
	"USD": {},
	"EUR": {},
	"GBP": {},
}

// Money is an amount together with its currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// ParseAmount parses a positive decimal, accepting a comma as decimal separator.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34
//	ParseAmount("12,34") -> 12.34
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.LessThan(MinAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// NormalizeCurrency upper-cases code and checks it is supported.
// An empty code yields the reporting currency.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ReportingCurrency, nil
	}
	if _, ok := supportedCurrencies[code]; !ok {
		return "", ErrInvalidCurrency
	}
	return code, nil
}

// Round2 rounds for presentation only.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func (m Money) Validate() error {
	if m.Amount.LessThan(MinAmount) {
		return ErrInvalidAmount
	}
	if _, err := NormalizeCurrency(m.Currency); err != nil {
		return err
	}
	return nil
}
