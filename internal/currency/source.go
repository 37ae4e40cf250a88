// Package currency converts amounts into the reporting currency.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cashflow/internal/log"
)

// ErrRateUnavailable is returned by sources that do not know a pair.
var ErrRateUnavailable = errors.New("rate unavailable")

// RateSource answers how many units of to one unit of from is worth.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// StaticSource is a fixed table of rates against a base currency.
type StaticSource struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewStaticSource builds a table where rates[code] is the value of one unit
// of code in base.
func NewStaticSource(base string, rates map[string]decimal.Decimal) *StaticSource {
	table := make(map[string]decimal.Decimal, len(rates))
	for code, r := range rates {
		table[strings.ToUpper(code)] = r
	}
	return &StaticSource{base: strings.ToUpper(base), rates: table}
}

func (s *StaticSource) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	inBase := func(code string) (decimal.Decimal, bool) {
		if code == s.base {
			return decimal.NewFromInt(1), true
		}
		r, ok := s.rates[code]
		return r, ok && r.IsPositive()
	}
	f, ok := inBase(from)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s/%s: %w", from, to, ErrRateUnavailable)
	}
	t, ok := inBase(to)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s/%s: %w", from, to, ErrRateUnavailable)
	}
	return f.DivRound(t, 12), nil
}

// ParseRates reads "USD=3.7,EUR=4.05" into a rate table.
func ParseRates(s string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate %q: expected CODE=VALUE", pair)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || !d.IsPositive() {
			return nil, fmt.Errorf("invalid rate %q: value must be a positive number", pair)
		}
		rates[strings.ToUpper(strings.TrimSpace(code))] = d
	}
	return rates, nil
}

// ChainSource asks each source in turn and returns the first answer.
type ChainSource struct {
	sources []RateSource
	logger  *log.Logger
}

func NewChainSource(logger *log.Logger, sources ...RateSource) *ChainSource {
	if logger == nil {
		logger = log.Default(log.ComponentCurrency)
	}
	return &ChainSource{sources: sources, logger: logger}
}

func (c *ChainSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	var errs []error
	for i, s := range c.sources {
		r, err := s.Rate(ctx, from, to)
		if err == nil {
			return r, nil
		}
		c.logger.WarnContext(ctx, "Rate source failed, trying next",
			"source_index", i,
			"from", from,
			"to", to,
			log.FieldError, err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return decimal.Zero, fmt.Errorf("%s/%s: %w", from, to, ErrRateUnavailable)
	}
	return decimal.Zero, errors.Join(errs...)
}
