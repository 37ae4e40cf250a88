package currency

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/log"
)

// DefaultCacheTTL is how long a fetched rate is reused.
const DefaultCacheTTL = time.Hour

// Converter turns amounts into the reporting currency. Rates are cached and
// concurrent lookups for the same pair share one fetch. A missing rate is
// always an error, never an implicit 1.
type Converter struct {
	source    RateSource
	reporting string
	rates     *cache.LRUCache[decimal.Decimal]
	group     singleflight.Group
	logger    *log.Logger
}

func NewConverter(source RateSource, reporting string, ttl time.Duration, logger *log.Logger) *Converter {
	if reporting == "" {
		reporting = core.ReportingCurrency
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.Default(log.ComponentCurrency)
	}
	return &Converter{
		source:    source,
		reporting: strings.ToUpper(reporting),
		rates:     cache.NewLRUCache[decimal.Decimal](256, ttl),
		logger:    logger,
	}
}

// Reporting returns the currency aggregates are expressed in.
func (c *Converter) Reporting() string { return c.reporting }

// Cache exposes the rate cache for periodic cleanup.
func (c *Converter) Cache() cache.Cleaner { return c.rates }

// Rate returns the from→to rate, 1 when the currencies match.
func (c *Converter) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := from + ":" + to
	if r, ok := c.rates.Get(key); ok {
		return r, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		r, err := c.source.Rate(ctx, from, to)
		if err != nil {
			return nil, err
		}
		c.rates.Set(key, r)
		return r, nil
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "Exchange rate unavailable",
			log.FieldOperation, log.OpConvert,
			"from", from,
			"to", to,
			log.FieldError, err)
		return decimal.Zero, &core.ConversionError{From: from, To: to, Err: err}
	}
	return v.(decimal.Decimal), nil
}

// ToReporting converts m into the reporting currency.
func (c *Converter) ToReporting(ctx context.Context, m core.Money) (decimal.Decimal, error) {
	r, err := c.Rate(ctx, m.Currency, c.reporting)
	if err != nil {
		return decimal.Zero, err
	}
	return m.Amount.Mul(r), nil
}

// Batch returns a memo scoped to one aggregation request.
func (c *Converter) Batch() *Batch {
	return &Batch{conv: c, memo: make(map[string]decimal.Decimal)}
}

// Batch resolves each currency at most once per aggregation.
type Batch struct {
	conv *Converter
	mu   sync.Mutex
	memo map[string]decimal.Decimal
}

func (b *Batch) Reporting() string { return b.conv.reporting }

// ToReporting converts amount from currency into the reporting currency.
func (b *Batch) ToReporting(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	b.mu.Lock()
	r, ok := b.memo[currency]
	b.mu.Unlock()
	if !ok {
		var err error
		r, err = b.conv.Rate(ctx, currency, b.conv.reporting)
		if err != nil {
			return decimal.Zero, err
		}
		b.mu.Lock()
		b.memo[currency] = r
		b.mu.Unlock()
	}
	return amount.Mul(r), nil
}
