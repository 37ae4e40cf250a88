package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
	"cashflow/internal/currency"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newBatch() *currency.Batch {
	src := currency.NewStaticSource("ILS", map[string]decimal.Decimal{"USD": dec("3.5")})
	return currency.NewConverter(src, "ILS", time.Hour, nil).Batch()
}

func TestSum_CurrencyNeutralAndOrderIndependent(t *testing.T) {
	a := core.Transaction{ID: "a", Amount: dec("100"), Currency: "USD", Date: core.NewDate(2024, 1, 2)}
	b := core.Transaction{ID: "b", Amount: dec("50"), Currency: "ILS", Date: core.NewDate(2024, 1, 1)}

	for _, input := range [][]core.Transaction{{a, b}, {b, a}} {
		got, err := Sum(context.Background(), newBatch(), input, Options{BudgetType: core.Personal})
		if err != nil {
			t.Fatalf("Sum() error = %v", err)
		}
		if !got.Total.Equal(dec("400")) {
			t.Errorf("Sum().Total = %s, want 400", got.Total)
		}
		if got.Count != 2 || got.Currency != "ILS" {
			t.Errorf("Sum() = %+v", got)
		}
	}
}

func TestSum_Empty(t *testing.T) {
	got, err := Sum(context.Background(), newBatch(), nil, Options{ByCategory: true})
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}
	for name, v := range map[string]decimal.Decimal{
		"Total": got.Total, "Net": got.Net, "VAT": got.VAT, "Paid": got.Paid, "Unpaid": got.Unpaid,
	} {
		if !v.IsZero() {
			t.Errorf("%s = %s, want 0", name, v)
		}
	}
	if got.Count != 0 || len(got.ByCategory) != 0 {
		t.Errorf("Sum(nil) = %+v", got)
	}
}

func TestSum_NetPaidAndCategories(t *testing.T) {
	paidOn := core.NewDate(2024, 3, 5)
	txs := []core.Transaction{
		{
			ID: "1", Amount: dec("117"), Currency: "ILS", Date: core.NewDate(2024, 3, 1), Category: "Software",
			IsDeductible: true, VAT: &core.VAT{AmountBeforeVAT: dec("100"), Rate: dec("17"), Amount: dec("17")},
			IsPaid: true,
		},
		{
			ID: "2", Amount: dec("10"), Currency: "USD", Date: core.NewDate(2024, 3, 2), Category: "Software",
			PaymentDate: &paidOn,
		},
		{ID: "3", Amount: dec("20"), Currency: "ILS", Date: core.NewDate(2024, 3, 3)},
	}

	got, err := Sum(context.Background(), newBatch(), txs, Options{BudgetType: core.Business, ByCategory: true})
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"Total", got.Total, "172"},
		{"Net", got.Net, "155"},
		{"VAT", got.VAT, "17"},
		{"Paid", got.Paid, "152"},
		{"Unpaid", got.Unpaid, "20"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}

	if len(got.ByCategory) != 2 {
		t.Fatalf("ByCategory = %+v", got.ByCategory)
	}
	if got.ByCategory[0].Name != "Software" || !got.ByCategory[0].Amount.Equal(dec("152")) {
		t.Errorf("ByCategory[0] = %+v", got.ByCategory[0])
	}
	if got.ByCategory[1].Name != Uncategorized {
		t.Errorf("ByCategory[1] = %+v", got.ByCategory[1])
	}
}

func TestSum_PersonalIgnoresVATForNet(t *testing.T) {
	txs := []core.Transaction{{
		ID: "1", Amount: dec("117"), Currency: "ILS", Date: core.NewDate(2024, 3, 1),
		IsDeductible: true, VAT: &core.VAT{Amount: dec("17")},
	}}
	got, err := Sum(context.Background(), newBatch(), txs, Options{BudgetType: core.Personal})
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}
	if !got.Net.Equal(dec("117")) {
		t.Errorf("Net = %s, want 117", got.Net)
	}
}

func TestSum_ConversionErrorAborts(t *testing.T) {
	txs := []core.Transaction{
		{ID: "1", Amount: dec("5"), Currency: "ILS", Date: core.NewDate(2024, 1, 1)},
		{ID: "2", Amount: dec("5"), Currency: "GBP", Date: core.NewDate(2024, 1, 2)},
	}
	_, err := Sum(context.Background(), newBatch(), txs, Options{})
	var ce *core.ConversionError
	if !errors.As(err, &ce) || ce.From != "GBP" {
		t.Fatalf("Sum() error = %v, want ConversionError for GBP", err)
	}
}
