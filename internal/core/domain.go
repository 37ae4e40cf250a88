package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// BudgetType separates household money from business money.
const (
	Personal BudgetType = "PERSONAL"
	Business BudgetType = "BUSINESS"
)

const (
	Weekly  Cadence = "WEEKLY"
	Monthly Cadence = "MONTHLY"
	Yearly  Cadence = "YEARLY"
	Project Cadence = "PROJECT"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
	KindBill    Kind = "bill"
	KindDebt    Kind = "debt"
	KindSaving  Kind = "saving"
)

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
	CategorySaving  CategoryType = "saving"
)

const (
	StatusPending   SubscriptionStatus = "PENDING"
	StatusPaid      SubscriptionStatus = "PAID"
	StatusCancelled SubscriptionStatus = "CANCELLED"
)

// UpdateMode selects how far an edit or delete reaches into a recurring series.
const (
	ModeSingle UpdateMode = "SINGLE"
	ModeFuture UpdateMode = "FUTURE"
)

type (
	BudgetType         string
	Cadence            string
	Kind               string
	CategoryType       string
	SubscriptionStatus string
	UpdateMode         string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	BudgetPeriod struct {
		ID        string     `json:"id"`
		UserID    string     `json:"userId"`
		Month     int        `json:"month"`
		Year      int        `json:"year"`
		Type      BudgetType `json:"type"`
		Currency  string     `json:"currency"`
		CreatedAt time.Time  `json:"createdAt"`
	}

	// VAT is the tax breakdown of a business transaction.
	VAT struct {
		AmountBeforeVAT decimal.Decimal `json:"amountBeforeVat"`
		Rate            decimal.Decimal `json:"vatRate"`
		Amount          decimal.Decimal `json:"vatAmount"`
	}

	// Transaction is the shared shape of expenses, incomes, bills, debts and savings.
	Transaction struct {
		ID           string          `json:"id"`
		UserID       string          `json:"-"`
		BudgetID     string          `json:"budgetId"`
		Kind         Kind            `json:"kind"`
		Amount       decimal.Decimal `json:"amount"`
		Currency     string          `json:"currency"`
		Date         Date            `json:"date"`
		Description  string          `json:"description"`
		Category     string          `json:"category"`
		VAT          *VAT            `json:"vat,omitempty"`
		IsDeductible bool            `json:"isDeductible"`
		IsPaid       bool            `json:"isPaid"`
		PaymentDate  *Date           `json:"paymentDate,omitempty"`

		ClientID   string `json:"clientId,omitempty"`
		SupplierID string `json:"supplierId,omitempty"`
		ProjectID  string `json:"projectId,omitempty"`
		InvoiceID  string `json:"invoiceId,omitempty"`

		IsRecurring       bool    `json:"isRecurring"`
		RecurringSourceID string  `json:"recurringSourceId,omitempty"`
		RecurrenceStart   *Date   `json:"recurringStartDate,omitempty"`
		RecurrenceEnd     *Date   `json:"recurringEndDate,omitempty"`
		Cadence           Cadence `json:"cadence,omitempty"`
		Generated         bool    `json:"generated"`

		TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
		Goal        *decimal.Decimal `json:"goal,omitempty"`

		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	Category struct {
		ID     string       `json:"id"`
		UserID string       `json:"-"`
		Name   string       `json:"name"`
		Type   CategoryType `json:"type"`
		Scope  BudgetType   `json:"scope"`
		Color  string       `json:"color,omitempty"`
	}

	// Subscription is the billing plan embedded in a client or supplier.
	Subscription struct {
		Price     decimal.Decimal    `json:"price"`
		Currency  string             `json:"currency"`
		Cadence   Cadence            `json:"cadence,omitempty"`
		StartDate *Date              `json:"startDate,omitempty"`
		EndDate   *Date              `json:"endDate,omitempty"`
		Status    SubscriptionStatus `json:"status,omitempty"`
	}

	// Entity is a client or a supplier.
	Entity struct {
		ID           string       `json:"id"`
		UserID       string       `json:"-"`
		Role         EntityRole   `json:"role"`
		Name         string       `json:"name"`
		Email        string       `json:"email,omitempty"`
		Phone        string       `json:"phone,omitempty"`
		TaxID        string       `json:"taxId,omitempty"`
		Notes        string       `json:"notes,omitempty"`
		Scope        BudgetType   `json:"scope"`
		Subscription Subscription `json:"subscription"`
		CreatedAt    time.Time    `json:"createdAt"`
		UpdatedAt    time.Time    `json:"updatedAt"`
	}

	EntityRole string
)

const (
	RoleClient   EntityRole = "client"
	RoleSupplier EntityRole = "supplier"
)

// Kinds lists every transaction kind in a stable order.
var Kinds = []Kind{KindExpense, KindIncome, KindBill, KindDebt, KindSaving}

func (t BudgetType) Valid() bool { return t == Personal || t == Business }

func (c Cadence) Valid() bool {
	switch c {
	case Weekly, Monthly, Yearly, Project:
		return true
	}
	return false
}

func (k Kind) Valid() bool {
	switch k {
	case KindExpense, KindIncome, KindBill, KindDebt, KindSaving:
		return true
	}
	return false
}

// Inflow reports whether the kind brings money in.
func (k Kind) Inflow() bool { return k == KindIncome }

func (c CategoryType) Valid() bool {
	return c == CategoryExpense || c == CategoryIncome || c == CategorySaving
}

// Kinds returns the transaction kinds that draw their category from c.
func (c CategoryType) Kinds() []Kind {
	switch c {
	case CategoryExpense:
		return []Kind{KindExpense, KindBill, KindDebt}
	case CategoryIncome:
		return []Kind{KindIncome}
	case CategorySaving:
		return []Kind{KindSaving}
	}
	return nil
}

func (s SubscriptionStatus) Valid() bool {
	return s == StatusPending || s == StatusPaid || s == StatusCancelled
}

func (m UpdateMode) Valid() bool { return m == ModeSingle || m == ModeFuture }

// ParseUpdateMode defaults to SINGLE when s is empty.
func ParseUpdateMode(s string) (UpdateMode, error) {
	if s == "" {
		return ModeSingle, nil
	}
	m := UpdateMode(strings.ToUpper(s))
	if !m.Valid() {
		return "", Invalid("mode must be SINGLE or FUTURE")
	}
	return m, nil
}

func (r EntityRole) Valid() bool { return r == RoleClient || r == RoleSupplier }

// LedgerKind is the kind of row a subscription of this role produces.
func (r EntityRole) LedgerKind() Kind {
	if r == RoleClient {
		return KindIncome
	}
	return KindExpense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses YYYY-MM-DD, also accepting a full RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, Invalid(fmt.Sprintf("invalid date %q", s))
	}
	return DateOf(t.UTC()), nil
}

func (d Date) String() string { return d.Format(dateLayout) }

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month.
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return Invalid("date must be a string")
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SeriesID identifies the recurring series a row belongs to.
func (t Transaction) SeriesID() string {
	if t.RecurringSourceID != "" {
		return t.RecurringSourceID
	}
	return t.ID
}

// Net is the amount without VAT for deductible business rows.
func (t Transaction) Net(budgetType BudgetType) decimal.Decimal {
	if budgetType == Business && t.IsDeductible && t.VAT != nil {
		return t.Amount.Sub(t.VAT.Amount)
	}
	return t.Amount
}

// EntityID returns the client or supplier the row is tied to.
func (t Transaction) EntityID() string {
	if t.ClientID != "" {
		return t.ClientID
	}
	return t.SupplierID
}

// ValidatePeriod checks the month and year of a budget period key.
func ValidatePeriod(month, year int, budgetType BudgetType) error {
	if month < 1 || month > 12 {
		return Invalid("month must be between 1 and 12")
	}
	if year < 1000 || year > 9999 {
		return Invalid("year must have four digits")
	}
	if !budgetType.Valid() {
		return Invalid("budget type must be PERSONAL or BUSINESS")
	}
	return nil
}
