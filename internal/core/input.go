package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const maxDescriptionLen = 200

type (
	// TransactionInput is what a caller submits to create a ledger row.
	TransactionInput struct {
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

		IsRecurring   bool    `json:"isRecurring"`
		Cadence       Cadence `json:"cadence,omitempty"`
		RecurrenceEnd *Date   `json:"recurringEndDate,omitempty"`

		TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
		Goal        *decimal.Decimal `json:"goal,omitempty"`
	}

	// TransactionPatch lists the fields an update may change; nil means unchanged.
	TransactionPatch struct {
		Amount       *decimal.Decimal `json:"amount,omitempty"`
		Currency     *string          `json:"currency,omitempty"`
		Date         *Date            `json:"date,omitempty"`
		Description  *string          `json:"description,omitempty"`
		Category     *string          `json:"category,omitempty"`
		VAT          *VAT             `json:"vat,omitempty"`
		IsDeductible *bool            `json:"isDeductible,omitempty"`
		IsPaid       *bool            `json:"isPaid,omitempty"`
		PaymentDate  *Date            `json:"paymentDate,omitempty"`
		TotalAmount  *decimal.Decimal `json:"totalAmount,omitempty"`
		Goal         *decimal.Decimal `json:"goal,omitempty"`
	}

	EntityInput struct {
		Name         string       `json:"name"`
		Email        string       `json:"email,omitempty"`
		Phone        string       `json:"phone,omitempty"`
		TaxID        string       `json:"taxId,omitempty"`
		Notes        string       `json:"notes,omitempty"`
		Scope        BudgetType   `json:"scope,omitempty"`
		Subscription Subscription `json:"subscription"`
	}

	CategoryInput struct {
		Name  string       `json:"name"`
		Type  CategoryType `json:"type"`
		Scope BudgetType   `json:"scope,omitempty"`
		Color string       `json:"color,omitempty"`
	}
)

// Normalize validates the input for a period of budgetType and fills defaults.
func (in *TransactionInput) Normalize(kind Kind, budgetType BudgetType) error {
	if !kind.Valid() {
		return Invalid("unknown transaction kind")
	}
	if in.Amount.LessThan(MinAmount) {
		return Invalid("amount must be at least 0.01")
	}
	cur, err := NormalizeCurrency(in.Currency)
	if err != nil {
		return Invalid("unsupported currency " + in.Currency)
	}
	in.Currency = cur
	if in.Date.IsZero() {
		return Invalid("date is required")
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return Invalid("description is required")
	}
	if len(in.Description) > maxDescriptionLen {
		return Invalid("description too long (max 200 characters)")
	}
	in.Category = strings.TrimSpace(in.Category)
	if in.VAT != nil {
		if budgetType != Business {
			return Invalid("VAT applies only to business budgets")
		}
		if err := in.VAT.Validate(); err != nil {
			return err
		}
	}
	if in.IsRecurring {
		if in.Cadence == "" {
			in.Cadence = Monthly
		}
		if !in.Cadence.Valid() {
			return Invalid("cadence must be WEEKLY, MONTHLY, YEARLY or PROJECT")
		}
		if in.RecurrenceEnd != nil && in.RecurrenceEnd.Before(in.Date) {
			return Invalid("recurring end date must not precede the start date")
		}
	}
	if in.TotalAmount != nil && in.TotalAmount.IsNegative() {
		return Invalid("total amount must not be negative")
	}
	if in.Goal != nil && in.Goal.IsNegative() {
		return Invalid("goal must not be negative")
	}
	return nil
}

// Transaction builds the row described by a normalized input. Recurrence
// fields are filled only when the input is recurring.
func (in TransactionInput) Transaction(kind Kind) Transaction {
	t := Transaction{
		Kind:         kind,
		Amount:       in.Amount,
		Currency:     in.Currency,
		Date:         in.Date,
		Description:  in.Description,
		Category:     in.Category,
		VAT:          in.VAT,
		IsDeductible: in.IsDeductible,
		IsPaid:       in.IsPaid || in.PaymentDate != nil,
		PaymentDate:  in.PaymentDate,
		ClientID:     in.ClientID,
		SupplierID:   in.SupplierID,
		ProjectID:    in.ProjectID,
		InvoiceID:    in.InvoiceID,
		TotalAmount:  in.TotalAmount,
		Goal:         in.Goal,
	}
	if in.IsRecurring {
		start := in.Date
		t.IsRecurring = true
		t.Cadence = in.Cadence
		t.RecurrenceStart = &start
		t.RecurrenceEnd = in.RecurrenceEnd
	}
	return t
}

func (v VAT) Validate() error {
	if v.Amount.IsNegative() || v.AmountBeforeVAT.IsNegative() || v.Rate.IsNegative() {
		return Invalid("VAT fields must not be negative")
	}
	return nil
}

// Validate checks a patch before it reaches persistence.
func (p TransactionPatch) Validate() error {
	if p.Amount != nil && p.Amount.LessThan(MinAmount) {
		return Invalid("amount must be at least 0.01")
	}
	if p.Currency != nil {
		if _, err := NormalizeCurrency(*p.Currency); err != nil {
			return Invalid("unsupported currency " + *p.Currency)
		}
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		if d == "" {
			return Invalid("description is required")
		}
		if len(d) > maxDescriptionLen {
			return Invalid("description too long (max 200 characters)")
		}
	}
	if p.VAT != nil {
		if err := p.VAT.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Apply copies the series-wide fields of p onto t. Date and payment status
// belong to a single instance and are applied by ApplyInstance.
func (p TransactionPatch) Apply(t *Transaction) {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Currency != nil {
		t.Currency, _ = NormalizeCurrency(*p.Currency)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.VAT != nil {
		v := *p.VAT
		t.VAT = &v
	}
	if p.IsDeductible != nil {
		t.IsDeductible = *p.IsDeductible
	}
	if p.TotalAmount != nil {
		v := *p.TotalAmount
		t.TotalAmount = &v
	}
	if p.Goal != nil {
		v := *p.Goal
		t.Goal = &v
	}
}

// ApplyInstance applies every field of p, including the per-instance ones.
func (p TransactionPatch) ApplyInstance(t *Transaction) {
	p.Apply(t)
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.IsPaid != nil {
		t.IsPaid = *p.IsPaid
		if !t.IsPaid {
			t.PaymentDate = nil
		}
	}
	if p.PaymentDate != nil {
		d := *p.PaymentDate
		t.PaymentDate = &d
		t.IsPaid = true
	}
}

// Normalize validates the entity input and fills defaults.
func (in *EntityInput) Normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Invalid("name is required")
	}
	if in.Scope == "" {
		in.Scope = Business
	}
	if !in.Scope.Valid() {
		return Invalid("scope must be PERSONAL or BUSINESS")
	}
	s := &in.Subscription
	if s.Price.IsNegative() {
		return Invalid("subscription price must not be negative")
	}
	cur, err := NormalizeCurrency(s.Currency)
	if err != nil {
		return Invalid("unsupported currency " + s.Currency)
	}
	s.Currency = cur
	if s.Cadence != "" && !s.Cadence.Valid() {
		return Invalid("cadence must be WEEKLY, MONTHLY, YEARLY or PROJECT")
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	if !s.Status.Valid() {
		return Invalid("status must be PENDING, PAID or CANCELLED")
	}
	if s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
		return Invalid("subscription end date must not precede the start date")
	}
	return nil
}

func (in *CategoryInput) Normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Invalid("category name is required")
	}
	if in.Type == "" {
		in.Type = CategoryExpense
	}
	if !in.Type.Valid() {
		return Invalid("category type must be expense, income or saving")
	}
	if in.Scope == "" {
		in.Scope = Personal
	}
	if !in.Scope.Valid() {
		return Invalid("scope must be PERSONAL or BUSINESS")
	}
	return nil
}
