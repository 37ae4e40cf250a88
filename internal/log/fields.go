package log

import "cashflow/internal/core"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldUserID     = "user_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldBudgetType = "budget_type"
	FieldKind       = "kind"
	FieldID         = "id"
	FieldEntityID   = "entity_id"
	FieldDate       = "date"
	FieldAmount     = "amount"
	FieldCurrency   = "currency"
	FieldPolicy     = "policy"
	FieldTask       = "task"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLedger     = "ledger"
	ComponentBudget     = "budget"
	ComponentCategory   = "category"
	ComponentBridge     = "subscription_bridge"
	ComponentRecurrence = "recurrence"
	ComponentCurrency   = "currency"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentCalendar   = "calendar"
	ComponentAuth       = "auth"
	ComponentRateLimit  = "rate_limit"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpRename   = "rename"
	OpSync     = "sync"
	OpConvert  = "convert"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation   = "validation_error"
	ErrorTypeAuth         = "auth_error"
	ErrorTypeNotFound     = "not_found_error"
	ErrorTypeConflict     = "conflict_error"
	ErrorTypeConversion   = "conversion_error"
	ErrorTypeDatabase     = "database_error"
	ErrorTypeNetwork      = "network_error"
	ErrorTypeInternal     = "internal_error"
	ErrorTypeRateLimited  = "rate_limited"
	ErrorTypeUnavailable  = "unavailable"
	ErrorTypeConfigLoader = "configuration_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPeriod adds the budget period key
func (f LogFields) WithPeriod(month, year int, budgetType core.BudgetType) LogFields {
	f[FieldMonth] = month
	f[FieldYear] = year
	f[FieldBudgetType] = string(budgetType)
	return f
}

// WithTransaction adds the identifying fields of a ledger row
func (f LogFields) WithTransaction(t core.Transaction) LogFields {
	f[FieldKind] = string(t.Kind)
	f[FieldID] = t.ID
	f[FieldDate] = t.Date.String()
	f[FieldAmount] = t.Amount.String()
	f[FieldCurrency] = t.Currency
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
