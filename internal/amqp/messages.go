package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cashflow/internal/core"
)

// CalendarSyncMessage asks the worker to push one budget period to the calendar.
// It carries only the period key; the worker reads the rows itself.
type CalendarSyncMessage struct {
	UserID    string          `json:"userId"`
	Month     int             `json:"month"`
	Year      int             `json:"year"`
	Type      core.BudgetType `json:"type"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewCalendarSyncMessage(userID string, month, year int, budgetType core.BudgetType, reason string) *CalendarSyncMessage {
	return &CalendarSyncMessage{
		UserID:    userID,
		Month:     month,
		Year:      year,
		Type:      budgetType,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *CalendarSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CalendarSyncMessageFromJSON decodes and validates a message body.
func CalendarSyncMessageFromJSON(data []byte) (*CalendarSyncMessage, error) {
	var msg CalendarSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("calendar sync message without user")
	}
	if err := core.ValidatePeriod(msg.Month, msg.Year, msg.Type); err != nil {
		return nil, err
	}
	return &msg, nil
}
