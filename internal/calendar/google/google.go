package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	goption "google.golang.org/api/option"

	"cashflow/internal/calendar"
	"cashflow/internal/core"
	"cashflow/internal/log"
)

const defaultCalendarID = "primary"

type Client struct {
	svc        *gcal.Service
	calendarID string
	logger     *log.Logger
}

var _ calendar.Store = (*Client)(nil)

// Credentials resolves service account JSON from inline content or a file path.
func Credentials(inlineJSON, file string) ([]byte, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	switch {
	case inlineJSON != "":
		return []byte(inlineJSON), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

// New creates a Calendar client authenticated as a service account.
func New(ctx context.Context, credentialsJSON []byte, calendarID string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default(log.ComponentCalendar)
	}
	if calendarID == "" {
		calendarID = defaultCalendarID
	}

	svc, err := gcal.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gcal.CalendarEventsScope))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	logger.InfoContext(ctx, "Google Calendar service created", "calendar_id", calendarID)
	return &Client{svc: svc, calendarID: calendarID, logger: logger}, nil
}

func (c *Client) ListTagged(ctx context.Context, from, to core.Date) ([]string, error) {
	var (
		ids   []string
		token string
	)
	for {
		call := c.svc.Events.List(c.calendarID).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(calendar.NextDay(to).Format(time.RFC3339)).
			SingleEvents(true).
			PrivateExtendedProperty("app=" + calendar.AppTag).
			MaxResults(250).
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}

		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		for _, item := range res.Items {
			if owned(item) {
				ids = append(ids, item.Id)
			}
		}
		if res.NextPageToken == "" {
			return ids, nil
		}
		token = res.NextPageToken
	}
}

func owned(e *gcal.Event) bool {
	if e.ExtendedProperties != nil && e.ExtendedProperties.Private["app"] == calendar.AppTag {
		return true
	}
	return strings.Contains(e.Description, "["+calendar.AppTag+"]")
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (c *Client) Insert(ctx context.Context, e calendar.Event) error {
	ev := &gcal.Event{
		Summary:     e.Summary,
		Description: e.Description,
		ColorId:     e.ColorID,
		Start:       &gcal.EventDateTime{Date: e.Date.String()},
		End:         &gcal.EventDateTime{Date: calendar.NextDay(e.Date).String()},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{"app": calendar.AppTag, "type": "auto-sync"},
		},
	}
	if _, err := c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
