package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"clinic_server/core/port/out"
	"clinic_server/pkg/httputil"
	"clinic_server/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleCalendarAdapter implements CalendarProviderPort for Google Calendar.
// All calls run through a circuit breaker so a Google outage degrades the
// agenda to local data instead of stalling every request.
type GoogleCalendarAdapter struct {
	oauthConfig *oauth2.Config
	cb          *gobreaker.CircuitBreaker
}

// NewGoogleCalendarAdapter creates a new Google Calendar adapter.
func NewGoogleCalendarAdapter(oauthConfig *oauth2.Config) *GoogleCalendarAdapter {
	cbSettings := gobreaker.Settings{
		Name:        "google-calendar-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
		IsSuccessful: func(err error) bool {
			// Credential problems are the caller's to handle, not a
			// service outage; they must not trip the breaker.
			return err == nil || out.IsAuthExpired(err)
		},
	}

	return &GoogleCalendarAdapter{
		oauthConfig: oauthConfig,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// getService creates a Calendar service bound to the token, over the shared
// pooled HTTP client.
func (a *GoogleCalendarAdapter) getService(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.GoogleCalendarClient())
	client := a.oauthConfig.Client(ctx, token)
	return calendar.NewService(ctx, option.WithHTTPClient(client))
}

// ListEvents lists single-occurrence events within the window, ordered by
// start time.
func (a *GoogleCalendarAdapter) ListEvents(ctx context.Context, token *oauth2.Token, calendarID string, timeMin, timeMax time.Time) ([]*out.ProviderEvent, error) {
	res, err := a.cb.Execute(func() (interface{}, error) {
		svc, err := a.getService(ctx, token)
		if err != nil {
			return nil, wrapProviderError(err, "failed to create calendar service")
		}

		if calendarID == "" {
			calendarID = "primary"
		}

		resp, err := svc.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).Do()
		if err != nil {
			return nil, wrapProviderError(err, "failed to list events")
		}

		events := make([]*out.ProviderEvent, 0, len(resp.Items))
		for _, item := range resp.Items {
			ev, err := convertEvent(item, calendarID)
			if err != nil {
				logger.Warn("skipping malformed calendar event: %v", err)
				continue
			}
			events = append(events, ev)
		}
		return events, nil
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return res.([]*out.ProviderEvent), nil
}

// CreateEvent creates a new event on the calendar.
func (a *GoogleCalendarAdapter) CreateEvent(ctx context.Context, token *oauth2.Token, calendarID string, event *out.ProviderEvent) (*out.ProviderEvent, error) {
	res, err := a.cb.Execute(func() (interface{}, error) {
		svc, err := a.getService(ctx, token)
		if err != nil {
			return nil, wrapProviderError(err, "failed to create calendar service")
		}

		if calendarID == "" {
			calendarID = "primary"
		}

		created, err := svc.Events.Insert(calendarID, toGoogleEvent(event)).
			SendUpdates("none").
			Context(ctx).Do()
		if err != nil {
			return nil, wrapProviderError(err, "failed to create event")
		}
		ev, err := convertEvent(created, calendarID)
		if err != nil {
			return nil, wrapProviderError(err, "malformed created event")
		}
		return ev, nil
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return res.(*out.ProviderEvent), nil
}

// UpdateEvent updates an existing event.
func (a *GoogleCalendarAdapter) UpdateEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string, event *out.ProviderEvent) (*out.ProviderEvent, error) {
	res, err := a.cb.Execute(func() (interface{}, error) {
		svc, err := a.getService(ctx, token)
		if err != nil {
			return nil, wrapProviderError(err, "failed to create calendar service")
		}

		if calendarID == "" {
			calendarID = "primary"
		}

		updated, err := svc.Events.Update(calendarID, eventID, toGoogleEvent(event)).
			SendUpdates("none").
			Context(ctx).Do()
		if err != nil {
			return nil, wrapProviderError(err, "failed to update event")
		}
		ev, err := convertEvent(updated, calendarID)
		if err != nil {
			return nil, wrapProviderError(err, "malformed updated event")
		}
		return ev, nil
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return res.(*out.ProviderEvent), nil
}

// DeleteEvent deletes an event from the calendar.
func (a *GoogleCalendarAdapter) DeleteEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		svc, err := a.getService(ctx, token)
		if err != nil {
			return nil, wrapProviderError(err, "failed to create calendar service")
		}

		if calendarID == "" {
			calendarID = "primary"
		}

		if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
			return nil, wrapProviderError(err, "failed to delete event")
		}
		return nil, nil
	})
	return breakerError(err)
}

// convertEvent maps a Google event to the provider shape. Events whose
// timestamps do not parse are rejected rather than passed through with zero
// times.
func convertEvent(event *calendar.Event, calendarID string) (*out.ProviderEvent, error) {
	result := &out.ProviderEvent{
		ID:          event.Id,
		CalendarID:  calendarID,
		Title:       event.Summary,
		Description: event.Description,
		Status:      event.Status,
	}

	if event.Start != nil {
		if event.Start.DateTime != "" {
			t, err := time.Parse(time.RFC3339, event.Start.DateTime)
			if err != nil {
				return nil, fmt.Errorf("event %s: bad start time %q: %w", event.Id, event.Start.DateTime, err)
			}
			result.Start = t
			result.Timezone = event.Start.TimeZone
		} else if event.Start.Date != "" {
			t, err := time.Parse("2006-01-02", event.Start.Date)
			if err != nil {
				return nil, fmt.Errorf("event %s: bad start date %q: %w", event.Id, event.Start.Date, err)
			}
			result.Start = t
		}
	}

	if event.End != nil {
		if event.End.DateTime != "" {
			t, err := time.Parse(time.RFC3339, event.End.DateTime)
			if err != nil {
				return nil, fmt.Errorf("event %s: bad end time %q: %w", event.Id, event.End.DateTime, err)
			}
			result.End = t
		} else if event.End.Date != "" {
			t, err := time.Parse("2006-01-02", event.End.Date)
			if err != nil {
				return nil, fmt.Errorf("event %s: bad end date %q: %w", event.Id, event.End.Date, err)
			}
			result.End = t
		}
	}

	return result, nil
}

func toGoogleEvent(event *out.ProviderEvent) *calendar.Event {
	tz := event.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Status:      event.Status,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}
}

// wrapProviderError classifies Google API failures into stable codes.
func wrapProviderError(err error, msg string) error {
	code := out.ProviderErrTransport

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			code = out.ProviderErrAuthExpired
		case http.StatusNotFound, http.StatusGone:
			code = out.ProviderErrNotFound
		}
	}

	// Token refresh failures surface as oauth2 retrieve errors, not
	// googleapi errors.
	if code == out.ProviderErrTransport && isTokenRevokedError(err) {
		code = out.ProviderErrAuthExpired
	}

	return &out.ProviderError{
		Code:    code,
		Message: fmt.Sprintf("%s: %v", msg, err),
		Err:     err,
	}
}

func isTokenRevokedError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "invalid_grant") ||
		strings.Contains(s, "Token has been expired or revoked")
}

// breakerError maps gobreaker sentinels to transport errors so callers see a
// single error taxonomy.
func breakerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &out.ProviderError{
			Code:    out.ProviderErrTransport,
			Message: "calendar provider unavailable",
			Err:     err,
		}
	}
	return err
}
