package out

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ProviderEvent is the provider-neutral event shape exchanged with the remote
// calendar adapter. Times are absolute instants; Description carries the
// encoded patient block.
type ProviderEvent struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Status      string
	Timezone    string
}

// Provider error codes.
const (
	ProviderErrAuthExpired = "AUTH_EXPIRED"
	ProviderErrTransport   = "TRANSPORT"
	ProviderErrNotFound    = "NOT_FOUND"
)

// ProviderError wraps remote calendar failures with a stable code so the
// reconciliation engine can distinguish credential expiry from transient
// transport problems.
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsAuthExpired reports whether err is a provider credential failure.
func IsAuthExpired(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == ProviderErrAuthExpired
}

// CalendarProviderPort is the outbound port to the remote calendar service.
// All operations require a bearer token obtained from the token provider.
type CalendarProviderPort interface {
	// ListEvents returns single-occurrence events within [timeMin, timeMax]
	// on the given calendar, ordered by start time.
	ListEvents(ctx context.Context, token *oauth2.Token, calendarID string, timeMin, timeMax time.Time) ([]*ProviderEvent, error)
	CreateEvent(ctx context.Context, token *oauth2.Token, calendarID string, event *ProviderEvent) (*ProviderEvent, error)
	UpdateEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string, event *ProviderEvent) (*ProviderEvent, error)
	DeleteEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) error
}
