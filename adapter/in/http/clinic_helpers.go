// Package http contains the Fiber handlers for the clinic API.
package http

import (
	"time"

	"clinic_server/core/port/in"
	"clinic_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetUserID extracts the authenticated user from fiber locals.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals("user_id").(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperr.Unauthorized("")
	}
	return userID, nil
}

// GetSession builds the caller's session from the auth middleware's locals.
func GetSession(c *fiber.Ctx) (*in.Session, error) {
	userID, err := GetUserID(c)
	if err != nil {
		return nil, err
	}
	providerToken, _ := c.Locals("provider_token").(string)
	return &in.Session{
		UserID:        userID,
		ProviderToken: providerToken,
	}, nil
}

// ParseWindow reads the start/end query params, defaulting to the coming
// seven days.
func ParseWindow(c *fiber.Ctx) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, 7)

	if s := c.Query("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return start, end, apperr.InvalidInput("start", "must be RFC3339")
		}
		start = t
	}
	if e := c.Query("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			return start, end, apperr.InvalidInput("end", "must be RFC3339")
		}
		end = t
	}

	if !start.Before(end) {
		return start, end, apperr.InvalidInput("end", "must be after start")
	}
	return start, end, nil
}

// ParseID reads a UUID path parameter.
func ParseID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput(name, "must be a valid UUID")
	}
	return id, nil
}
