package http

import (
	"clinic_server/core/port/in"
	"clinic_server/pkg/apperr"
	"clinic_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler drives the Google Calendar connection flow.
type AuthHandler struct {
	auth in.GoogleAuthService
}

func NewAuthHandler(auth in.GoogleAuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(app fiber.Router) {
	g := app.Group("/auth/google")
	g.Get("/url", h.AuthURL)
	g.Post("/callback", h.Callback)
	g.Get("/status", h.Status)
	g.Delete("/", h.Disconnect)
}

// AuthURL returns the consent URL. The state is the caller's user ID, which
// the frontend echoes back through the callback.
func (h *AuthHandler) AuthURL(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{
		"url": h.auth.AuthURL(userID.String()),
	})
}

func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return apperr.InvalidInput("code", "must not be empty")
	}

	cred, err := h.auth.HandleCallback(c.Context(), userID, req.Code)
	if err != nil {
		return err
	}

	return response.OK(c, fiber.Map{
		"connected": cred.IsConnected,
		"email":     cred.Email,
	})
}

func (h *AuthHandler) Status(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	cred, err := h.auth.Status(c.Context(), userID)
	if err != nil {
		return err
	}
	if cred == nil {
		return response.OK(c, fiber.Map{"connected": false})
	}

	return response.OK(c, fiber.Map{
		"connected": cred.IsConnected,
		"email":     cred.Email,
		"expires":   cred.ExpiresAt,
	})
}

func (h *AuthHandler) Disconnect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	if err := h.auth.Disconnect(c.Context(), userID); err != nil {
		return err
	}
	return response.NoContent(c)
}
