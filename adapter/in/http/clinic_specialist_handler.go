package http

import (
	"clinic_server/core/port/in"
	"clinic_server/pkg/apperr"
	"clinic_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SpecialistHandler exposes the provider roster.
type SpecialistHandler struct {
	specialists in.SpecialistService
}

func NewSpecialistHandler(specialists in.SpecialistService) *SpecialistHandler {
	return &SpecialistHandler{specialists: specialists}
}

func (h *SpecialistHandler) Register(app fiber.Router) {
	sp := app.Group("/specialists")
	sp.Get("/", h.List)
	sp.Get("/:id", h.Get)
	sp.Post("/", h.Create)
	sp.Put("/:id", h.Update)
	sp.Delete("/:id", h.Delete)
}

func (h *SpecialistHandler) List(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)

	specialists, err := h.specialists.List(c.Context(), activeOnly)
	if err != nil {
		return err
	}
	return response.OK(c, specialists)
}

func (h *SpecialistHandler) Get(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	sp, err := h.specialists.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, sp)
}

func (h *SpecialistHandler) Create(c *fiber.Ctx) error {
	var req in.SaveSpecialistRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	sp, err := h.specialists.Create(c.Context(), &req)
	if err != nil {
		return err
	}
	return response.Created(c, sp)
}

func (h *SpecialistHandler) Update(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req in.SaveSpecialistRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	sp, err := h.specialists.Update(c.Context(), id, &req)
	if err != nil {
		return err
	}
	return response.OK(c, sp)
}

func (h *SpecialistHandler) Delete(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.specialists.Delete(c.Context(), id); err != nil {
		return err
	}
	return response.NoContent(c)
}
