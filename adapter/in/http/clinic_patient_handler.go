package http

import (
	"clinic_server/core/port/in"
	"clinic_server/pkg/apperr"
	"clinic_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PatientHandler exposes the patient roster.
type PatientHandler struct {
	patients in.PatientService
}

func NewPatientHandler(patients in.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

func (h *PatientHandler) Register(app fiber.Router) {
	p := app.Group("/patients")
	p.Get("/", h.List)
	p.Get("/:id", h.Get)
	p.Post("/", h.Create)
	p.Put("/:id", h.Update)
	p.Delete("/:id", h.Delete)
}

func (h *PatientHandler) List(c *fiber.Ctx) error {
	pg := response.GetPagination(c, 20, 100)

	patients, total, err := h.patients.List(c.Context(), c.Query("search"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return response.OKWithMeta(c, patients, &response.Meta{
		Total:    total,
		Page:     pg.Page,
		PageSize: pg.PageSize,
		HasMore:  pg.Offset+len(patients) < total,
	})
}

func (h *PatientHandler) Get(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	patient, err := h.patients.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, patient)
}

func (h *PatientHandler) Create(c *fiber.Ctx) error {
	var req in.SavePatientRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	patient, err := h.patients.Create(c.Context(), &req)
	if err != nil {
		return err
	}
	return response.Created(c, patient)
}

func (h *PatientHandler) Update(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req in.SavePatientRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	patient, err := h.patients.Update(c.Context(), id, &req)
	if err != nil {
		return err
	}
	return response.OK(c, patient)
}

func (h *PatientHandler) Delete(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.patients.Delete(c.Context(), id); err != nil {
		return err
	}
	return response.NoContent(c)
}
