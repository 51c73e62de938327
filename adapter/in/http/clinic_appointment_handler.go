package http

import (
	"clinic_server/core/port/in"
	"clinic_server/pkg/apperr"
	"clinic_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AppointmentHandler exposes the agenda and booking operations.
type AppointmentHandler struct {
	schedule in.ScheduleService
}

func NewAppointmentHandler(schedule in.ScheduleService) *AppointmentHandler {
	return &AppointmentHandler{schedule: schedule}
}

func (h *AppointmentHandler) Register(app fiber.Router) {
	appts := app.Group("/appointments")
	appts.Get("/", h.Agenda)
	appts.Get("/:id", h.Get)
	appts.Post("/", h.Create)
	appts.Put("/:id", h.Update)
	appts.Delete("/:id", h.Delete)
}

// Agenda returns the merged local+remote view for a time window.
func (h *AppointmentHandler) Agenda(c *fiber.Ctx) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	start, end, err := ParseWindow(c)
	if err != nil {
		return err
	}

	agenda, err := h.schedule.FetchEvents(c.Context(), sess, start, end)
	if err != nil {
		return err
	}

	meta := &response.Meta{Total: len(agenda.Events)}
	if agenda.Notice != "" {
		meta.Notice = agenda.Notice
	}
	return response.OKWithMeta(c, agenda.Events, meta)
}

func (h *AppointmentHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return apperr.InvalidInput("id", "must not be empty")
	}

	appt, err := h.schedule.GetAppointment(c.Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, appt)
}

func (h *AppointmentHandler) Create(c *fiber.Ctx) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	var req in.CreateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	appt, err := h.schedule.CreateAppointment(c.Context(), sess, &req)
	if err != nil {
		return err
	}
	return response.Created(c, appt)
}

func (h *AppointmentHandler) Update(c *fiber.Ctx) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	if id == "" {
		return apperr.InvalidInput("id", "must not be empty")
	}

	var req in.UpdateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	appt, err := h.schedule.UpdateAppointment(c.Context(), sess, id, &req)
	if err != nil {
		return err
	}
	return response.OK(c, appt)
}

func (h *AppointmentHandler) Delete(c *fiber.Ctx) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	if id == "" {
		return apperr.InvalidInput("id", "must not be empty")
	}

	if err := h.schedule.DeleteAppointment(c.Context(), sess, id); err != nil {
		return err
	}
	return response.NoContent(c)
}
