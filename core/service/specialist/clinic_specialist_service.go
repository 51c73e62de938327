// Package specialist manages the provider roster and its calendar mappings.
package specialist

import (
	"context"
	"errors"
	"strings"

	"clinic_server/core/domain"
	"clinic_server/core/port/in"
	"clinic_server/core/port/out"
	"clinic_server/pkg/apperr"

	"github.com/google/uuid"
)

// Service implements in.SpecialistService.
type Service struct {
	specialists out.SpecialistRepository
}

// NewService creates a new specialist service.
func NewService(specialists out.SpecialistRepository) *Service {
	return &Service{specialists: specialists}
}

// Get returns one specialist.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Specialist, error) {
	sp, err := s.specialists.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("specialist")
		}
		return nil, apperr.DatabaseError("get specialist", err)
	}
	return sp, nil
}

// List returns specialists, optionally only active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]*domain.Specialist, error) {
	specialists, err := s.specialists.List(ctx, activeOnly)
	if err != nil {
		return nil, apperr.DatabaseError("list specialists", err)
	}
	return specialists, nil
}

// Create registers a specialist. A calendar may only be mapped to one
// specialist at a time.
func (s *Service) Create(ctx context.Context, req *in.SaveSpecialistRequest) (*domain.Specialist, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.InvalidInput("name", "must not be empty")
	}

	if err := s.checkCalendarTaken(ctx, req.GoogleCalendarID, uuid.Nil); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	sp := &domain.Specialist{
		ID:               uuid.New(),
		Name:             strings.TrimSpace(req.Name),
		GoogleCalendarID: strings.TrimSpace(req.GoogleCalendarID),
		Treatments:       req.Treatments,
		Active:           active,
	}

	if err := s.specialists.Create(ctx, sp); err != nil {
		return nil, apperr.DatabaseError("create specialist", err)
	}
	return sp, nil
}

// Update edits a specialist.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *in.SaveSpecialistRequest) (*domain.Specialist, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.InvalidInput("name", "must not be empty")
	}

	sp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkCalendarTaken(ctx, req.GoogleCalendarID, id); err != nil {
		return nil, err
	}

	sp.Name = strings.TrimSpace(req.Name)
	sp.GoogleCalendarID = strings.TrimSpace(req.GoogleCalendarID)
	sp.Treatments = req.Treatments
	if req.Active != nil {
		sp.Active = *req.Active
	}

	if err := s.specialists.Update(ctx, sp); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("specialist")
		}
		return nil, apperr.DatabaseError("update specialist", err)
	}
	return sp, nil
}

// Delete removes a specialist.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.specialists.Delete(ctx, id); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("specialist")
		}
		return apperr.DatabaseError("delete specialist", err)
	}
	return nil
}

func (s *Service) checkCalendarTaken(ctx context.Context, calendarID string, excludeID uuid.UUID) error {
	calendarID = strings.TrimSpace(calendarID)
	if calendarID == "" {
		return nil
	}

	owner, err := s.specialists.GetByCalendarID(ctx, calendarID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil
		}
		return apperr.DatabaseError("check calendar mapping", err)
	}
	if owner.ID != excludeID {
		return apperr.Conflict("calendar already mapped to " + owner.Name)
	}
	return nil
}
