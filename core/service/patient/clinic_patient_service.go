// Package patient manages the patient roster, including duplicate detection
// on name and phone.
package patient

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

// Service implements in.PatientService.
type Service struct {
	patients out.PatientRepository
}

// NewService creates a new patient service.
func NewService(patients out.PatientRepository) *Service {
	return &Service{patients: patients}
}

// Get returns one patient.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("patient")
		}
		return nil, apperr.DatabaseError("get patient", err)
	}
	return p, nil
}

// List returns patients matching the search term with a total count.
func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*domain.Patient, int, error) {
	if limit <= 0 {
		limit = 20
	}
	patients, total, err := s.patients.List(ctx, search, limit, offset)
	if err != nil {
		return nil, 0, apperr.DatabaseError("list patients", err)
	}
	return patients, total, nil
}

// Create registers a patient, rejecting records that collide with an existing
// one on name or phone.
func (s *Service) Create(ctx context.Context, req *in.SavePatientRequest) (*domain.Patient, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	if err := s.checkCollision(ctx, req, uuid.Nil); err != nil {
		return nil, err
	}

	p := &domain.Patient{
		ID:    uuid.New(),
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
		Notes: req.Notes,
	}

	if err := s.patients.Create(ctx, p); err != nil {
		return nil, apperr.DatabaseError("create patient", err)
	}
	return p, nil
}

// Update edits a patient, with the collision check excluding the record
// itself.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *in.SavePatientRequest) (*domain.Patient, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkCollision(ctx, req, id); err != nil {
		return nil, err
	}

	p.Name = strings.TrimSpace(req.Name)
	p.Phone = strings.TrimSpace(req.Phone)
	p.Email = strings.TrimSpace(req.Email)
	p.Notes = req.Notes

	if err := s.patients.Update(ctx, p); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("patient")
		}
		return nil, apperr.DatabaseError("update patient", err)
	}
	return p, nil
}

// Delete removes a patient record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("patient")
		}
		return apperr.DatabaseError("delete patient", err)
	}
	return nil
}

func (s *Service) checkCollision(ctx context.Context, req *in.SavePatientRequest, excludeID uuid.UUID) error {
	collision, err := s.patients.FindCollision(ctx, req.Name, req.Phone, excludeID)
	if err != nil {
		return apperr.DatabaseError("check patient duplicates", err)
	}
	if collision.Any() {
		return apperr.DuplicatePatient(collision.Message())
	}
	return nil
}

func validate(req *in.SavePatientRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return apperr.InvalidInput("name", "must not be empty")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return apperr.InvalidInput("phone", "must not be empty")
	}
	return nil
}
