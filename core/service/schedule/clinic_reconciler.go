package schedule

import (
	"context"
	"errors"
	"sort"
	"time"

	"clinic_server/core/domain"
	"clinic_server/core/port/in"
	"clinic_server/core/port/out"
	"clinic_server/pkg/apperr"
	"clinic_server/pkg/lock"
	"clinic_server/pkg/logger"
	"clinic_server/pkg/snowflake"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Audit event types recorded by the engine.
const (
	auditAppointmentCreated = "appointment_created"
	auditAppointmentUpdated = "appointment_updated"
	auditAppointmentDeleted = "appointment_deleted"
	auditConflictRejected   = "conflict_rejected"
	auditRemoteUnavailable  = "remote_unavailable"
)

// NoticeReauthRequired is surfaced once per agenda fetch when the Google
// connection has to be re-established.
const NoticeReauthRequired = "Google Calendar access expired, please reconnect your account"

// Service is the reconciliation engine. The local store is authoritative for
// bookings made here; the remote calendar is authoritative for events created
// elsewhere. Reads merge both; writes go local-first under a per-calendar
// lock, then push out.
type Service struct {
	appointments out.AppointmentRepository
	specialists  out.SpecialistRepository
	audit        out.AuditRepository
	provider     out.CalendarProviderPort
	tokens       out.TokenProvider
	locker       lock.Locker
	queue        out.TaskQueue
}

// NewService creates the reconciliation engine. audit may be nil; queue may
// be nil when no background worker runs (remote deletes then happen inline,
// best-effort).
func NewService(
	appointments out.AppointmentRepository,
	specialists out.SpecialistRepository,
	audit out.AuditRepository,
	provider out.CalendarProviderPort,
	tokens out.TokenProvider,
	locker lock.Locker,
	queue out.TaskQueue,
) *Service {
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &Service{
		appointments: appointments,
		specialists:  specialists,
		audit:        audit,
		provider:     provider,
		tokens:       tokens,
		locker:       locker,
		queue:        queue,
	}
}

// =============================================================================
// Read path
// =============================================================================

// FetchEvents returns the agenda for [start, end). The local store is read
// first so the agenda stays usable when Google is unreachable; remote events
// are then merged in and written through.
func (s *Service) FetchEvents(ctx context.Context, sess *in.Session, start, end time.Time) (*in.Agenda, error) {
	if !start.Before(end) {
		return nil, apperr.ValidationFailed("window start must be before end")
	}

	local, err := s.appointments.FetchInRange(ctx, domain.AppointmentWindow{Start: start, End: end})
	if err != nil {
		return nil, apperr.DatabaseError("fetch appointments", err)
	}

	token, err := s.tokens.ResolveToken(ctx, sess.UserID, sess.ProviderToken)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeReauthRequired) {
			return &in.Agenda{Events: sortByStart(local), Notice: NoticeReauthRequired}, nil
		}
		return nil, err
	}
	if token == nil {
		// Local-only mode: no calendar connection, nothing remote to merge.
		return &in.Agenda{Events: sortByStart(local)}, nil
	}

	remote, notice := s.fetchRemote(ctx, sess, token, start, end)

	merged := mergeAgenda(local, remote)

	if len(remote) > 0 {
		// Write-through: remote events become local rows so the next
		// offline fetch still sees them.
		if err := s.appointments.Upsert(ctx, remote); err != nil {
			logger.WithContext(ctx).WithError(err).Error("write-through upsert failed")
		}
	}

	return &in.Agenda{Events: merged, Notice: notice}, nil
}

// fetchRemote lists events from every connected calendar. Credential expiry
// produces a single notice; transport failures degrade to local data.
func (s *Service) fetchRemote(ctx context.Context, sess *in.Session, token *oauth2.Token, start, end time.Time) ([]*domain.Appointment, string) {
	var remote []*domain.Appointment
	var notice string

	for _, calendarID := range s.calendarIDs(ctx) {
		events, err := s.provider.ListEvents(ctx, token, calendarID, start, end)
		if err != nil {
			if out.IsAuthExpired(err) {
				notice = NoticeReauthRequired
				// Every other calendar would fail the same way.
				break
			}
			logger.WithContext(ctx).WithError(err).Warn("calendar %s unreachable, serving local data", calendarID)
			s.record(ctx, &out.AuditEvent{
				Type:       auditRemoteUnavailable,
				UserID:     sess.UserID.String(),
				CalendarID: calendarID,
				Detail:     map[string]any{"error": err.Error()},
			})
			continue
		}

		specialistID := s.specialistFor(ctx, calendarID)
		for _, ev := range events {
			remote = append(remote, s.fromProviderEvent(ev, specialistID))
		}
	}

	return remote, notice
}

// calendarIDs returns the calendars to reconcile: each active specialist's
// calendar, falling back to the primary calendar when none are configured.
func (s *Service) calendarIDs(ctx context.Context) []string {
	specialists, err := s.specialists.List(ctx, true)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("failed to list specialists")
		return []string{"primary"}
	}

	var ids []string
	for _, sp := range specialists {
		if sp.HasCalendar() {
			ids = append(ids, sp.GoogleCalendarID)
		}
	}
	if len(ids) == 0 {
		ids = []string{"primary"}
	}
	return ids
}

// specialistFor returns the ID of the specialist owning the calendar, nil
// for the primary calendar or an unmapped one.
func (s *Service) specialistFor(ctx context.Context, calendarID string) *string {
	sp, err := s.specialists.GetByCalendarID(ctx, calendarID)
	if err != nil {
		return nil
	}
	id := sp.ID.String()
	return &id
}

// fromProviderEvent converts a remote event, decoding the patient block out
// of the description.
func (s *Service) fromProviderEvent(ev *out.ProviderEvent, specialistID *string) *domain.Appointment {
	block := DecodeDescription(ev.Description)

	return &domain.Appointment{
		ID:            ev.ID,
		Title:         ev.Title,
		Start:         ev.Start,
		End:           ev.End,
		SpecialistID:  specialistID,
		CalendarID:    ev.CalendarID,
		PatientName:   block.Name,
		PatientPhone:  block.Phone,
		Description:   block.Notes,
		Status:        domain.NormalizeStatus(ev.Status),
		GoogleEventID: ev.ID,
	}
}

// mergeAgenda unions local and remote events. Remote data wins for synced
// appointments; local-only rows (no remote counterpart) are kept.
func mergeAgenda(local, remote []*domain.Appointment) []*domain.Appointment {
	seen := make(map[string]struct{}, len(remote))
	merged := make([]*domain.Appointment, 0, len(local)+len(remote))

	for _, appt := range remote {
		merged = append(merged, appt)
		seen[appt.ID] = struct{}{}
	}

	for _, appt := range local {
		if _, ok := seen[appt.ID]; ok {
			continue
		}
		if appt.GoogleEventID != "" {
			if _, ok := seen[appt.GoogleEventID]; ok {
				continue
			}
		}
		merged = append(merged, appt)
	}

	return sortByStart(merged)
}

func sortByStart(events []*domain.Appointment) []*domain.Appointment {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// =============================================================================
// Write path
// =============================================================================

// GetAppointment returns one appointment from the local store.
func (s *Service) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("appointment")
		}
		return nil, apperr.DatabaseError("get appointment", err)
	}
	return appt, nil
}

// CreateAppointment books a slot. The conflict check runs against the local
// store inside the calendar lock; the remote check is best-effort on top.
func (s *Service) CreateAppointment(ctx context.Context, sess *in.Session, req *in.CreateAppointmentRequest) (*domain.Appointment, error) {
	if err := validateInterval(req.Title, req.Start, req.End); err != nil {
		return nil, err
	}

	calendarID, specialistID, err := s.resolveCalendar(ctx, req.SpecialistID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.ResolveToken(ctx, sess.UserID, sess.ProviderToken)
	if err != nil {
		if !apperr.IsCode(err, apperr.CodeReauthRequired) {
			return nil, err
		}
		logger.WithContext(ctx).Warn("calendar credential expired, skipping remote calendar for create")
		token = nil
	}

	appt := &domain.Appointment{
		Title:        req.Title,
		Start:        req.Start.UTC(),
		End:          req.End.UTC(),
		SpecialistID: specialistID,
		CalendarID:   calendarID,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		Description:  req.Notes,
		Status:       domain.NormalizeStatus(req.Status),
	}

	err = s.locker.WithCalendarLock(ctx, calendarID, func(ctx context.Context) error {
		if err := s.checkSlot(ctx, sess, token, calendarID, appt.Start, appt.End, ""); err != nil {
			return err
		}

		if token != nil {
			created, err := s.provider.CreateEvent(ctx, token, calendarID, s.toProviderEvent(appt))
			if err != nil {
				if out.IsAuthExpired(err) {
					// Book locally; the event syncs out after reconnect.
					logger.WithContext(ctx).Warn("calendar credential expired, creating appointment locally")
				} else {
					return apperr.ExternalError("google calendar", err)
				}
			} else {
				appt.ID = created.ID
				appt.GoogleEventID = created.ID
			}
		}
		if appt.ID == "" {
			appt.ID = snowflake.LocalID()
		}

		colliding, err := s.appointments.CreateChecked(ctx, appt)
		if err != nil {
			return apperr.DatabaseError("create appointment", err)
		}
		if colliding != nil {
			// Lost the race after the remote event went out; queue the
			// cleanup and reject.
			if appt.GoogleEventID != "" {
				s.enqueueRemoteDelete(sess, calendarID, appt.GoogleEventID)
			}
			return s.conflictError(ctx, sess, colliding)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperr.Conflict("calendar is busy, try again")
		}
		return nil, err
	}

	s.record(ctx, &out.AuditEvent{
		Type:          auditAppointmentCreated,
		UserID:        sess.UserID.String(),
		AppointmentID: appt.ID,
		CalendarID:    calendarID,
		Detail:        map[string]any{"title": appt.Title, "start": appt.Start, "end": appt.End},
	})

	return appt, nil
}

// UpdateAppointment reschedules or edits an appointment. The overlap check
// excludes the appointment itself so moving it within its own slot works.
func (s *Service) UpdateAppointment(ctx context.Context, sess *in.Session, id string, req *in.UpdateAppointmentRequest) (*domain.Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	applyUpdate(appt, req)
	if err := validateInterval(appt.Title, appt.Start, appt.End); err != nil {
		return nil, err
	}

	if req.SpecialistID != nil {
		calendarID, specialistID, err := s.resolveCalendar(ctx, req.SpecialistID)
		if err != nil {
			return nil, err
		}
		appt.CalendarID = calendarID
		appt.SpecialistID = specialistID
	}

	token, err := s.tokens.ResolveToken(ctx, sess.UserID, sess.ProviderToken)
	if err != nil {
		if !apperr.IsCode(err, apperr.CodeReauthRequired) {
			return nil, err
		}
		logger.WithContext(ctx).Warn("calendar credential expired, skipping remote calendar for update")
		token = nil
	}

	err = s.locker.WithCalendarLock(ctx, appt.CalendarID, func(ctx context.Context) error {
		if err := s.checkSlot(ctx, sess, token, appt.CalendarID, appt.Start, appt.End, appt.ID); err != nil {
			return err
		}

		if token != nil && appt.GoogleEventID != "" {
			_, err := s.provider.UpdateEvent(ctx, token, appt.CalendarID, appt.GoogleEventID, s.toProviderEvent(appt))
			if err != nil && !out.IsAuthExpired(err) && !isProviderNotFound(err) {
				return apperr.ExternalError("google calendar", err)
			}
		}

		if err := s.appointments.Update(ctx, appt); err != nil {
			if errors.Is(err, out.ErrNotFound) {
				return apperr.NotFound("appointment")
			}
			return apperr.DatabaseError("update appointment", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperr.Conflict("calendar is busy, try again")
		}
		return nil, err
	}

	s.record(ctx, &out.AuditEvent{
		Type:          auditAppointmentUpdated,
		UserID:        sess.UserID.String(),
		AppointmentID: appt.ID,
		CalendarID:    appt.CalendarID,
	})

	return appt, nil
}

// DeleteAppointment removes the booking locally and queues the remote delete,
// which retries in the background.
func (s *Service) DeleteAppointment(ctx context.Context, sess *in.Session, id string) error {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}

	if err := s.appointments.DeleteByID(ctx, appt.ID); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("appointment")
		}
		return apperr.DatabaseError("delete appointment", err)
	}

	if appt.GoogleEventID != "" {
		s.enqueueRemoteDelete(sess, appt.CalendarID, appt.GoogleEventID)
	}

	s.record(ctx, &out.AuditEvent{
		Type:          auditAppointmentDeleted,
		UserID:        sess.UserID.String(),
		AppointmentID: appt.ID,
		CalendarID:    appt.CalendarID,
	})

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// checkSlot enforces the no-overlap rule: local store first, then a
// best-effort look at the remote calendar for events not yet synced down.
func (s *Service) checkSlot(ctx context.Context, sess *in.Session, token *oauth2.Token, calendarID string, start, end time.Time, excludeID string) error {
	overlapping, err := s.appointments.FindOverlapping(ctx, calendarID, start, end, excludeID)
	if err != nil {
		return apperr.DatabaseError("check slot", err)
	}
	if len(overlapping) > 0 {
		return s.conflictError(ctx, sess, overlapping[0])
	}

	if token == nil {
		return nil
	}

	events, err := s.provider.ListEvents(ctx, token, calendarID, start, end)
	if err != nil {
		// Best-effort: a transient remote failure must not block booking.
		logger.WithContext(ctx).WithError(err).Warn("remote conflict check skipped")
		return nil
	}
	for _, ev := range events {
		if ev.ID == excludeID || domain.NormalizeStatus(ev.Status) == domain.AppointmentCancelled {
			continue
		}
		if domain.Overlaps(ev.Start, ev.End, start, end) {
			return s.conflictError(ctx, sess, s.fromProviderEvent(ev, nil))
		}
	}
	return nil
}

func (s *Service) conflictError(ctx context.Context, sess *in.Session, colliding *domain.Appointment) error {
	s.record(ctx, &out.AuditEvent{
		Type:          auditConflictRejected,
		UserID:        sess.UserID.String(),
		AppointmentID: colliding.ID,
		CalendarID:    colliding.CalendarID,
		Detail:        map[string]any{"occupied_by": colliding.Title},
	})
	return apperr.ScheduleConflict(colliding.Title)
}

// resolveCalendar maps an optional specialist to the calendar the booking
// lands on. nil means unassigned, which books on the primary calendar.
func (s *Service) resolveCalendar(ctx context.Context, specialistID *string) (string, *string, error) {
	if specialistID == nil || *specialistID == "" {
		return "primary", nil, nil
	}

	uid, err := uuid.Parse(*specialistID)
	if err != nil {
		return "", nil, apperr.InvalidInput("specialist_id", "must be a valid UUID")
	}

	sp, err := s.specialists.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return "", nil, apperr.NotFound("specialist")
		}
		return "", nil, apperr.DatabaseError("get specialist", err)
	}

	id := sp.ID.String()
	if !sp.HasCalendar() {
		return "primary", &id, nil
	}
	return sp.GoogleCalendarID, &id, nil
}

func (s *Service) toProviderEvent(appt *domain.Appointment) *out.ProviderEvent {
	return &out.ProviderEvent{
		ID:         appt.GoogleEventID,
		CalendarID: appt.CalendarID,
		Title:      appt.Title,
		Description: EncodeDescription(PatientBlock{
			Name:  appt.PatientName,
			Phone: appt.PatientPhone,
			Notes: appt.Description,
		}),
		Start:  appt.Start,
		End:    appt.End,
		Status: providerStatus(appt.Status),
	}
}

// providerStatus maps our status tags onto the remote vocabulary.
func providerStatus(status domain.AppointmentStatus) string {
	switch status {
	case domain.AppointmentPending:
		return "tentative"
	case domain.AppointmentCancelled:
		return "cancelled"
	default:
		return "confirmed"
	}
}

func (s *Service) enqueueRemoteDelete(sess *in.Session, calendarID, eventID string) {
	if s.queue == nil {
		return
	}
	accepted := s.queue.Enqueue(&out.Task{
		Type:       out.TaskRemoteEventDelete,
		UserID:     sess.UserID.String(),
		CalendarID: calendarID,
		EventID:    eventID,
	})
	if !accepted {
		logger.Warn("task queue rejected remote delete for event %s", eventID)
	}
}

// record writes an audit entry, best-effort.
func (s *Service) record(ctx context.Context, ev *out.AuditEvent) {
	if s.audit == nil {
		return
	}
	ev.At = time.Now().UTC()
	if err := s.audit.Record(ctx, ev); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("audit write failed")
	}
}

func isProviderNotFound(err error) bool {
	var pe *out.ProviderError
	return errors.As(err, &pe) && pe.Code == out.ProviderErrNotFound
}

func validateInterval(title string, start, end time.Time) error {
	if title == "" {
		return apperr.InvalidInput("title", "must not be empty")
	}
	if start.IsZero() || end.IsZero() {
		return apperr.InvalidInput("start/end", "must be set")
	}
	if !start.Before(end) {
		return apperr.InvalidInput("end", "must be after start")
	}
	return nil
}

func applyUpdate(appt *domain.Appointment, req *in.UpdateAppointmentRequest) {
	if req.Title != nil {
		appt.Title = *req.Title
	}
	if req.Start != nil {
		appt.Start = req.Start.UTC()
	}
	if req.End != nil {
		appt.End = req.End.UTC()
	}
	if req.PatientName != nil {
		appt.PatientName = *req.PatientName
	}
	if req.PatientPhone != nil {
		appt.PatientPhone = *req.PatientPhone
	}
	if req.Notes != nil {
		appt.Description = *req.Notes
	}
	if req.Status != nil {
		appt.Status = domain.NormalizeStatus(*req.Status)
	}
}
