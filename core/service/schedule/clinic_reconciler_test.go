package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clinic_server/core/domain"
	"clinic_server/core/port/in"
	"clinic_server/core/port/out"
	"clinic_server/pkg/apperr"
	"clinic_server/pkg/snowflake"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(1); err != nil {
		panic(err)
	}
	m.Run()
}

// =============================================================================
// In-memory fakes
// =============================================================================

type fakeAppointments struct {
	byID        map[string]*domain.Appointment
	upsertCalls int
	upserted    []*domain.Appointment
}

func newFakeAppointments(appts ...*domain.Appointment) *fakeAppointments {
	f := &fakeAppointments{byID: make(map[string]*domain.Appointment)}
	for _, a := range appts {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAppointments) GetByID(_ context.Context, id string) (*domain.Appointment, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, out.ErrNotFound
}

func (f *fakeAppointments) FetchInRange(_ context.Context, w domain.AppointmentWindow) ([]*domain.Appointment, error) {
	var res []*domain.Appointment
	for _, a := range f.byID {
		if a.OverlapsInterval(w.Start, w.End) {
			res = append(res, a)
		}
	}
	return res, nil
}

func (f *fakeAppointments) Upsert(_ context.Context, events []*domain.Appointment) error {
	f.upsertCalls++
	f.upserted = append(f.upserted, events...)
	for _, e := range events {
		f.byID[e.ID] = e
	}
	return nil
}

func (f *fakeAppointments) FindOverlapping(_ context.Context, calendarID string, start, end time.Time, excludeID string) ([]*domain.Appointment, error) {
	var res []*domain.Appointment
	for _, a := range f.byID {
		if a.ID == excludeID || a.IsCancelled() || a.CalendarID != calendarID {
			continue
		}
		if a.OverlapsInterval(start, end) {
			res = append(res, a)
		}
	}
	return res, nil
}

func (f *fakeAppointments) CreateChecked(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error) {
	overlapping, _ := f.FindOverlapping(ctx, appt.CalendarID, appt.Start, appt.End, appt.ID)
	if len(overlapping) > 0 {
		return overlapping[0], nil
	}
	f.byID[appt.ID] = appt
	return nil, nil
}

func (f *fakeAppointments) Update(_ context.Context, appt *domain.Appointment) error {
	if _, ok := f.byID[appt.ID]; !ok {
		return out.ErrNotFound
	}
	f.byID[appt.ID] = appt
	return nil
}

func (f *fakeAppointments) DeleteByID(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return out.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeSpecialists struct {
	list []*domain.Specialist
}

func (f *fakeSpecialists) GetByID(_ context.Context, id uuid.UUID) (*domain.Specialist, error) {
	for _, sp := range f.list {
		if sp.ID == id {
			return sp, nil
		}
	}
	return nil, out.ErrNotFound
}

func (f *fakeSpecialists) GetByCalendarID(_ context.Context, calendarID string) (*domain.Specialist, error) {
	for _, sp := range f.list {
		if sp.GoogleCalendarID == calendarID {
			return sp, nil
		}
	}
	return nil, out.ErrNotFound
}

func (f *fakeSpecialists) List(_ context.Context, activeOnly bool) ([]*domain.Specialist, error) {
	var res []*domain.Specialist
	for _, sp := range f.list {
		if activeOnly && !sp.Active {
			continue
		}
		res = append(res, sp)
	}
	return res, nil
}

func (f *fakeSpecialists) Create(_ context.Context, _ *domain.Specialist) error { return nil }
func (f *fakeSpecialists) Update(_ context.Context, _ *domain.Specialist) error { return nil }
func (f *fakeSpecialists) Delete(_ context.Context, _ uuid.UUID) error          { return nil }

type fakeProvider struct {
	events    map[string][]*out.ProviderEvent
	listErr   map[string]error
	createErr error

	listCalls   int
	createCalls int
	deleteCalls int
}

func (f *fakeProvider) ListEvents(_ context.Context, _ *oauth2.Token, calendarID string, _, _ time.Time) ([]*out.ProviderEvent, error) {
	f.listCalls++
	if err := f.listErr[calendarID]; err != nil {
		return nil, err
	}
	return f.events[calendarID], nil
}

func (f *fakeProvider) CreateEvent(_ context.Context, _ *oauth2.Token, calendarID string, event *out.ProviderEvent) (*out.ProviderEvent, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	created := *event
	created.ID = "evt-created"
	created.CalendarID = calendarID
	return &created, nil
}

func (f *fakeProvider) UpdateEvent(_ context.Context, _ *oauth2.Token, _ string, eventID string, event *out.ProviderEvent) (*out.ProviderEvent, error) {
	updated := *event
	updated.ID = eventID
	return &updated, nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, _ *oauth2.Token, _, _ string) error {
	f.deleteCalls++
	return nil
}

type fakeTokens struct {
	token *oauth2.Token
	err   error
}

func (f *fakeTokens) ResolveToken(_ context.Context, _ uuid.UUID, _ string) (*oauth2.Token, error) {
	return f.token, f.err
}

type fakeQueue struct {
	tasks []*out.Task
}

func (f *fakeQueue) Enqueue(task *out.Task) bool {
	f.tasks = append(f.tasks, task)
	return true
}

// =============================================================================
// Fixtures
// =============================================================================

func day(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func session() *in.Session {
	return &in.Session{UserID: uuid.New()}
}

func validToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}
}

func authExpiredErr() error {
	return &out.ProviderError{Code: out.ProviderErrAuthExpired, Message: "credential expired"}
}

func transportErr() error {
	return &out.ProviderError{Code: out.ProviderErrTransport, Message: "timeout"}
}

func newTestService(appts *fakeAppointments, sps *fakeSpecialists, prov *fakeProvider, tokens *fakeTokens, queue *fakeQueue) *Service {
	if sps == nil {
		sps = &fakeSpecialists{}
	}
	return NewService(appts, sps, nil, prov, tokens, nil, queue)
}

// =============================================================================
// Read path
// =============================================================================

func TestFetchEventsLocalOnly(t *testing.T) {
	local := &domain.Appointment{
		ID: "local-1", Title: "Consulta", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0), Status: domain.AppointmentConfirmed,
	}
	appts := newFakeAppointments(local)
	prov := &fakeProvider{}
	svc := newTestService(appts, nil, prov, &fakeTokens{token: nil}, nil)

	agenda, err := svc.FetchEvents(context.Background(), session(), day(0, 0), day(23, 59))
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if len(agenda.Events) != 1 || agenda.Events[0].ID != "local-1" {
		t.Errorf("expected the local appointment only, got %d events", len(agenda.Events))
	}
	if agenda.Notice != "" {
		t.Errorf("no notice expected in local-only mode, got %q", agenda.Notice)
	}
	if prov.listCalls != 0 {
		t.Errorf("provider must not be called without a token, got %d calls", prov.listCalls)
	}
}

func TestFetchEventsReauthNotice(t *testing.T) {
	local := &domain.Appointment{
		ID: "local-1", Title: "Consulta", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0),
	}
	appts := newFakeAppointments(local)
	svc := newTestService(appts, nil, &fakeProvider{}, &fakeTokens{err: apperr.ReauthRequired()}, nil)

	agenda, err := svc.FetchEvents(context.Background(), session(), day(0, 0), day(23, 59))
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if agenda.Notice != NoticeReauthRequired {
		t.Errorf("Notice = %q, want %q", agenda.Notice, NoticeReauthRequired)
	}
	if len(agenda.Events) != 1 {
		t.Errorf("local data must still be served, got %d events", len(agenda.Events))
	}
}

func TestFetchEventsAuthExpiredDuringList(t *testing.T) {
	appts := newFakeAppointments()
	prov := &fakeProvider{listErr: map[string]error{"primary": authExpiredErr()}}
	svc := newTestService(appts, nil, prov, &fakeTokens{token: validToken()}, nil)

	agenda, err := svc.FetchEvents(context.Background(), session(), day(0, 0), day(23, 59))
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if agenda.Notice != NoticeReauthRequired {
		t.Errorf("Notice = %q, want %q", agenda.Notice, NoticeReauthRequired)
	}
}

func TestFetchEventsMergesAndDeduplicates(t *testing.T) {
	synced := &domain.Appointment{
		ID: "evt-1", GoogleEventID: "evt-1", Title: "stale title", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0),
	}
	localOnly := &domain.Appointment{
		ID: "local-7", Title: "Offline booking", CalendarID: "primary",
		Start: day(14, 0), End: day(15, 0),
	}
	appts := newFakeAppointments(synced, localOnly)

	prov := &fakeProvider{events: map[string][]*out.ProviderEvent{
		"primary": {
			{
				ID: "evt-1", CalendarID: "primary", Title: "Consulta Maria",
				Description: "Paciente: Maria\nTelefone: 11 9\nObs: -",
				Start:       day(9, 0), End: day(10, 0), Status: "confirmed",
			},
			{
				ID: "evt-2", CalendarID: "primary", Title: "Retorno João",
				Start: day(11, 0), End: day(11, 30), Status: "tentative",
			},
		},
	}}
	svc := newTestService(appts, nil, prov, &fakeTokens{token: validToken()}, nil)

	agenda, err := svc.FetchEvents(context.Background(), session(), day(0, 0), day(23, 59))
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}

	if len(agenda.Events) != 3 {
		t.Fatalf("expected 3 merged events, got %d", len(agenda.Events))
	}

	// Sorted by start: evt-1 (9h), evt-2 (11h), local-7 (14h).
	if agenda.Events[0].ID != "evt-1" || agenda.Events[1].ID != "evt-2" || agenda.Events[2].ID != "local-7" {
		t.Errorf("unexpected order: %s, %s, %s", agenda.Events[0].ID, agenda.Events[1].ID, agenda.Events[2].ID)
	}

	// Remote wins for the synced appointment.
	if agenda.Events[0].Title != "Consulta Maria" {
		t.Errorf("remote data must win, got title %q", agenda.Events[0].Title)
	}
	if agenda.Events[0].PatientName != "Maria" {
		t.Errorf("patient block not decoded, got %q", agenda.Events[0].PatientName)
	}
	if agenda.Events[1].Status != domain.AppointmentPending {
		t.Errorf("tentative must normalize to pending, got %v", agenda.Events[1].Status)
	}

	// Write-through persisted the remote events.
	if appts.upsertCalls != 1 {
		t.Errorf("expected one write-through upsert, got %d", appts.upsertCalls)
	}
	if len(appts.upserted) != 2 {
		t.Errorf("expected 2 upserted events, got %d", len(appts.upserted))
	}
}

func TestFetchEventsTransportFailureServesLocal(t *testing.T) {
	local := &domain.Appointment{
		ID: "local-1", Title: "Consulta", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0),
	}
	appts := newFakeAppointments(local)
	prov := &fakeProvider{listErr: map[string]error{"primary": transportErr()}}
	svc := newTestService(appts, nil, prov, &fakeTokens{token: validToken()}, nil)

	agenda, err := svc.FetchEvents(context.Background(), session(), day(0, 0), day(23, 59))
	if err != nil {
		t.Fatalf("transport failure must not fail the fetch, got %v", err)
	}
	if len(agenda.Events) != 1 {
		t.Errorf("expected local data, got %d events", len(agenda.Events))
	}
	if agenda.Notice != "" {
		t.Errorf("transport failure must not set the reauth notice, got %q", agenda.Notice)
	}
}

func TestFetchEventsPerSpecialistCalendars(t *testing.T) {
	spID := uuid.New()
	sps := &fakeSpecialists{list: []*domain.Specialist{
		{ID: spID, Name: "Dra. Paula", GoogleCalendarID: "cal-paula", Active: true},
		{ID: uuid.New(), Name: "Dr. Inactive", GoogleCalendarID: "cal-old", Active: false},
	}}
	prov := &fakeProvider{events: map[string][]*out.ProviderEvent{
		"cal-paula": {
			{ID: "evt-p1", CalendarID: "cal-paula", Title: "Consulta", Start: day(9, 0), End: day(10, 0)},
		},
	}}
	appts := newFakeAppointments()
	svc := newTestService(appts, sps, prov, &fakeTokens{token: validToken()}, nil)

	agenda, err := svc.FetchEvents(context.Background(), session(), day(0, 0), day(23, 59))
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if prov.listCalls != 1 {
		t.Errorf("only active specialist calendars must be listed, got %d calls", prov.listCalls)
	}
	if len(agenda.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(agenda.Events))
	}
	if agenda.Events[0].SpecialistID == nil || *agenda.Events[0].SpecialistID != spID.String() {
		t.Error("remote event must be attributed to the calendar's specialist")
	}
}

func TestFetchEventsInvalidWindow(t *testing.T) {
	svc := newTestService(newFakeAppointments(), nil, &fakeProvider{}, &fakeTokens{}, nil)

	_, err := svc.FetchEvents(context.Background(), session(), day(10, 0), day(9, 0))
	if !apperr.IsCode(err, apperr.CodeValidationFailed) {
		t.Errorf("expected VALIDATION_FAILED, got %v", err)
	}
}

// =============================================================================
// Write path
// =============================================================================

func TestCreateAppointmentSyncsRemote(t *testing.T) {
	appts := newFakeAppointments()
	prov := &fakeProvider{}
	svc := newTestService(appts, nil, prov, &fakeTokens{token: validToken()}, nil)

	appt, err := svc.CreateAppointment(context.Background(), session(), &in.CreateAppointmentRequest{
		Title: "Consulta Maria", Start: day(9, 0), End: day(10, 0),
		PatientName: "Maria", PatientPhone: "11 9",
	})
	if err != nil {
		t.Fatalf("CreateAppointment() error = %v", err)
	}
	if appt.ID != "evt-created" || appt.GoogleEventID != "evt-created" {
		t.Errorf("appointment must carry the remote event ID, got %q/%q", appt.ID, appt.GoogleEventID)
	}
	if prov.createCalls != 1 {
		t.Errorf("expected one remote create, got %d", prov.createCalls)
	}
	if _, ok := appts.byID["evt-created"]; !ok {
		t.Error("appointment not persisted locally")
	}
}

func TestCreateAppointmentLocalOnly(t *testing.T) {
	appts := newFakeAppointments()
	prov := &fakeProvider{}
	svc := newTestService(appts, nil, prov, &fakeTokens{token: nil}, nil)

	appt, err := svc.CreateAppointment(context.Background(), session(), &in.CreateAppointmentRequest{
		Title: "Consulta", Start: day(9, 0), End: day(10, 0),
	})
	if err != nil {
		t.Fatalf("CreateAppointment() error = %v", err)
	}
	if !strings.HasPrefix(appt.ID, "local-") {
		t.Errorf("local booking must get a local ID, got %q", appt.ID)
	}
	if appt.GoogleEventID != "" {
		t.Errorf("local booking must not carry a remote event ID, got %q", appt.GoogleEventID)
	}
	if prov.createCalls != 0 {
		t.Errorf("provider must not be called without a token, got %d calls", prov.createCalls)
	}
}

func TestCreateAppointmentRejectsLocalConflict(t *testing.T) {
	occupied := &domain.Appointment{
		ID: "evt-1", Title: "Consulta Maria", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0), Status: domain.AppointmentConfirmed,
	}
	appts := newFakeAppointments(occupied)
	prov := &fakeProvider{}
	svc := newTestService(appts, nil, prov, &fakeTokens{token: validToken()}, nil)

	_, err := svc.CreateAppointment(context.Background(), session(), &in.CreateAppointmentRequest{
		Title: "Retorno João", Start: day(9, 30), End: day(10, 30),
	})
	if !apperr.IsCode(err, apperr.CodeScheduleConflict) {
		t.Fatalf("expected SCHEDULE_CONFLICT, got %v", err)
	}
	if !strings.Contains(err.Error(), "Consulta Maria") {
		t.Errorf("conflict error must name the occupant, got %q", err.Error())
	}
	if prov.createCalls != 0 {
		t.Errorf("conflicting booking must not reach the remote calendar, got %d creates", prov.createCalls)
	}
}

// An expired calendar credential must not block booking: the appointment goes
// in locally and the remote leg is skipped.
func TestCreateAppointmentReauthRequiredBooksLocally(t *testing.T) {
	appts := newFakeAppointments()
	prov := &fakeProvider{}
	svc := newTestService(appts, nil, prov, &fakeTokens{err: apperr.ReauthRequired()}, nil)

	appt, err := svc.CreateAppointment(context.Background(), session(), &in.CreateAppointmentRequest{
		Title: "Consulta", Start: day(9, 0), End: day(10, 0),
	})
	if err != nil {
		t.Fatalf("CreateAppointment() error = %v", err)
	}
	if !strings.HasPrefix(appt.ID, "local-") {
		t.Errorf("expected a local ID, got %q", appt.ID)
	}
	if prov.createCalls != 0 || prov.listCalls != 0 {
		t.Errorf("remote calendar must not be called, got %d creates %d lists", prov.createCalls, prov.listCalls)
	}
}

func TestCreateAppointmentAllowsBackToBack(t *testing.T) {
	occupied := &domain.Appointment{
		ID: "evt-1", Title: "Consulta", CalendarID: "primary",
		Start: day(9, 0), End: day(9, 30), Status: domain.AppointmentConfirmed,
	}
	appts := newFakeAppointments(occupied)
	svc := newTestService(appts, nil, &fakeProvider{}, &fakeTokens{token: nil}, nil)

	_, err := svc.CreateAppointment(context.Background(), session(), &in.CreateAppointmentRequest{
		Title: "Retorno", Start: day(9, 30), End: day(10, 0),
	})
	if err != nil {
		t.Fatalf("back-to-back booking must succeed, got %v", err)
	}
}

func TestCreateAppointmentIgnoresCancelledSlot(t *testing.T) {
	cancelled := &domain.Appointment{
		ID: "evt-1", Title: "Cancelada", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0), Status: domain.AppointmentCancelled,
	}
	appts := newFakeAppointments(cancelled)
	svc := newTestService(appts, nil, &fakeProvider{}, &fakeTokens{token: nil}, nil)

	_, err := svc.CreateAppointment(context.Background(), session(), &in.CreateAppointmentRequest{
		Title: "Nova consulta", Start: day(9, 0), End: day(10, 0),
	})
	if err != nil {
		t.Fatalf("cancelled slot must be bookable, got %v", err)
	}
}

func TestCreateAppointmentChecksRemoteEvents(t *testing.T) {
	appts := newFakeAppointments()
	// Remote event not yet synced down.
	prov := &fakeProvider{events: map[string][]*out.ProviderEvent{
		"primary": {
			{ID: "evt-r", CalendarID: "primary", Title: "Reunião", Start: day(9, 0), End: day(10, 0), Status: "confirmed"},
		},
	}}
	svc := newTestService(appts, nil, prov, &fakeTokens{token: validToken()}, nil)

	_, err := svc.CreateAppointment(context.Background(), session(), &in.CreateAppointmentRequest{
		Title: "Consulta", Start: day(9, 30), End: day(10, 30),
	})
	if !apperr.IsCode(err, apperr.CodeScheduleConflict) {
		t.Fatalf("expected SCHEDULE_CONFLICT against unsynced remote event, got %v", err)
	}
	if !strings.Contains(err.Error(), "Reunião") {
		t.Errorf("conflict error must name the occupant, got %q", err.Error())
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	svc := newTestService(newFakeAppointments(), nil, &fakeProvider{}, &fakeTokens{}, nil)

	tests := []struct {
		name string
		req  *in.CreateAppointmentRequest
	}{
		{"empty title", &in.CreateAppointmentRequest{Start: day(9, 0), End: day(10, 0)}},
		{"zero times", &in.CreateAppointmentRequest{Title: "x"}},
		{"end before start", &in.CreateAppointmentRequest{Title: "x", Start: day(10, 0), End: day(9, 0)}},
		{"zero-length interval", &in.CreateAppointmentRequest{Title: "x", Start: day(9, 0), End: day(9, 0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAppointment(context.Background(), session(), tt.req)
			if !apperr.IsCode(err, apperr.CodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestUpdateAppointmentExcludesSelf(t *testing.T) {
	existing := &domain.Appointment{
		ID: "evt-1", Title: "Consulta", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0), Status: domain.AppointmentConfirmed,
	}
	appts := newFakeAppointments(existing)
	svc := newTestService(appts, nil, &fakeProvider{}, &fakeTokens{token: nil}, nil)

	// Shrink the slot within its own interval; the overlap check must not
	// trip on the appointment itself.
	newEnd := day(9, 30)
	got, err := svc.UpdateAppointment(context.Background(), session(), "evt-1", &in.UpdateAppointmentRequest{
		End: &newEnd,
	})
	if err != nil {
		t.Fatalf("UpdateAppointment() error = %v", err)
	}
	if !got.End.Equal(newEnd) {
		t.Errorf("End = %v, want %v", got.End, newEnd)
	}
}

func TestUpdateAppointmentNotFound(t *testing.T) {
	svc := newTestService(newFakeAppointments(), nil, &fakeProvider{}, &fakeTokens{}, nil)

	title := "x"
	_, err := svc.UpdateAppointment(context.Background(), session(), "missing", &in.UpdateAppointmentRequest{Title: &title})
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestDeleteAppointmentQueuesRemoteCleanup(t *testing.T) {
	synced := &domain.Appointment{
		ID: "evt-1", GoogleEventID: "evt-1", Title: "Consulta", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0),
	}
	appts := newFakeAppointments(synced)
	queue := &fakeQueue{}
	svc := newTestService(appts, nil, &fakeProvider{}, &fakeTokens{token: validToken()}, queue)

	if err := svc.DeleteAppointment(context.Background(), session(), "evt-1"); err != nil {
		t.Fatalf("DeleteAppointment() error = %v", err)
	}
	if _, ok := appts.byID["evt-1"]; ok {
		t.Error("appointment not removed from the local store")
	}
	if len(queue.tasks) != 1 {
		t.Fatalf("expected one queued task, got %d", len(queue.tasks))
	}
	task := queue.tasks[0]
	if task.Type != out.TaskRemoteEventDelete || task.EventID != "evt-1" || task.CalendarID != "primary" {
		t.Errorf("unexpected task: %+v", task)
	}
}

func TestDeleteLocalOnlyAppointmentSkipsQueue(t *testing.T) {
	localOnly := &domain.Appointment{
		ID: "local-3", Title: "Consulta", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0),
	}
	appts := newFakeAppointments(localOnly)
	queue := &fakeQueue{}
	svc := newTestService(appts, nil, &fakeProvider{}, &fakeTokens{}, queue)

	if err := svc.DeleteAppointment(context.Background(), session(), "local-3"); err != nil {
		t.Fatalf("DeleteAppointment() error = %v", err)
	}
	if len(queue.tasks) != 0 {
		t.Errorf("no remote cleanup expected for local-only rows, got %d tasks", len(queue.tasks))
	}
}

func TestCreateAppointmentRaceQueuesOrphanCleanup(t *testing.T) {
	appts := newFakeAppointments()
	appts.byID["racer"] = &domain.Appointment{
		ID: "racer", Title: "Concorrente", CalendarID: "primary",
		Start: day(9, 0), End: day(10, 0), Status: domain.AppointmentConfirmed,
	}

	// The local pre-check misses the racer (simulating a row committed between
	// check and insert) but CreateChecked sees it.
	raced := &racingAppointments{fakeAppointments: appts}
	queue := &fakeQueue{}
	prov := &fakeProvider{}
	svc := newTestService(nil, nil, prov, &fakeTokens{token: validToken()}, queue)
	svc.appointments = raced

	_, err := svc.CreateAppointment(context.Background(), session(), &in.CreateAppointmentRequest{
		Title: "Consulta", Start: day(9, 0), End: day(10, 0),
	})
	if !apperr.IsCode(err, apperr.CodeScheduleConflict) {
		t.Fatalf("expected SCHEDULE_CONFLICT, got %v", err)
	}
	if len(queue.tasks) != 1 || queue.tasks[0].EventID != "evt-created" {
		t.Errorf("orphan remote event must be queued for deletion, got %+v", queue.tasks)
	}
}

// racingAppointments hides existing rows from FindOverlapping so the
// transactional CreateChecked is the first to see the collision.
type racingAppointments struct {
	*fakeAppointments
}

func (r *racingAppointments) FindOverlapping(context.Context, string, time.Time, time.Time, string) ([]*domain.Appointment, error) {
	return nil, nil
}

func TestGetAppointmentNotFound(t *testing.T) {
	svc := newTestService(newFakeAppointments(), nil, &fakeProvider{}, &fakeTokens{}, nil)

	_, err := svc.GetAppointment(context.Background(), "missing")
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}
