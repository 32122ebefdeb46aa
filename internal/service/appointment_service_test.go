package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitbook/trainer-crm-api/internal/models"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubAppointmentRepo struct {
	byID          *models.Appointment
	findErr       error
	dayList       []models.Appointment
	createOK      bool
	createErr     error
	updateOK      bool
	updateErr     error
	updateCalls   int
	lastUpdated   *models.Appointment
	createdAppt   *models.Appointment
	updateIfCalls int
}

func (s *stubAppointmentRepo) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.byID == nil {
		return nil, sql.ErrNoRows
	}
	cp := *s.byID
	return &cp, nil
}

func (s *stubAppointmentRepo) ListForDay(ctx context.Context, trainerID string, day time.Time, includeCancelled bool) ([]models.Appointment, error) {
	return s.dayList, nil
}

func (s *stubAppointmentRepo) CreateScheduled(ctx context.Context, appt *models.Appointment) (bool, error) {
	s.createdAppt = appt
	return s.createOK, s.createErr
}

func (s *stubAppointmentRepo) UpdateIfAvailable(ctx context.Context, appt *models.Appointment) (bool, error) {
	s.updateIfCalls++
	s.lastUpdated = appt
	return s.updateOK, s.updateErr
}

func (s *stubAppointmentRepo) Update(ctx context.Context, appt *models.Appointment) error {
	s.updateCalls++
	s.lastUpdated = appt
	return s.updateErr
}

type stubClientReader struct {
	clients []models.Client
	err     error
}

func (s *stubClientReader) FindByID(ctx context.Context, id string) (*models.Client, error) {
	for i := range s.clients {
		if s.clients[i].ID == id {
			return &s.clients[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubClientReader) ListByIDs(ctx context.Context, ids []string) ([]models.Client, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Client
	for _, id := range ids {
		for i := range s.clients {
			if s.clients[i].ID == id {
				out = append(out, s.clients[i])
			}
		}
	}
	return out, nil
}

type stubSettingsProvider struct {
	settings *models.BusinessSettings
	err      error
}

func (s *stubSettingsProvider) Get(ctx context.Context, trainerID string) (*models.BusinessSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.settings != nil {
		return s.settings, nil
	}
	return models.DefaultBusinessSettings(trainerID), nil
}

type stubConflictCounter struct{ conflicts int }

func (s *stubConflictCounter) IncBookingConflict() { s.conflicts++ }

func newAppointmentService(repo *stubAppointmentRepo, clients *stubClientReader, settings *stubSettingsProvider, clock Clock, metrics *stubConflictCounter) *AppointmentService {
	return NewAppointmentService(repo, clients, settings, nil, clock, metrics, nil)
}

func TestAppointmentServiceCreateIndividual(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	repo := &stubAppointmentRepo{createOK: true}
	clients := &stubClientReader{clients: []models.Client{{ID: "c1", TrainerID: "t1"}}}
	svc := newAppointmentService(repo, clients, &stubSettingsProvider{}, fixedClock{now}, nil)

	appt, err := svc.Create(context.Background(), "t1", CreateAppointmentRequest{
		StartTime:       now.Add(2 * time.Hour),
		DurationMinutes: 60,
		Type:            "individual",
		ClientID:        "c1",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.createdAppt)
	assert.Equal(t, "t1", appt.TrainerID)
	require.NotNil(t, appt.ClientID)
	assert.Equal(t, "c1", *appt.ClientID)
}

func TestAppointmentServiceCreateSlotTaken(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	repo := &stubAppointmentRepo{createOK: false}
	clients := &stubClientReader{clients: []models.Client{{ID: "c1", TrainerID: "t1"}}}
	metrics := &stubConflictCounter{}
	svc := newAppointmentService(repo, clients, &stubSettingsProvider{}, fixedClock{now}, metrics)

	_, err := svc.Create(context.Background(), "t1", CreateAppointmentRequest{
		StartTime:       now.Add(2 * time.Hour),
		DurationMinutes: 60,
		Type:            "individual",
		ClientID:        "c1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "SLOT_TAKEN", appErr.Code)
	assert.Equal(t, "this time slot is already booked", appErr.Message)
	assert.Equal(t, 1, metrics.conflicts)
}

func TestAppointmentServiceCreateRejectsPastStart(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	svc := newAppointmentService(&stubAppointmentRepo{}, &stubClientReader{}, &stubSettingsProvider{}, fixedClock{now}, nil)

	_, err := svc.Create(context.Background(), "t1", CreateAppointmentRequest{
		StartTime:       now.Add(-time.Hour),
		DurationMinutes: 60,
		Type:            "individual",
		ClientID:        "c1",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestAppointmentServiceCreateGroupCapacity(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	settings := models.DefaultBusinessSettings("t1")
	settings.MaxGroupClients = 2
	clients := &stubClientReader{clients: []models.Client{
		{ID: "c1", TrainerID: "t1"},
		{ID: "c2", TrainerID: "t1"},
		{ID: "c3", TrainerID: "t1"},
	}}
	svc := newAppointmentService(&stubAppointmentRepo{createOK: true}, clients, &stubSettingsProvider{settings: settings}, fixedClock{now}, nil)

	_, err := svc.Create(context.Background(), "t1", CreateAppointmentRequest{
		StartTime:       now.Add(2 * time.Hour),
		DurationMinutes: 60,
		Type:            "group",
		ClientIDs:       []string{"c1", "c2", "c3"},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "exceeds the limit")

	appt, err := svc.Create(context.Background(), "t1", CreateAppointmentRequest{
		StartTime:       now.Add(2 * time.Hour),
		DurationMinutes: 60,
		Type:            "group",
		ClientIDs:       []string{"c1", "c2"},
	})
	require.NoError(t, err)
	assert.Len(t, []string(appt.ClientIDs), 2)
}

func TestAppointmentServiceCreateRejectsOutsideWorkingHours(t *testing.T) {
	// 2025-03-10 08:00 is a Monday; defaults work Mon-Fri 09:00-18:00.
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	clients := &stubClientReader{clients: []models.Client{{ID: "c1", TrainerID: "t1"}}}
	svc := newAppointmentService(&stubAppointmentRepo{createOK: true}, clients, &stubSettingsProvider{}, fixedClock{now}, nil)

	create := func(start time.Time, duration int) error {
		_, err := svc.Create(context.Background(), "t1", CreateAppointmentRequest{
			StartTime:       start,
			DurationMinutes: duration,
			Type:            "individual",
			ClientID:        "c1",
		})
		return err
	}

	// Sunday 03:00.
	err := create(time.Date(2025, 3, 16, 3, 0, 0, 0, time.UTC), 60)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	// Before opening on a working day.
	err = create(time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC), 60)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	// Runs past closing.
	err = create(time.Date(2025, 3, 11, 17, 30, 0, 0, time.UTC), 60)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestAppointmentServiceCreateRejectsHoliday(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	settings := models.DefaultBusinessSettings("t1")
	settings.Holidays = []string{"2025-03-11"}
	clients := &stubClientReader{clients: []models.Client{{ID: "c1", TrainerID: "t1"}}}
	svc := newAppointmentService(&stubAppointmentRepo{createOK: true}, clients, &stubSettingsProvider{settings: settings}, fixedClock{now}, nil)

	_, err := svc.Create(context.Background(), "t1", CreateAppointmentRequest{
		StartTime:       time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Type:            "individual",
		ClientID:        "c1",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestAppointmentServiceUpdateRejectsMoveOutsideWorkingHours(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	start := now.Add(3 * time.Hour)
	repo := &stubAppointmentRepo{
		byID: &models.Appointment{
			ID: "a1", TrainerID: "t1", Type: models.TypeIndividual,
			StartTime: start, DurationMinutes: 60, Status: models.StatusScheduled,
		},
		updateOK: true,
	}
	svc := newAppointmentService(repo, &stubClientReader{}, &stubSettingsProvider{}, fixedClock{now}, nil)

	moved := time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC) // Sunday
	_, err := svc.Update(context.Background(), "t1", "a1", UpdateAppointmentRequest{StartTime: &moved})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.updateIfCalls)
}

func TestAppointmentServiceCreateForeignClient(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	clients := &stubClientReader{clients: []models.Client{{ID: "c1", TrainerID: "other"}}}
	svc := newAppointmentService(&stubAppointmentRepo{createOK: true}, clients, &stubSettingsProvider{}, fixedClock{now}, nil)

	_, err := svc.Create(context.Background(), "t1", CreateAppointmentRequest{
		StartTime:       now.Add(2 * time.Hour),
		DurationMinutes: 60,
		Type:            "individual",
		ClientID:        "c1",
	})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)
}

func TestAppointmentServiceGetEnforcesOwnership(t *testing.T) {
	repo := &stubAppointmentRepo{byID: &models.Appointment{ID: "a1", TrainerID: "other"}}
	svc := newAppointmentService(repo, &stubClientReader{}, &stubSettingsProvider{}, nil, nil)

	_, err := svc.Get(context.Background(), "t1", "a1")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)

	repo.byID = nil
	_, err = svc.Get(context.Background(), "t1", "a1")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestAppointmentServiceUpdateMoveReValidatesOverlap(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	start := now.Add(3 * time.Hour)
	repo := &stubAppointmentRepo{
		byID: &models.Appointment{
			ID: "a1", TrainerID: "t1", Type: models.TypeIndividual,
			StartTime: start, DurationMinutes: 60, Status: models.StatusScheduled,
		},
		updateOK: true,
	}
	svc := newAppointmentService(repo, &stubClientReader{}, &stubSettingsProvider{}, fixedClock{now}, nil)

	moved := start.Add(time.Hour)
	appt, err := svc.Update(context.Background(), "t1", "a1", UpdateAppointmentRequest{StartTime: &moved})
	require.NoError(t, err)
	assert.Equal(t, moved, appt.StartTime)
	assert.Equal(t, 1, repo.updateIfCalls)
	assert.Equal(t, 0, repo.updateCalls)

	// A notes-only change skips the overlap re-check entirely.
	notes := "bring resistance bands"
	_, err = svc.Update(context.Background(), "t1", "a1", UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.updateIfCalls)
	assert.Equal(t, 1, repo.updateCalls)
}

func TestAppointmentServiceUpdateMoveConflict(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	start := now.Add(3 * time.Hour)
	repo := &stubAppointmentRepo{
		byID: &models.Appointment{
			ID: "a1", TrainerID: "t1", Type: models.TypeIndividual,
			StartTime: start, DurationMinutes: 60, Status: models.StatusScheduled,
		},
		updateOK: false,
	}
	metrics := &stubConflictCounter{}
	svc := newAppointmentService(repo, &stubClientReader{}, &stubSettingsProvider{}, fixedClock{now}, metrics)

	moved := start.Add(30 * time.Minute)
	_, err := svc.Update(context.Background(), "t1", "a1", UpdateAppointmentRequest{StartTime: &moved})
	require.Error(t, err)
	assert.Equal(t, "SLOT_TAKEN", appErrors.FromError(err).Code)
	assert.Equal(t, 1, metrics.conflicts)
}

func TestAppointmentServiceUpdateRejectsTerminal(t *testing.T) {
	repo := &stubAppointmentRepo{
		byID: &models.Appointment{ID: "a1", TrainerID: "t1", Status: models.StatusCompleted},
	}
	svc := newAppointmentService(repo, &stubClientReader{}, &stubSettingsProvider{}, nil, nil)

	notes := "x"
	_, err := svc.Update(context.Background(), "t1", "a1", UpdateAppointmentRequest{Notes: &notes})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestAppointmentServiceCancelIsIdempotent(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	repo := &stubAppointmentRepo{
		byID: &models.Appointment{
			ID: "a1", TrainerID: "t1", Status: models.StatusScheduled,
			StartTime: now.Add(2 * time.Hour), DurationMinutes: 60,
		},
	}
	svc := newAppointmentService(repo, &stubClientReader{}, &stubSettingsProvider{}, fixedClock{now}, nil)

	first, err := svc.Cancel(context.Background(), "t1", "a1", "client sick")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, first.Status)
	require.NotNil(t, first.CancelledAt)
	require.NotNil(t, first.CancellationReason)
	assert.Equal(t, "client sick", *first.CancellationReason)
	assert.Equal(t, 1, repo.updateCalls)

	repo.byID = first
	second, err := svc.Cancel(context.Background(), "t1", "a1", "again")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, second.Status)
	assert.Equal(t, *first.CancelledAt, *second.CancelledAt)
	assert.Equal(t, "client sick", *second.CancellationReason)
	assert.Equal(t, 1, repo.updateCalls)
}

func TestAppointmentServiceCancelRefusesCompleted(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	repo := &stubAppointmentRepo{
		byID: &models.Appointment{
			ID: "a1", TrainerID: "t1", Status: models.StatusCompleted,
			StartTime: now.Add(-24 * time.Hour), DurationMinutes: 60,
		},
	}
	svc := newAppointmentService(repo, &stubClientReader{}, &stubSettingsProvider{}, fixedClock{now}, nil)

	_, err := svc.Cancel(context.Background(), "t1", "a1", "mistake")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.updateCalls)
}

func TestAppointmentServiceSetAttendance(t *testing.T) {
	repo := &stubAppointmentRepo{
		byID: &models.Appointment{ID: "a1", TrainerID: "t1", Status: models.StatusScheduled, AttendanceStatus: models.AttendancePending},
	}
	svc := newAppointmentService(repo, &stubClientReader{}, &stubSettingsProvider{}, nil, nil)

	appt, err := svc.SetAttendance(context.Background(), "a1", models.AttendanceDeclined)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceDeclined, appt.AttendanceStatus)

	_, err = svc.SetAttendance(context.Background(), "a1", models.AttendancePending)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	repo.byID.Status = models.StatusCancelled
	_, err = svc.SetAttendance(context.Background(), "a1", models.AttendanceConfirmed)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}
