package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitbook/trainer-crm-api/internal/models"
	"github.com/fitbook/trainer-crm-api/internal/notify"
)

type stubSettingsLister struct {
	settings []models.BusinessSettings
	err      error
}

func (s *stubSettingsLister) ListRemindersEnabled(ctx context.Context) ([]models.BusinessSettings, error) {
	return s.settings, s.err
}

type stubUpcomingLister struct {
	appointments []models.Appointment
	err          error
}

func (s *stubUpcomingLister) ListUpcoming(ctx context.Context, trainerID string, now time.Time) ([]models.Appointment, error) {
	return s.appointments, s.err
}

type stubMarkerStore struct {
	existing  map[string]bool
	recorded  []models.Reminder
	recordErr error
}

func markerKey(appointmentID, clientID string) string {
	return appointmentID + "/" + clientID
}

func (s *stubMarkerStore) Exists(ctx context.Context, appointmentID, clientID string, reminderType models.ReminderType) (bool, error) {
	return s.existing[markerKey(appointmentID, clientID)], nil
}

func (s *stubMarkerStore) Record(ctx context.Context, reminder *models.Reminder) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	if s.existing == nil {
		s.existing = map[string]bool{}
	}
	s.existing[markerKey(reminder.AppointmentID, reminder.ClientID)] = true
	s.recorded = append(s.recorded, *reminder)
	return nil
}

type captureSender struct {
	sent    []notify.Message
	to      []string
	failFor map[string]error
}

func (s *captureSender) Send(ctx context.Context, recipient string, msg notify.Message) error {
	if err, ok := s.failFor[recipient]; ok {
		return err
	}
	s.sent = append(s.sent, msg)
	s.to = append(s.to, recipient)
	return nil
}

func reminderFixture(now time.Time) (*stubSettingsLister, *stubUpcomingLister, *stubMarkerStore, *captureSender, *stubClientReader) {
	settings := models.DefaultBusinessSettings("t1")
	settings.RemindersEnabled = true
	settings.ReminderLeadHours = 2

	chat1, chat2 := "chat-1", "chat-2"
	clients := &stubClientReader{clients: []models.Client{
		{ID: "c1", TrainerID: "t1", TelegramChatID: &chat1},
		{ID: "c2", TrainerID: "t1", TelegramChatID: &chat2},
		{ID: "c3", TrainerID: "t1"},
	}}
	return &stubSettingsLister{settings: []models.BusinessSettings{*settings}},
		&stubUpcomingLister{},
		&stubMarkerStore{},
		&captureSender{},
		clients
}

func clientAppt(id, clientID string, start, createdAt time.Time) models.Appointment {
	return models.Appointment{
		ID: id, TrainerID: "t1", Type: models.TypeIndividual,
		ClientID: &clientID, StartTime: start, DurationMinutes: 60,
		Status: models.StatusScheduled, AttendanceStatus: models.AttendancePending,
		CreatedAt: createdAt,
	}
}

func TestReminderServiceWindowBounds(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	settings, upcoming, markers, sender, clients := reminderFixture(now)

	// Lead time 2h plus the 5m buffer makes the window (0, 2h5m].
	upcoming.appointments = []models.Appointment{
		clientAppt("a-in", "c1", now.Add(110*time.Minute), now.Add(-time.Hour)),
		clientAppt("a-late", "c2", now.Add(130*time.Minute), now.Add(-time.Hour)),
		clientAppt("a-started", "c2", now.Add(-10*time.Minute), now.Add(-time.Hour)),
	}

	svc := NewReminderService(settings, upcoming, clients, markers, sender, fixedClock{now}, 5*time.Minute, nil, nil)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Sent, 1)
	assert.Equal(t, "a-in", summary.Sent[0].AppointmentID)
	assert.Equal(t, "c1", summary.Sent[0].ClientID)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a-in", sender.sent[0].ConfirmAction)
	assert.Equal(t, "chat-1", sender.to[0])
}

func TestReminderServiceDedupesSameStart(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	settings, upcoming, markers, sender, clients := reminderFixture(now)

	start := now.Add(90 * time.Minute)
	upcoming.appointments = []models.Appointment{
		clientAppt("a-old", "c1", start, now.Add(-2*time.Hour)),
		clientAppt("a-new", "c1", start, now.Add(-time.Hour)),
	}

	svc := NewReminderService(settings, upcoming, clients, markers, sender, fixedClock{now}, 5*time.Minute, nil, nil)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Sent, 1)
	assert.Equal(t, "a-new", summary.Sent[0].AppointmentID)
}

func TestReminderServiceAtMostOncePerAppointment(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	settings, upcoming, markers, sender, clients := reminderFixture(now)

	upcoming.appointments = []models.Appointment{
		clientAppt("a1", "c1", now.Add(90*time.Minute), now.Add(-time.Hour)),
	}

	svc := NewReminderService(settings, upcoming, clients, markers, sender, fixedClock{now}, 5*time.Minute, nil, nil)

	first, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Sent, 1)
	require.Len(t, markers.recorded, 1)
	assert.Equal(t, models.ReminderTelegram, markers.recorded[0].Type)

	// The durable marker keeps the second run from resending.
	second, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Sent)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, sender.sent, 1)
}

func TestReminderServiceSkipsClientsWithoutRecipient(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	settings, upcoming, markers, sender, clients := reminderFixture(now)

	upcoming.appointments = []models.Appointment{
		clientAppt("a1", "c3", now.Add(90*time.Minute), now.Add(-time.Hour)),
	}

	svc := NewReminderService(settings, upcoming, clients, markers, sender, fixedClock{now}, 5*time.Minute, nil, nil)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, markers.recorded)
}

func TestReminderServiceFailureDoesNotAbortBatch(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	settings, upcoming, markers, sender, clients := reminderFixture(now)
	sender.failFor = map[string]error{"chat-1": errors.New("telegram unreachable")}

	upcoming.appointments = []models.Appointment{
		clientAppt("a1", "c1", now.Add(60*time.Minute), now.Add(-time.Hour)),
		clientAppt("a2", "c2", now.Add(90*time.Minute), now.Add(-time.Hour)),
	}

	svc := NewReminderService(settings, upcoming, clients, markers, sender, fixedClock{now}, 5*time.Minute, nil, nil)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Sent, 1)
	assert.Equal(t, "a2", summary.Sent[0].AppointmentID)
	// The failed send leaves no marker, so the next run retries it.
	require.Len(t, markers.recorded, 1)
	assert.Equal(t, "a2", markers.recorded[0].AppointmentID)
}

func TestReminderServiceGroupFansOutPerClient(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	settings, upcoming, markers, sender, clients := reminderFixture(now)

	upcoming.appointments = []models.Appointment{{
		ID: "g1", TrainerID: "t1", Type: models.TypeGroup,
		ClientIDs: []string{"c1", "c2", "c3"},
		StartTime: now.Add(90 * time.Minute), DurationMinutes: 60,
		Status: models.StatusScheduled, AttendanceStatus: models.AttendancePending,
		CreatedAt: now.Add(-time.Hour),
	}}

	svc := NewReminderService(settings, upcoming, clients, markers, sender, fixedClock{now}, 5*time.Minute, nil, nil)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Sent, 2)
	assert.Equal(t, 1, summary.Skipped)
	assert.ElementsMatch(t, []string{"chat-1", "chat-2"}, sender.to)
}
