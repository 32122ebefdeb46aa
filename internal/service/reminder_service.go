package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fitbook/trainer-crm-api/internal/models"
	"github.com/fitbook/trainer-crm-api/internal/notify"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
)

type reminderSettingsLister interface {
	ListRemindersEnabled(ctx context.Context) ([]models.BusinessSettings, error)
}

type upcomingLister interface {
	ListUpcoming(ctx context.Context, trainerID string, now time.Time) ([]models.Appointment, error)
}

type reminderMarkerStore interface {
	Exists(ctx context.Context, appointmentID, clientID string, reminderType models.ReminderType) (bool, error)
	Record(ctx context.Context, reminder *models.Reminder) error
}

type batchObserver interface {
	ObserveReminderBatch(sent, skipped, failed int)
}

// ReminderService dispatches appointment reminders in periodic batches.
// Delivery is at-least-once: a send that fails (or whose marker write fails)
// stays eligible for the next run, while the marker check plus the unique
// insert keep a completed send from repeating.
type ReminderService struct {
	settings     reminderSettingsLister
	appointments upcomingLister
	clients      clientReader
	markers      reminderMarkerStore
	sender       notify.Sender
	clock        Clock
	jitterBuffer time.Duration
	metrics      batchObserver
	logger       *zap.Logger
}

// NewReminderService instantiates ReminderService.
func NewReminderService(settings reminderSettingsLister, appointments upcomingLister, clients clientReader, markers reminderMarkerStore, sender notify.Sender, clock Clock, jitterBuffer time.Duration, metrics batchObserver, logger *zap.Logger) *ReminderService {
	if clock == nil {
		clock = SystemClock()
	}
	if jitterBuffer <= 0 {
		jitterBuffer = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = notify.NoopSender{}
	}
	return &ReminderService{
		settings:     settings,
		appointments: appointments,
		clients:      clients,
		markers:      markers,
		sender:       sender,
		clock:        clock,
		jitterBuffer: jitterBuffer,
		metrics:      metrics,
		logger:       logger,
	}
}

// candidate pairs one client with one appointment occurrence.
type candidate struct {
	clientID string
	appt     models.Appointment
}

// RunOnce executes one dispatch batch against the current clock. Failures on
// individual appointments are logged and counted, never aborting the batch.
func (s *ReminderService) RunOnce(ctx context.Context) (*models.DispatchSummary, error) {
	now := s.clock.Now()
	summary := &models.DispatchSummary{Sent: []models.DispatchResult{}, RanAt: now}

	trainers, err := s.settings.ListRemindersEnabled(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reminder-enabled trainers")
	}

	for i := range trainers {
		s.dispatchForTrainer(ctx, &trainers[i], now, summary)
	}

	if s.metrics != nil {
		s.metrics.ObserveReminderBatch(len(summary.Sent), summary.Skipped, summary.Failed)
	}
	return summary, nil
}

func (s *ReminderService) dispatchForTrainer(ctx context.Context, settings *models.BusinessSettings, now time.Time, summary *models.DispatchSummary) {
	appointments, err := s.appointments.ListUpcoming(ctx, settings.TrainerID, now)
	if err != nil {
		s.logger.Error("reminder batch: listing upcoming appointments failed",
			zap.String("trainer_id", settings.TrainerID), zap.Error(err))
		summary.Failed++
		return
	}

	candidates := dedupeCandidates(appointments)
	if len(candidates) == 0 {
		return
	}

	recipients, err := s.loadRecipients(ctx, candidates)
	if err != nil {
		s.logger.Error("reminder batch: loading clients failed",
			zap.String("trainer_id", settings.TrainerID), zap.Error(err))
		summary.Failed++
		return
	}

	window := time.Duration(settings.ReminderLeadHours)*time.Hour + s.jitterBuffer

	for _, c := range candidates {
		untilStart := c.appt.StartTime.Sub(now)
		if untilStart <= 0 || untilStart > window {
			summary.Skipped++
			continue
		}

		client, ok := recipients[c.clientID]
		if !ok || !client.HasRecipient() {
			summary.Skipped++
			continue
		}

		sent, err := s.markers.Exists(ctx, c.appt.ID, c.clientID, models.ReminderTelegram)
		if err != nil {
			s.logger.Error("reminder batch: marker lookup failed",
				zap.String("appointment_id", c.appt.ID), zap.Error(err))
			summary.Failed++
			continue
		}
		if sent {
			summary.Skipped++
			continue
		}

		msg := notify.Message{
			Text:          fmt.Sprintf("Reminder: you have a session on %s.", c.appt.StartTime.Format("Mon, 02 Jan at 15:04")),
			ConfirmAction: c.appt.ID,
		}
		if err := s.sender.Send(ctx, *client.TelegramChatID, msg); err != nil {
			s.logger.Warn("reminder dispatch failed",
				zap.String("appointment_id", c.appt.ID),
				zap.String("client_id", c.clientID),
				zap.Error(err))
			summary.Failed++
			continue
		}

		sentAt := s.clock.Now()
		marker := &models.Reminder{
			AppointmentID: c.appt.ID,
			ClientID:      c.clientID,
			Type:          models.ReminderTelegram,
			SentAt:        sentAt,
		}
		if err := s.markers.Record(ctx, marker); err != nil {
			// The reminder went out but the marker write failed; the next run
			// may resend. Logged rather than failed: delivery already happened.
			s.logger.Error("reminder marker write failed",
				zap.String("appointment_id", c.appt.ID), zap.Error(err))
		}

		summary.Sent = append(summary.Sent, models.DispatchResult{
			ClientID:      c.clientID,
			AppointmentID: c.appt.ID,
			SentAt:        sentAt,
		})
	}
}

// dedupeCandidates expands appointments to (client, appointment) pairs and
// collapses duplicate rows sharing a client and an exact start instant,
// keeping the one created last.
func dedupeCandidates(appointments []models.Appointment) []candidate {
	type key struct {
		clientID string
		start    int64
	}
	byKey := make(map[key]int)
	var out []candidate

	for i := range appointments {
		appt := appointments[i]
		for _, clientID := range appt.Participants() {
			k := key{clientID: clientID, start: appt.StartTime.Unix()}
			if idx, ok := byKey[k]; ok {
				if appt.CreatedAt.After(out[idx].appt.CreatedAt) {
					out[idx] = candidate{clientID: clientID, appt: appt}
				}
				continue
			}
			byKey[k] = len(out)
			out = append(out, candidate{clientID: clientID, appt: appt})
		}
	}
	return out
}

func (s *ReminderService) loadRecipients(ctx context.Context, candidates []candidate) (map[string]models.Client, error) {
	ids := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.clientID]; ok {
			continue
		}
		seen[c.clientID] = struct{}{}
		ids = append(ids, c.clientID)
	}

	clients, err := s.clients.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Client, len(clients))
	for i := range clients {
		byID[clients[i].ID] = clients[i]
	}
	return byID, nil
}
