package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fitbook/trainer-crm-api/internal/availability"
	"github.com/fitbook/trainer-crm-api/internal/models"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
)

type appointmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	ListForDay(ctx context.Context, trainerID string, day time.Time, includeCancelled bool) ([]models.Appointment, error)
	CreateScheduled(ctx context.Context, appt *models.Appointment) (bool, error)
	UpdateIfAvailable(ctx context.Context, appt *models.Appointment) (bool, error)
	Update(ctx context.Context, appt *models.Appointment) error
}

type clientReader interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Client, error)
}

type settingsProvider interface {
	Get(ctx context.Context, trainerID string) (*models.BusinessSettings, error)
}

type conflictCounter interface {
	IncBookingConflict()
}

// CreateAppointmentRequest describes the payload for booking a session.
type CreateAppointmentRequest struct {
	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Type            string    `json:"type" validate:"required,oneof=individual group"`
	ClientID        string    `json:"client_id"`
	ClientIDs       []string  `json:"client_ids"`
	Notes           string    `json:"notes"`
}

// UpdateAppointmentRequest is a partial update; nil fields are untouched.
type UpdateAppointmentRequest struct {
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gt=0"`
	Notes           *string    `json:"notes"`
	Status          *string    `json:"status" validate:"omitempty,oneof=completed"`
	ClientIDs       []string   `json:"client_ids"`
}

// AppointmentService orchestrates booking: validation, ownership, the
// no-overlap invariant, and the scheduled/completed/cancelled lifecycle.
type AppointmentService struct {
	repo      appointmentRepository
	clients   clientReader
	settings  settingsProvider
	validator *validator.Validate
	clock     Clock
	metrics   conflictCounter
	logger    *zap.Logger
}

// NewAppointmentService instantiates AppointmentService.
func NewAppointmentService(repo appointmentRepository, clients clientReader, settings settingsProvider, validate *validator.Validate, clock Clock, metrics conflictCounter, logger *zap.Logger) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{repo: repo, clients: clients, settings: settings, validator: validate, clock: clock, metrics: metrics, logger: logger}
}

// Create books a new appointment. The overlap check and the insert are one
// atomic unit in the repository; a lost race surfaces as the same conflict
// error as a plainly taken slot.
func (s *AppointmentService) Create(ctx context.Context, trainerID string, req CreateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	if !req.StartTime.After(s.clock.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment must start in the future")
	}

	settings, err := s.settings.Get(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if err := checkWithinWorkingHours(settings, req.StartTime, req.DurationMinutes); err != nil {
		return nil, err
	}

	attendees, apptType, err := s.resolveAttendees(ctx, trainerID, settings, req.Type, req.ClientID, req.ClientIDs)
	if err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		TrainerID:       trainerID,
		Type:            apptType,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	}
	if apptType == models.TypeIndividual {
		clientID := attendees[0]
		appt.ClientID = &clientID
	} else {
		appt.ClientIDs = pq.StringArray(attendees)
	}

	created, err := s.repo.CreateScheduled(ctx, appt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}
	if !created {
		if s.metrics != nil {
			s.metrics.IncBookingConflict()
		}
		return nil, appErrors.Clone(appErrors.ErrSlotTaken, "")
	}
	return appt, nil
}

// Get loads an appointment the caller owns.
func (s *AppointmentService) Get(ctx context.Context, trainerID, id string) (*models.Appointment, error) {
	return s.loadOwned(ctx, trainerID, id)
}

// ListDay returns the trainer's appointments for one calendar day.
func (s *AppointmentService) ListDay(ctx context.Context, trainerID string, day time.Time, includeCancelled bool) ([]models.Appointment, error) {
	appointments, err := s.repo.ListForDay(ctx, trainerID, day, includeCancelled)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	return appointments, nil
}

// Update applies a partial update. Overlap is re-validated only when the time
// window moves; ownership is checked before any mutation.
func (s *AppointmentService) Update(ctx context.Context, trainerID, id string, req UpdateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}

	appt, err := s.loadOwned(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if appt.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("appointment is %s and cannot be modified", appt.Status))
	}

	timeMoved := false
	if req.StartTime != nil && !req.StartTime.Equal(appt.StartTime) {
		if !req.StartTime.After(s.clock.Now()) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "appointment must start in the future")
		}
		appt.StartTime = *req.StartTime
		timeMoved = true
	}
	if req.DurationMinutes != nil && *req.DurationMinutes != appt.DurationMinutes {
		appt.DurationMinutes = *req.DurationMinutes
		timeMoved = true
	}
	if req.Notes != nil {
		appt.Notes = *req.Notes
	}
	if req.Status != nil {
		// The only writable transition is scheduled -> completed.
		appt.Status = models.StatusCompleted
	}
	var settings *models.BusinessSettings
	if timeMoved || req.ClientIDs != nil {
		settings, err = s.settings.Get(ctx, trainerID)
		if err != nil {
			return nil, err
		}
	}

	if req.ClientIDs != nil {
		if appt.Type != models.TypeGroup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "client_ids only applies to group appointments")
		}
		attendees, _, err := s.resolveAttendees(ctx, trainerID, settings, string(models.TypeGroup), "", req.ClientIDs)
		if err != nil {
			return nil, err
		}
		appt.ClientIDs = pq.StringArray(attendees)
	}

	if timeMoved {
		if err := checkWithinWorkingHours(settings, appt.StartTime, appt.DurationMinutes); err != nil {
			return nil, err
		}
		updated, err := s.repo.UpdateIfAvailable(ctx, appt)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
		}
		if !updated {
			if s.metrics != nil {
				s.metrics.IncBookingConflict()
			}
			return nil, appErrors.Clone(appErrors.ErrSlotTaken, "")
		}
		return appt, nil
	}

	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}
	return appt, nil
}

// Cancel soft-deletes an appointment. Cancelling twice is a no-op returning
// the existing terminal state; a completed appointment stays completed.
func (s *AppointmentService) Cancel(ctx context.Context, trainerID, id, reason string) (*models.Appointment, error) {
	appt, err := s.loadOwned(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if appt.IsCancelled() {
		return appt, nil
	}
	if appt.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("appointment is %s and cannot be cancelled", appt.Status))
	}

	now := s.clock.Now().UTC()
	appt.Status = models.StatusCancelled
	appt.CancelledAt = &now
	if reason != "" {
		appt.CancellationReason = &reason
	}

	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel appointment")
	}
	return appt, nil
}

// SetAttendance records a client's confirm/decline answer. Driven by the
// messaging confirmation flow, not by the trainer UI.
func (s *AppointmentService) SetAttendance(ctx context.Context, id string, status models.AttendanceStatus) (*models.Appointment, error) {
	if status != models.AttendanceConfirmed && status != models.AttendanceDeclined {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance status must be confirmed or declined")
	}

	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if appt.IsCancelled() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "appointment is cancelled")
	}

	appt.AttendanceStatus = status
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	return appt, nil
}

func (s *AppointmentService) loadOwned(ctx context.Context, trainerID, id string) (*models.Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if appt.TrainerID != trainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "appointment belongs to another trainer")
	}
	return appt, nil
}

func (s *AppointmentService) resolveAttendees(ctx context.Context, trainerID string, settings *models.BusinessSettings, reqType, clientID string, clientIDs []string) ([]string, models.AppointmentType, error) {
	apptType := models.AppointmentType(reqType)

	var ids []string
	switch apptType {
	case models.TypeIndividual:
		if clientID == "" {
			return nil, apptType, appErrors.Clone(appErrors.ErrValidation, "client_id is required for individual appointments")
		}
		ids = []string{clientID}
	case models.TypeGroup:
		if len(clientIDs) == 0 {
			return nil, apptType, appErrors.Clone(appErrors.ErrValidation, "client_ids is required for group appointments")
		}
		if len(clientIDs) > settings.MaxGroupClients {
			return nil, apptType, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("group size %d exceeds the limit of %d", len(clientIDs), settings.MaxGroupClients))
		}
		ids = clientIDs
	default:
		return nil, apptType, appErrors.Clone(appErrors.ErrValidation, "unknown appointment type")
	}

	found, err := s.clients.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apptType, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clients")
	}
	if len(found) != len(uniqueStrings(ids)) {
		return nil, apptType, appErrors.Clone(appErrors.ErrNotFound, "one or more clients not found")
	}
	for i := range found {
		if found[i].TrainerID != trainerID {
			return nil, apptType, appErrors.Clone(appErrors.ErrForbidden, "client belongs to another trainer")
		}
	}
	return ids, apptType, nil
}

// checkWithinWorkingHours rejects windows falling on a day off, on a holiday,
// or outside the working hours of the trainer's calendar.
func checkWithinWorkingHours(settings *models.BusinessSettings, start time.Time, durationMinutes int) error {
	cal := availability.NewCalendar(settings)
	window, ok := cal.WindowFor(start)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "appointment falls outside working days")
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	if start.Before(window.Start) || end.After(window.End) {
		return appErrors.Clone(appErrors.ErrValidation, "appointment does not fit inside working hours")
	}
	return nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
