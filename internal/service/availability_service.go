package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fitbook/trainer-crm-api/internal/availability"
	"github.com/fitbook/trainer-crm-api/internal/models"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
)

type dayLister interface {
	ListForDay(ctx context.Context, trainerID string, day time.Time, includeCancelled bool) ([]models.Appointment, error)
}

// SlotView is one candidate slot rendered for a booking UI.
type SlotView struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"available"`
}

// DurationOptions is the legal duration menu from a candidate start.
type DurationOptions struct {
	MaxDurationMinutes int   `json:"max_duration_minutes"`
	Options            []int `json:"options"`
}

// AvailabilityService renders bookable slots and duration menus from the
// calendar and the day's booked intervals.
type AvailabilityService struct {
	appointments   dayLister
	settings       settingsProvider
	ceilingMinutes int
	logger         *zap.Logger
}

// NewAvailabilityService instantiates AvailabilityService.
func NewAvailabilityService(appointments dayLister, settings settingsProvider, ceilingMinutes int, logger *zap.Logger) *AvailabilityService {
	if ceilingMinutes <= 0 {
		ceilingMinutes = 120
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{appointments: appointments, settings: settings, ceilingMinutes: ceilingMinutes, logger: logger}
}

// Slots returns the day's quantized slots, each marked free or booked.
func (s *AvailabilityService) Slots(ctx context.Context, trainerID string, day time.Time) ([]SlotView, error) {
	settings, err := s.settings.Get(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	cal := availability.NewCalendar(settings)

	starts := availability.Slots(cal, day)
	if len(starts) == 0 {
		return []SlotView{}, nil
	}

	appointments, err := s.appointments.ListForDay(ctx, trainerID, day, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked appointments")
	}
	index := availability.NewIndex(appointments)

	step := cal.SlotSize()
	views := make([]SlotView, 0, len(starts))
	for _, start := range starts {
		views = append(views, SlotView{
			StartTime: start,
			EndTime:   start.Add(step),
			Available: index.IsAvailable(start, step, ""),
		})
	}
	return views, nil
}

// Durations computes the maximum legal duration and the standard-duration
// menu from a candidate start instant.
func (s *AvailabilityService) Durations(ctx context.Context, trainerID string, start time.Time) (*DurationOptions, error) {
	settings, err := s.settings.Get(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	cal := availability.NewCalendar(settings)

	window, ok := cal.WindowFor(start)
	if !ok {
		return &DurationOptions{MaxDurationMinutes: 0, Options: []int{}}, nil
	}

	appointments, err := s.appointments.ListForDay(ctx, trainerID, start, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked appointments")
	}
	index := availability.NewIndex(appointments)

	ceiling := time.Duration(s.ceilingMinutes) * time.Minute
	max := index.MaxDuration(start, window.End, ceiling)
	options := index.StandardDurations(start, window.End, ceiling)
	if options == nil {
		options = []int{}
	}
	return &DurationOptions{
		MaxDurationMinutes: int(max / time.Minute),
		Options:            options,
	}, nil
}
