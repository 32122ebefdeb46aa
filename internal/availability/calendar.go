// Package availability holds the pure temporal core: business calendars,
// bookable slot generation and interval overlap queries. Everything here is a
// function of its inputs; persistence and transport live elsewhere.
//
// All arithmetic is wall-clock in the location of the input times. The
// trainer's declared timezone label is carried on settings but not applied
// here; see the design notes.
package availability

import (
	"time"

	"github.com/fitbook/trainer-crm-api/internal/models"
)

// DayWindow is the bookable window of a concrete date.
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// Calendar answers "is this day/time bookable" for one trainer.
type Calendar struct {
	hours    models.WorkingHours
	slotSize time.Duration
	holidays map[string]struct{}
}

// NewCalendar builds a Calendar from persisted settings. Settings arrive
// already normalized (all seven weekday keys present).
func NewCalendar(settings *models.BusinessSettings) *Calendar {
	holidays := make(map[string]struct{}, len(settings.Holidays))
	for _, h := range settings.Holidays {
		holidays[h] = struct{}{}
	}
	slot := time.Duration(settings.SlotDurationMinutes) * time.Minute
	if slot <= 0 {
		slot = 30 * time.Minute
	}
	return &Calendar{
		hours:    settings.WorkingHours,
		slotSize: slot,
		holidays: holidays,
	}
}

// SlotSize returns the quantization step.
func (c *Calendar) SlotSize() time.Duration {
	return c.slotSize
}

// IsWorkingDay reports whether the date's weekday is enabled.
func (c *Calendar) IsWorkingDay(date time.Time) bool {
	day, ok := c.hours[models.WeekdayKey(date)]
	return ok && day.Enabled
}

// IsHoliday reports whether the date (ignoring time of day) is a holiday.
func (c *Calendar) IsHoliday(date time.Time) bool {
	_, ok := c.holidays[date.Format(models.HolidayDateLayout)]
	return ok
}

// WindowFor resolves the bookable window for a date. The second return is
// false on non-working days, holidays, and malformed windows.
func (c *Calendar) WindowFor(date time.Time) (DayWindow, bool) {
	if !c.IsWorkingDay(date) || c.IsHoliday(date) {
		return DayWindow{}, false
	}
	day := c.hours[models.WeekdayKey(date)]
	startMin, err := models.ParseClock(day.Start)
	if err != nil {
		return DayWindow{}, false
	}
	endMin, err := models.ParseClock(day.End)
	if err != nil || endMin <= startMin {
		return DayWindow{}, false
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return DayWindow{
		Start: midnight.Add(time.Duration(startMin) * time.Minute),
		End:   midnight.Add(time.Duration(endMin) * time.Minute),
	}, true
}
