package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// HolidayDateLayout is the wire format for holiday dates (time of day ignored).
const HolidayDateLayout = "2006-01-02"

// WeekdayKeys lists the seven working-hours keys in calendar order.
var WeekdayKeys = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// DayHours describes one weekday's bookable window.
type DayHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// WorkingHours maps weekday key -> bookable window. All seven keys are present
// after normalization.
type WorkingHours map[string]DayHours

// BusinessSettings is a trainer's booking configuration.
type BusinessSettings struct {
	TrainerID           string       `db:"trainer_id" json:"trainer_id"`
	Timezone            string       `db:"timezone" json:"timezone"`
	WorkingHours        WorkingHours `db:"-" json:"working_hours"`
	SlotDurationMinutes int          `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	Holidays            []string     `db:"-" json:"holidays"`
	RemindersEnabled    bool         `db:"reminders_enabled" json:"reminders_enabled"`
	ReminderLeadHours   int          `db:"reminder_lead_hours" json:"reminder_lead_hours"`
	MaxGroupClients     int          `db:"max_group_clients" json:"max_group_clients"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// WeekdayKey returns the working-hours key for a date.
func WeekdayKey(date time.Time) string {
	return strings.ToLower(date.Weekday().String())
}

// ParseClock parses an "HH:MM" wall-clock value into minutes from midnight.
func ParseClock(raw string) (int, error) {
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", raw, err)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// DefaultWorkingHours is the fail-closed fallback: Mon-Fri 09:00-18:00,
// weekend disabled.
func DefaultWorkingHours() WorkingHours {
	hours := make(WorkingHours, len(WeekdayKeys))
	for _, key := range WeekdayKeys {
		enabled := key != "saturday" && key != "sunday"
		hours[key] = DayHours{Enabled: enabled, Start: "09:00", End: "18:00"}
	}
	return hours
}

// DefaultBusinessSettings synthesizes settings for a trainer who never saved any.
func DefaultBusinessSettings(trainerID string) *BusinessSettings {
	return &BusinessSettings{
		TrainerID:           trainerID,
		Timezone:            "UTC",
		WorkingHours:        DefaultWorkingHours(),
		SlotDurationMinutes: 30,
		Holidays:            []string{},
		RemindersEnabled:    false,
		ReminderLeadHours:   2,
		MaxGroupClients:     10,
	}
}

// legacyHours is the flat pre-migration shape: one window applied to every day.
type legacyHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NormalizeWorkingHours decodes persisted working-hours JSON into the
// per-weekday map. The legacy flat {start,end} shape is back-filled across
// Mon-Fri with the weekend disabled. Anything malformed falls back to the safe
// default instead of propagating an error into read paths.
func NormalizeWorkingHours(raw []byte) WorkingHours {
	if len(raw) == 0 {
		return DefaultWorkingHours()
	}

	var weekly map[string]DayHours
	if err := json.Unmarshal(raw, &weekly); err == nil && isWeeklyShape(weekly) {
		if validWorkingHours(weekly) {
			normalized := make(WorkingHours, len(WeekdayKeys))
			for _, key := range WeekdayKeys {
				normalized[key] = weekly[key]
			}
			return normalized
		}
		return DefaultWorkingHours()
	}

	var legacy legacyHours
	if err := json.Unmarshal(raw, &legacy); err == nil && legacy.Start != "" && legacy.End != "" {
		if _, err := ParseClock(legacy.Start); err != nil {
			return DefaultWorkingHours()
		}
		if _, err := ParseClock(legacy.End); err != nil {
			return DefaultWorkingHours()
		}
		hours := make(WorkingHours, len(WeekdayKeys))
		for _, key := range WeekdayKeys {
			enabled := key != "saturday" && key != "sunday"
			hours[key] = DayHours{Enabled: enabled, Start: legacy.Start, End: legacy.End}
		}
		return hours
	}

	return DefaultWorkingHours()
}

func isWeeklyShape(weekly map[string]DayHours) bool {
	if len(weekly) == 0 {
		return false
	}
	for _, key := range WeekdayKeys {
		if _, ok := weekly[key]; ok {
			return true
		}
	}
	return false
}

func validWorkingHours(weekly map[string]DayHours) bool {
	for _, key := range WeekdayKeys {
		day, ok := weekly[key]
		if !ok {
			return false
		}
		if _, err := ParseClock(day.Start); err != nil {
			return false
		}
		if _, err := ParseClock(day.End); err != nil {
			return false
		}
	}
	return true
}

// Validate enforces the write-time invariants: every weekday key present, at
// least one weekday enabled, parseable windows, positive slot duration.
func (s *BusinessSettings) Validate() error {
	if s.SlotDurationMinutes <= 0 {
		return fmt.Errorf("slot duration must be positive")
	}
	anyEnabled := false
	for _, key := range WeekdayKeys {
		day, ok := s.WorkingHours[key]
		if !ok {
			return fmt.Errorf("working hours missing weekday %q", key)
		}
		start, err := ParseClock(day.Start)
		if err != nil {
			return err
		}
		end, err := ParseClock(day.End)
		if err != nil {
			return err
		}
		if day.Enabled {
			anyEnabled = true
			if end <= start {
				return fmt.Errorf("weekday %q ends before it starts", key)
			}
		}
	}
	if !anyEnabled {
		return fmt.Errorf("at least one weekday must be enabled")
	}
	for _, holiday := range s.Holidays {
		if _, err := time.Parse(HolidayDateLayout, holiday); err != nil {
			return fmt.Errorf("invalid holiday date %q", holiday)
		}
	}
	return nil
}
