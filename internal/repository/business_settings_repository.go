package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fitbook/trainer-crm-api/internal/models"
)

// BusinessSettingsRepository persists per-trainer booking configuration.
// Working hours and holidays live in JSONB columns; the legacy flat
// working-hours shape is normalized here on read so nothing above this layer
// ever sees it.
type BusinessSettingsRepository struct {
	db *sqlx.DB
}

// NewBusinessSettingsRepository creates the repository.
func NewBusinessSettingsRepository(db *sqlx.DB) *BusinessSettingsRepository {
	return &BusinessSettingsRepository{db: db}
}

type businessSettingsRow struct {
	TrainerID           string    `db:"trainer_id"`
	Timezone            string    `db:"timezone"`
	WorkingHours        []byte    `db:"working_hours"`
	SlotDurationMinutes int       `db:"slot_duration_minutes"`
	Holidays            []byte    `db:"holidays"`
	RemindersEnabled    bool      `db:"reminders_enabled"`
	ReminderLeadHours   int       `db:"reminder_lead_hours"`
	MaxGroupClients     int       `db:"max_group_clients"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (row *businessSettingsRow) toModel() *models.BusinessSettings {
	settings := &models.BusinessSettings{
		TrainerID:           row.TrainerID,
		Timezone:            row.Timezone,
		WorkingHours:        models.NormalizeWorkingHours(row.WorkingHours),
		SlotDurationMinutes: row.SlotDurationMinutes,
		RemindersEnabled:    row.RemindersEnabled,
		ReminderLeadHours:   row.ReminderLeadHours,
		MaxGroupClients:     row.MaxGroupClients,
		UpdatedAt:           row.UpdatedAt,
	}
	if settings.SlotDurationMinutes <= 0 {
		settings.SlotDurationMinutes = 30
	}
	var holidays []string
	if len(row.Holidays) > 0 {
		if err := json.Unmarshal(row.Holidays, &holidays); err != nil {
			holidays = nil
		}
	}
	settings.Holidays = holidays
	return settings
}

const businessSettingsColumns = "trainer_id, timezone, working_hours, slot_duration_minutes, holidays, reminders_enabled, reminder_lead_hours, max_group_clients, updated_at"

// Get loads settings for a trainer, nil when none were ever saved.
func (r *BusinessSettingsRepository) Get(ctx context.Context, trainerID string) (*models.BusinessSettings, error) {
	query := fmt.Sprintf("SELECT %s FROM business_settings WHERE trainer_id = $1", businessSettingsColumns)
	var row businessSettingsRow
	if err := r.db.GetContext(ctx, &row, query, trainerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get business settings: %w", err)
	}
	return row.toModel(), nil
}

// Upsert replaces a trainer's settings wholesale (last writer wins).
func (r *BusinessSettingsRepository) Upsert(ctx context.Context, settings *models.BusinessSettings) error {
	hours, err := json.Marshal(settings.WorkingHours)
	if err != nil {
		return fmt.Errorf("marshal working hours: %w", err)
	}
	holidays, err := json.Marshal(settings.Holidays)
	if err != nil {
		return fmt.Errorf("marshal holidays: %w", err)
	}
	settings.UpdatedAt = time.Now().UTC()

	const query = `INSERT INTO business_settings (trainer_id, timezone, working_hours, slot_duration_minutes, holidays, reminders_enabled, reminder_lead_hours, max_group_clients, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (trainer_id) DO UPDATE SET
	timezone = EXCLUDED.timezone,
	working_hours = EXCLUDED.working_hours,
	slot_duration_minutes = EXCLUDED.slot_duration_minutes,
	holidays = EXCLUDED.holidays,
	reminders_enabled = EXCLUDED.reminders_enabled,
	reminder_lead_hours = EXCLUDED.reminder_lead_hours,
	max_group_clients = EXCLUDED.max_group_clients,
	updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, settings.TrainerID, settings.Timezone, hours,
		settings.SlotDurationMinutes, holidays, settings.RemindersEnabled,
		settings.ReminderLeadHours, settings.MaxGroupClients, settings.UpdatedAt); err != nil {
		return fmt.Errorf("upsert business settings: %w", err)
	}
	return nil
}

// ListRemindersEnabled returns settings for every trainer with reminders on.
func (r *BusinessSettingsRepository) ListRemindersEnabled(ctx context.Context) ([]models.BusinessSettings, error) {
	query := fmt.Sprintf("SELECT %s FROM business_settings WHERE reminders_enabled = TRUE", businessSettingsColumns)
	var rows []businessSettingsRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list reminder-enabled settings: %w", err)
	}

	settings := make([]models.BusinessSettings, 0, len(rows))
	for i := range rows {
		settings = append(settings, *rows[i].toModel())
	}
	return settings, nil
}
