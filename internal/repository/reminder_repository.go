package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fitbook/trainer-crm-api/internal/models"
)

// ReminderRepository persists reminder de-duplication markers. The table has a
// unique constraint on (appointment_id, client_id, reminder_type); inserts go
// through ON CONFLICT DO NOTHING so a concurrent double-dispatch cannot create
// two markers.
type ReminderRepository struct {
	db *sqlx.DB
}

// NewReminderRepository creates a new reminder repository.
func NewReminderRepository(db *sqlx.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Exists reports whether a reminder marker is already recorded for the
// (appointment, client, channel) triple.
func (r *ReminderRepository) Exists(ctx context.Context, appointmentID, clientID string, reminderType models.ReminderType) (bool, error) {
	const query = `SELECT COUNT(*) FROM reminders WHERE appointment_id = $1 AND client_id = $2 AND reminder_type = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, appointmentID, clientID, reminderType); err != nil {
		return false, fmt.Errorf("check reminder marker: %w", err)
	}
	return count > 0, nil
}

// Record stores a sent-reminder marker, ignoring duplicates.
func (r *ReminderRepository) Record(ctx context.Context, reminder *models.Reminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	if reminder.Status == "" {
		reminder.Status = models.ReminderSent
	}
	if reminder.SentAt.IsZero() {
		reminder.SentAt = time.Now().UTC()
	}

	const query = `INSERT INTO reminders (id, appointment_id, client_id, reminder_type, status, sent_at)
VALUES (:id, :appointment_id, :client_id, :reminder_type, :status, :sent_at)
ON CONFLICT (appointment_id, client_id, reminder_type) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, reminder); err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}
