package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fitbook/trainer-crm-api/internal/models"
)

// AppointmentRepository provides persistence for appointments. Overlap-guarded
// writes run the availability read and the mutation inside one transaction,
// with FOR UPDATE row locks on the trainer's colliding window. The locks only
// serialize against existing rows; two inserts racing on an empty window are
// caught by the appointments_no_overlap exclusion constraint, whose violation
// is reported as a taken slot, never as an error.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = "id, trainer_id, appointment_type, client_id, client_ids, start_time, duration_minutes, status, attendance_status, notes, cancelled_at, cancellation_reason, created_at, updated_at"

// FindByID loads an appointment by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1", appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListForDay returns a trainer's appointments overlapping the given calendar
// day, ordered by start. Cancelled rows are included or excluded by the caller
// through the filter.
func (r *AppointmentRepository) ListForDay(ctx context.Context, trainerID string, day time.Time, includeCancelled bool) ([]models.Appointment, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := fmt.Sprintf(`SELECT %s FROM appointments
WHERE trainer_id = $1
  AND start_time < $3
  AND start_time + make_interval(mins => duration_minutes) > $2`, appointmentColumns)
	if !includeCancelled {
		query += " AND status <> 'cancelled'"
	}
	query += " ORDER BY start_time ASC"

	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, trainerID, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("list appointments for day: %w", err)
	}
	return appointments, nil
}

// ListUpcoming returns a trainer's non-cancelled, non-declined appointments
// starting after now, ordered by start then created_at.
func (r *AppointmentRepository) ListUpcoming(ctx context.Context, trainerID string, now time.Time) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments
WHERE trainer_id = $1
  AND start_time > $2
  AND status <> 'cancelled'
  AND attendance_status <> 'declined'
ORDER BY start_time ASC, created_at ASC`, appointmentColumns)

	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, trainerID, now); err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appointments, nil
}

const overlapLockQuery = `SELECT id FROM appointments
WHERE trainer_id = $1
  AND status <> 'cancelled'
  AND start_time < $3
  AND start_time + make_interval(mins => duration_minutes) > $2
  AND id <> $4
FOR UPDATE`

// CreateScheduled inserts a new scheduled appointment iff its window is free.
// Returns false with no error when the slot is already taken.
func (r *AppointmentRepository) CreateScheduled(ctx context.Context, appt *models.Appointment) (bool, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	appt.Status = models.StatusScheduled
	if appt.AttendanceStatus == "" {
		appt.AttendanceStatus = models.AttendancePending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin create appointment: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	free, err := windowFree(ctx, tx, appt.TrainerID, appt.StartTime, appt.EndTime(), "")
	if err != nil {
		return false, err
	}
	if !free {
		return false, nil
	}

	const query = `INSERT INTO appointments (id, trainer_id, appointment_type, client_id, client_ids, start_time, duration_minutes, status, attendance_status, notes, cancelled_at, cancellation_reason, created_at, updated_at)
VALUES (:id, :trainer_id, :appointment_type, :client_id, :client_ids, :start_time, :duration_minutes, :status, :attendance_status, :notes, :cancelled_at, :cancellation_reason, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, appt); err != nil {
		if isOverlapViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit create appointment: %w", err)
	}
	return true, nil
}

// UpdateIfAvailable rewrites an appointment whose time window may have moved,
// re-checking overlap (excluding itself) inside the same transaction. Returns
// false with no error when the new window collides.
func (r *AppointmentRepository) UpdateIfAvailable(ctx context.Context, appt *models.Appointment) (bool, error) {
	appt.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin update appointment: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	free, err := windowFree(ctx, tx, appt.TrainerID, appt.StartTime, appt.EndTime(), appt.ID)
	if err != nil {
		return false, err
	}
	if !free {
		return false, nil
	}

	if err := updateRow(ctx, tx, appt); err != nil {
		if isOverlapViolation(err) {
			return false, nil
		}
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit update appointment: %w", err)
	}
	return true, nil
}

// isOverlapViolation reports whether err is the appointments_no_overlap
// exclusion constraint firing (pgcode 23P01).
func isOverlapViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23P01"
}

// Update rewrites an appointment without an overlap check, for mutations that
// do not move the time window.
func (r *AppointmentRepository) Update(ctx context.Context, appt *models.Appointment) error {
	appt.UpdatedAt = time.Now().UTC()
	return updateRow(ctx, r.db, appt)
}

func windowFree(ctx context.Context, tx *sqlx.Tx, trainerID string, start, end time.Time, excludeID string) (bool, error) {
	var ids []string
	if err := tx.SelectContext(ctx, &ids, overlapLockQuery, trainerID, start, end, excludeID); err != nil {
		return false, fmt.Errorf("lock overlapping appointments: %w", err)
	}
	return len(ids) == 0, nil
}

func updateRow(ctx context.Context, exec sqlx.ExtContext, appt *models.Appointment) error {
	const query = `UPDATE appointments SET
	appointment_type = :appointment_type,
	client_id = :client_id,
	client_ids = :client_ids,
	start_time = :start_time,
	duration_minutes = :duration_minutes,
	status = :status,
	attendance_status = :attendance_status,
	notes = :notes,
	cancelled_at = :cancelled_at,
	cancellation_reason = :cancellation_reason,
	updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, appt); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}
