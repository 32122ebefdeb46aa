package models

import (
	"time"

	"github.com/lib/pq"
)

// AppointmentStatus is the appointment lifecycle state.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// AppointmentType distinguishes one-on-one sessions from group sessions.
type AppointmentType string

const (
	TypeIndividual AppointmentType = "individual"
	TypeGroup      AppointmentType = "group"
)

// AttendanceStatus is set by the client-facing confirmation flow, never by the
// trainer. It is orthogonal to the lifecycle status.
type AttendanceStatus string

const (
	AttendancePending   AttendanceStatus = "pending"
	AttendanceConfirmed AttendanceStatus = "confirmed"
	AttendanceDeclined  AttendanceStatus = "declined"
)

// Appointment is a booked session owned by one trainer.
type Appointment struct {
	ID                 string            `db:"id" json:"id"`
	TrainerID          string            `db:"trainer_id" json:"trainer_id"`
	Type               AppointmentType   `db:"appointment_type" json:"type"`
	ClientID           *string           `db:"client_id" json:"client_id,omitempty"`
	ClientIDs          pq.StringArray    `db:"client_ids" json:"client_ids,omitempty"`
	StartTime          time.Time         `db:"start_time" json:"start_time"`
	DurationMinutes    int               `db:"duration_minutes" json:"duration_minutes"`
	Status             AppointmentStatus `db:"status" json:"status"`
	AttendanceStatus   AttendanceStatus  `db:"attendance_status" json:"attendance_status"`
	Notes              string            `db:"notes" json:"notes,omitempty"`
	CancelledAt        *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// EndTime returns the exclusive end of the appointment interval.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Participants returns every attending client id regardless of type.
func (a *Appointment) Participants() []string {
	if a.Type == TypeGroup {
		return a.ClientIDs
	}
	if a.ClientID != nil && *a.ClientID != "" {
		return []string{*a.ClientID}
	}
	return nil
}

// IsCancelled reports whether the appointment is soft-deleted.
func (a *Appointment) IsCancelled() bool {
	return a.Status == StatusCancelled
}

// IsTerminal reports whether the lifecycle state admits no further transitions.
func (a *Appointment) IsTerminal() bool {
	return a.Status == StatusCancelled || a.Status == StatusCompleted
}

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	Day      *time.Time
	From     *time.Time
	To       *time.Time
	Status   AppointmentStatus
	ClientID string
	Page     int
	PageSize int
}
