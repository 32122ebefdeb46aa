package models

import "time"

// ReminderType identifies the delivery channel of a reminder.
type ReminderType string

const ReminderTelegram ReminderType = "telegram"

// ReminderStatus is the terminal state of a dispatched reminder.
type ReminderStatus string

const ReminderSent ReminderStatus = "sent"

// Reminder is the durable de-duplication marker: its presence means a reminder
// for (appointment, client, channel) has already gone out.
type Reminder struct {
	ID            string         `db:"id" json:"id"`
	AppointmentID string         `db:"appointment_id" json:"appointment_id"`
	ClientID      string         `db:"client_id" json:"client_id"`
	Type          ReminderType   `db:"reminder_type" json:"type"`
	Status        ReminderStatus `db:"status" json:"status"`
	SentAt        time.Time      `db:"sent_at" json:"sent_at"`
}

// DispatchResult records one reminder delivered during a batch run.
type DispatchResult struct {
	ClientID      string    `json:"client_id"`
	AppointmentID string    `json:"appointment_id"`
	SentAt        time.Time `json:"sent_at"`
}

// DispatchSummary aggregates one reminder batch run.
type DispatchSummary struct {
	Sent    []DispatchResult `json:"sent"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	RanAt   time.Time        `json:"ran_at"`
}
