package models

import "time"

// Client is a person who books sessions with a trainer. Identities are
// referenced by appointments, never owned by them.
type Client struct {
	ID             string    `db:"id" json:"id"`
	TrainerID      string    `db:"trainer_id" json:"trainer_id"`
	Name           string    `db:"name" json:"name"`
	Phone          string    `db:"phone" json:"phone,omitempty"`
	TelegramChatID *string   `db:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HasRecipient reports whether the client can receive reminders.
func (c *Client) HasRecipient() bool {
	return c.TelegramChatID != nil && *c.TelegramChatID != ""
}
