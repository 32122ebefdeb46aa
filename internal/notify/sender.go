package notify

import "context"

// Message is the payload delivered to a client's registered recipient.
// ConfirmAction, when set, asks the channel to render a confirm/decline
// prompt whose answer feeds back into the appointment's attendance status.
type Message struct {
	Text          string
	ConfirmAction string
}

// Sender delivers messages to clients. Implementations are external
// collaborators (Telegram today); the dispatcher treats any error as
// transient and retries on the next run.
type Sender interface {
	Send(ctx context.Context, recipient string, msg Message) error
}

// NoopSender swallows messages; wired when no channel is configured so
// reminder batches still run and record nothing was deliverable.
type NoopSender struct{}

// Send implements Sender.
func (NoopSender) Send(ctx context.Context, recipient string, msg Message) error {
	return nil
}
