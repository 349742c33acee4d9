package ports

import "context"

// EmailMessage is a plain-text transactional email.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	Tag     string
}

// Notifier delivers an email. Implementations may block on the network.
type Notifier interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// NotificationQueue hands messages off for asynchronous delivery. Enqueue must
// not block the caller.
type NotificationQueue interface {
	Enqueue(msg EmailMessage)
}

// ResetThrottle suppresses repeated password-reset requests for one email.
type ResetThrottle interface {
	// Allow reports whether a new reset may be issued for email now, and
	// records the attempt when it may.
	Allow(ctx context.Context, email string) (bool, error)
}
