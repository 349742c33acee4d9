// Package mail holds the outbound email senders. Each implements
// ports.Notifier; the queue dispatcher decides which one runs.
package mail

import (
	"errors"

	"github.com/99minutos/account-service/internal/core/ports"
)

var (
	ErrInvalidConfig = errors.New("mail: invalid configuration")
	ErrSendFailed    = errors.New("mail: send failed")
	ErrNoRecipient   = errors.New("mail: recipient is required")
)

func validate(msg ports.EmailMessage) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	return nil
}
