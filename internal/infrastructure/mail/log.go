package mail

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-service/internal/core/ports"
)

// LogSender writes messages to the log instead of delivering them. Used in
// development, where the body carries the activation link or reset code.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg ports.EmailMessage) error {
	if err := validate(msg); err != nil {
		return err
	}
	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("tag", msg.Tag).
		Str("body", msg.Body).
		Msg("email (not delivered)")
	return nil
}
