package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"

	"github.com/99minutos/account-service/internal/core/ports"
)

// PostmarkConfig carries the Postmark credentials and sender identity.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	From         string
	// BaseURL overrides the API endpoint (tests).
	BaseURL string
}

// PostmarkSender delivers through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	from   string
}

func NewPostmarkSender(cfg PostmarkConfig) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrInvalidConfig)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrInvalidConfig)
	}

	client := postmark.NewClient(cfg.ServerToken, cfg.AccountToken)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	return &PostmarkSender{client: client, from: cfg.From}, nil
}

func (s *PostmarkSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	if err := validate(msg); err != nil {
		return err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		TextBody: msg.Body,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
