package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/99minutos/account-service/internal/core/ports"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPSender posts {to, subject, text} as JSON to a mail relay.
type HTTPSender struct {
	url    string
	client *http.Client
}

func NewHTTPSender(url string, client *http.Client) (*HTTPSender, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: email service url is required", ErrInvalidConfig)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPSender{url: url, client: client}, nil
}

type relayRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (s *HTTPSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	if err := validate(msg); err != nil {
		return err
	}

	body, err := json.Marshal(relayRequest{To: msg.To, Subject: msg.Subject, Text: msg.Body})
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrSendFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: relay responded %d", ErrSendFailed, resp.StatusCode)
	}
	return nil
}
