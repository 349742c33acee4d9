package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/account-service/internal/core/ports"
)

var sample = ports.EmailMessage{
	To:      "a@test.com",
	Subject: "Password Reset Code",
	Body:    "your code is 123456",
	Tag:     "password_reset",
}

func TestHTTPSender_PostsJSON(t *testing.T) {
	var got relayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewHTTPSender(srv.URL, srv.Client())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), sample))

	assert.Equal(t, relayRequest{To: "a@test.com", Subject: "Password Reset Code", Text: "your code is 123456"}, got)
}

func TestHTTPSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := NewHTTPSender(srv.URL, nil)
	require.NoError(t, err)

	err = s.Send(context.Background(), sample)
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPSender_Config(t *testing.T) {
	_, err := NewHTTPSender("", nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := NewHTTPSender("http://127.0.0.1:1", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Send(context.Background(), ports.EmailMessage{}), ErrNoRecipient)
}

func TestPostmarkSender_Config(t *testing.T) {
	_, err := NewPostmarkSender(PostmarkConfig{From: "noreply@test.com"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPostmarkSender(PostmarkConfig{ServerToken: "tok"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := NewPostmarkSender(PostmarkConfig{ServerToken: "tok", From: "noreply@test.com"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestPostmarkSender_Send(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("X-Postmark-Server-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"m-1"}`))
	}))
	defer srv.Close()

	s, err := NewPostmarkSender(PostmarkConfig{ServerToken: "tok", From: "noreply@test.com", BaseURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), sample))

	assert.Equal(t, "a@test.com", payload["To"])
	assert.Equal(t, "noreply@test.com", payload["From"])
	assert.Equal(t, "your code is 123456", payload["TextBody"])
	assert.Equal(t, "password_reset", payload["Tag"])
}

func TestPostmarkSender_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"Inactive recipient"}`))
	}))
	defer srv.Close()

	s, err := NewPostmarkSender(PostmarkConfig{ServerToken: "tok", From: "noreply@test.com", BaseURL: srv.URL})
	require.NoError(t, err)

	err = s.Send(context.Background(), sample)
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Contains(t, err.Error(), "Inactive recipient")
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))

	require.NoError(t, s.Send(context.Background(), sample))
	assert.Contains(t, buf.String(), `"to":"a@test.com"`)
	assert.Contains(t, buf.String(), "123456")

	assert.ErrorIs(t, s.Send(context.Background(), ports.EmailMessage{}), ErrNoRecipient)
}
