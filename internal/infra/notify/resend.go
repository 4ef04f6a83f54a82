package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"hiddystays/internal/app/policies"
)

const resendEndpoint = "https://api.resend.com/emails"

// Resend sends transactional email through the Resend HTTP API.
type Resend struct {
	APIKey   string
	From     string
	Endpoint string
	HTTP     *http.Client
}

func NewResend(apiKey, from string) *Resend {
	return &Resend{APIKey: apiKey, From: from, Endpoint: resendEndpoint, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

func (r *Resend) Send(ctx context.Context, email policies.Email) error {
	body, err := json.Marshal(resendRequest{From: r.From, To: []string{email.To}, Subject: email.Subject, Text: email.Text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notify: resend: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: resend status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// Log writes email to the logger instead of sending it.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Send(ctx context.Context, email policies.Email) error {
	l.Logger.InfoContext(ctx, "email", "to", email.To, "subject", email.Subject)
	return nil
}
