package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	discordTimeout   = 15 * time.Second
	discordUserAgent = "postwatch/1.0"
)

// DeliveryError is a non-success response from the webhook.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook: status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook: status %d: %s", e.StatusCode, e.Body)
}

// Discord posts messages to a Discord-compatible webhook.
type Discord struct {
	webhookURL string
	client     *http.Client
}

// NewDiscord creates a webhook notifier.
func NewDiscord(webhookURL string) (*Discord, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return nil, errors.New("discord: webhook url is required")
	}
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: discordTimeout},
	}, nil
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Deliver posts {"content": message}. Any 2xx status is success.
func (d *Discord) Deliver(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, discordTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", discordUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
