package emergency

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nadzzz/thirdeye/internal/config"
)

// WebhookSender posts alerts as JSON to an HTTP endpoint (an SMS gateway,
// a home automation hook, etc).
type WebhookSender struct {
	url    string
	client *resty.Client
}

// NewWebhookSender creates a sender. Token, when set, is sent as a bearer token.
func NewWebhookSender(cfg config.WebhookConfig, timeout time.Duration) *WebhookSender {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &WebhookSender{url: cfg.URL, client: client}
}

// Name returns the channel name.
func (s *WebhookSender) Name() string { return "webhook" }

type webhookPayload struct {
	Contact   string   `json:"contact"`
	Text      string   `json:"text"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	MapsURL   string   `json:"maps_url,omitempty"`
}

// Send posts the alert.
func (s *WebhookSender) Send(ctx context.Context, alert Alert) error {
	if s.url == "" {
		return fmt.Errorf("webhook url not configured")
	}

	payload := webhookPayload{Contact: alert.Contact, Text: alert.Text}
	if loc := alert.Location; loc != nil {
		payload.Latitude = &loc.Latitude
		payload.Longitude = &loc.Longitude
		payload.MapsURL = MapsURL(*loc)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook error (status %d): %s", resp.StatusCode(), resp.String())
	}
	return nil
}
