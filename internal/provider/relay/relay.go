// Package relay implements the last-resort provider: a self-hosted analysis
// relay that holds its own upstream credentials, so the device needs none.
//
// The relay accepts {"image": <data URL>, "mode": ..., "query": ...} and
// answers {"content": "<model reply>"}.
package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/normalize"
	"github.com/nadzzz/thirdeye/internal/provider"
)

// Provider posts frames to a relay endpoint.
type Provider struct {
	name     string
	endpoint string
	client   *resty.Client
}

// New creates a relay provider from config. APIKey is optional and, when set,
// is sent as a bearer token.
func New(cfg config.ProviderConfig) *Provider {
	name := cfg.Name
	if name == "" {
		name = "relay"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Provider{
		name:     name,
		endpoint: cfg.Endpoint,
		client:   client,
	}
}

// Name returns the backend identifier.
func (p *Provider) Name() string { return p.name }

// Analyze posts the frame to the relay.
func (p *Provider) Analyze(ctx context.Context, req message.Request) (message.Result, error) {
	if p.endpoint == "" {
		return message.Result{}, &provider.ConfigurationError{Provider: p.name, Reason: "endpoint missing"}
	}

	slog.Debug("relay request", "provider", p.name, "request_id", req.ID, "endpoint", p.endpoint)

	var out analyzeResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(analyzeRequest{
			Image: req.ImageDataURL(),
			Mode:  string(req.Mode),
			Query: strings.TrimSpace(req.Query),
		}).
		SetResult(&out).
		Post(p.endpoint)
	if err != nil {
		return message.Result{}, &provider.TransportError{Provider: p.name, Err: err}
	}
	if resp.IsError() {
		return message.Result{}, &provider.TransportError{
			Provider:   p.name,
			StatusCode: resp.StatusCode(),
			Body:       provider.TruncateBody(resp.String()),
		}
	}

	if strings.TrimSpace(out.Content) == "" {
		return message.Result{}, &provider.EmptyResponseError{Provider: p.name}
	}
	return normalize.Response(out.Content), nil
}

// Close is a no-op for the relay provider.
func (p *Provider) Close() error { return nil }

type analyzeRequest struct {
	Image string `json:"image"`
	Mode  string `json:"mode"`
	Query string `json:"query,omitempty"`
}

type analyzeResponse struct {
	Content string `json:"content"`
}
