// Package openai implements the Provider interface for any OpenAI-compatible
// Chat Completions API that accepts image_url content parts (Groq,
// OpenRouter, OpenAI, vLLM).
package openai

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/normalize"
	"github.com/nadzzz/thirdeye/internal/provider"
)

// Provider sends the frame as an image_url content part to /chat/completions.
type Provider struct {
	name    string
	cfg     config.ProviderConfig
	prompts locale.Prompts
	client  *resty.Client
}

// New creates an OpenAI-compatible provider from config.
func New(cfg config.ProviderConfig, prompts locale.Prompts) *Provider {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Provider{
		name:    name,
		cfg:     cfg,
		prompts: prompts,
		client:  client,
	}
}

// Name returns the backend identifier.
func (p *Provider) Name() string { return p.name }

// Analyze sends the frame and instructions to the Chat Completions API.
func (p *Provider) Analyze(ctx context.Context, req message.Request) (message.Result, error) {
	if p.cfg.APIKey == "" {
		return message.Result{}, &provider.ConfigurationError{Provider: p.name, Reason: "api key missing"}
	}
	if p.cfg.Endpoint == "" {
		return message.Result{}, &provider.ConfigurationError{Provider: p.name, Reason: "endpoint missing"}
	}

	prompt := provider.BuildPrompt(p.prompts, req)

	body := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: prompt.User},
				{Type: "image_url", ImageURL: &imageURL{URL: req.ImageDataURL()}},
			}},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	if p.cfg.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	slog.Debug("chat completion request", "provider", p.name, "request_id", req.ID, "model", p.cfg.Model, "image_bytes", len(req.Image))

	var out chatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
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

	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return message.Result{}, &provider.EmptyResponseError{Provider: p.name}
	}
	return normalize.Response(out.Choices[0].Message.Content), nil
}

// Close is a no-op; the HTTP client holds no per-provider resources.
func (p *Provider) Close() error { return nil }

// --- Internal types ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
}

// chatMessage content is either a string or a list of content parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
