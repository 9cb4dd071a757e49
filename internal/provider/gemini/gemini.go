// Package gemini implements the primary provider using Google's Gemini API
// through the official generative-ai-go SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/normalize"
	"github.com/nadzzz/thirdeye/internal/provider"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = "gemini-2.0-flash"

// Provider calls Gemini generateContent with the frame as inline image data.
type Provider struct {
	name    string
	cfg     config.ProviderConfig
	prompts locale.Prompts
	limiter *rate.Limiter
	client  *genai.Client // nil when no API key is configured
}

// New creates a Gemini provider. Without an API key the provider is still
// returned but every call fails with a ConfigurationError.
func New(ctx context.Context, cfg config.ProviderConfig, prompts locale.Prompts, opts ...option.ClientOption) (*Provider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	// Space calls by MinInterval to stay under per-minute quotas.
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	p := &Provider{
		name:    cfg.Name,
		cfg:     cfg,
		prompts: prompts,
		limiter: rate.NewLimiter(limit, 1),
	}
	if p.name == "" {
		p.name = "gemini"
	}

	if cfg.APIKey == "" {
		slog.Warn("gemini api key missing, provider disabled", "provider", p.name)
		return p, nil
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// Name returns the backend identifier.
func (p *Provider) Name() string { return p.name }

// Analyze sends the frame and mode instruction to Gemini.
func (p *Provider) Analyze(ctx context.Context, req message.Request) (message.Result, error) {
	if p.client == nil {
		return message.Result{}, &provider.ConfigurationError{Provider: p.name, Reason: "api key missing"}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return message.Result{}, &provider.TransportError{Provider: p.name, Err: fmt.Errorf("waiting for rate limiter: %w", err)}
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	prompt := provider.BuildPrompt(p.prompts, req)

	model := p.client.GenerativeModel(p.cfg.Model)
	model.SetTemperature(float32(p.cfg.Temperature))
	model.SetMaxOutputTokens(int32(p.cfg.MaxTokens))
	if p.cfg.JSONMode {
		model.ResponseMIMEType = "application/json"
	}
	model.SystemInstruction = genai.NewUserContent(genai.Text(prompt.System))

	slog.Debug("gemini request", "request_id", req.ID, "model", p.cfg.Model, "image_bytes", len(req.Image))

	resp, err := model.GenerateContent(ctx, genai.ImageData("jpeg", req.Image), genai.Text(prompt.User))
	if err != nil {
		return message.Result{}, p.transportError(err)
	}

	content := responseText(resp)
	if strings.TrimSpace(content) == "" {
		return message.Result{}, &provider.EmptyResponseError{Provider: p.name}
	}
	return normalize.Response(content), nil
}

// Close releases the underlying SDK client.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// transportError keeps the HTTP status when the SDK surfaces one.
func (p *Provider) transportError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			body = apiErr.Body
		}
		return &provider.TransportError{
			Provider:   p.name,
			StatusCode: apiErr.Code,
			Body:       provider.TruncateBody(body),
			Err:        err,
		}
	}
	return &provider.TransportError{Provider: p.name, Err: err}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}
