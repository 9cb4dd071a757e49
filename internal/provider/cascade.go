package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadzzz/thirdeye/internal/message"
)

// Attempt is the outcome of one provider call within a cascade run.
type Attempt struct {
	Provider string
	Duration time.Duration
	Err      error
}

// Cascade tries providers in order and returns the first success.
// It implements Provider itself so callers need not know how many backends exist.
type Cascade struct {
	providers []Provider
	observe   func(Attempt)
}

// NewCascade creates a cascade over providers in priority order.
// observe, if non-nil, is called after every attempt.
func NewCascade(providers []Provider, observe func(Attempt)) *Cascade {
	return &Cascade{providers: providers, observe: observe}
}

// Name returns the backend identifier.
func (c *Cascade) Name() string { return "cascade" }

// Providers returns the names of the providers in cascade order.
func (c *Cascade) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Analyze walks the providers until one succeeds. Every failure, whatever its
// type, advances to the next provider. When all fail the returned error joins
// the individual failures so callers can inspect them (e.g., IsRateLimited).
func (c *Cascade) Analyze(ctx context.Context, req message.Request) (message.Result, error) {
	if len(c.providers) == 0 {
		return message.Result{}, errors.New("no providers configured")
	}

	logger := slog.With("request_id", req.ID, "mode", req.Mode)

	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		result, err := p.Analyze(ctx, req)
		attempt := Attempt{Provider: p.Name(), Duration: time.Since(start), Err: err}
		if c.observe != nil {
			c.observe(attempt)
		}

		if err == nil {
			logger.Info("analysis succeeded", "provider", p.Name(), "duration", attempt.Duration, "boxes", len(result.Boxes))
			return result, nil
		}

		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			logger.Debug("provider skipped", "provider", p.Name(), "reason", cfgErr.Reason)
		} else {
			logger.Warn("provider failed, trying next", "provider", p.Name(), "status", StatusCode(err), "error", err)
		}
		errs = append(errs, err)
	}

	return message.Result{}, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// Close closes every provider and returns the joined errors.
func (c *Cascade) Close() error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
