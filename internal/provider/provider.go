// Package provider defines the interface for vision-capable analysis backends.
//
// A provider takes a still frame plus the active mode (and optionally a user
// question) and returns a normalized description. Thirdeye ships three
// backends: Gemini (primary), any OpenAI-compatible chat completions API such
// as Groq or OpenRouter (secondary), and a credential-free relay (tertiary).
// The Cascade tries them in order.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
)

// Provider is the interface every analysis backend implements.
//
// Analyze makes exactly one network call and does not retry. Failures are
// reported as *ConfigurationError, *TransportError or *EmptyResponseError.
type Provider interface {
	// Name returns the backend identifier (e.g., "gemini", "groq", "relay").
	Name() string

	// Analyze describes the request image for the request mode.
	Analyze(ctx context.Context, req message.Request) (message.Result, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Prompt is the instruction pair sent alongside the image.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt assembles the system and user instructions for a request.
// A question replaces the mode-specific task with a question-answering task.
func BuildPrompt(p locale.Prompts, req message.Request) Prompt {
	var sb strings.Builder
	sb.WriteString(p.Base)

	if req.HasQuery() {
		q := strings.TrimSpace(req.Query)
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf(p.Question, q))
		return Prompt{
			System: sb.String(),
			User:   fmt.Sprintf(p.UserQuestion, q),
		}
	}

	if task := p.Modes[string(req.Mode)]; task != "" {
		sb.WriteString("\n")
		sb.WriteString(task)
	}
	return Prompt{
		System: sb.String(),
		User:   fmt.Sprintf(p.UserDescribe, req.Mode),
	}
}
