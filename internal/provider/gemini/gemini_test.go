package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/provider"
)

func prompts(t *testing.T) locale.Prompts {
	t.Helper()
	l, err := locale.Load("tr")
	require.NoError(t, err)
	return l.Prompts
}

func TestAnalyzeWithoutKeyIsConfigurationError(t *testing.T) {
	p, err := New(context.Background(), config.ProviderConfig{Name: "gemini"}, prompts(t))
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Analyze(context.Background(), message.Request{Mode: message.ModeScan, Image: []byte{0xff, 0xd8}})
	var cfgErr *provider.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "gemini", cfgErr.Provider)
}

func TestNewDefaults(t *testing.T) {
	p, err := New(context.Background(), config.ProviderConfig{}, prompts(t))
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, DefaultModel, p.cfg.Model)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{
				genai.Text(`{"speech": "Merdiven`),
				genai.Text(` var."}`),
			}}},
		},
	}
	assert.Equal(t, `{"speech": "Merdiven var."}`, responseText(resp))
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
}

func TestTransportErrorKeepsStatus(t *testing.T) {
	p := &Provider{name: "gemini"}

	err := p.transportError(&googleapi.Error{Code: 429, Message: "Resource has been exhausted"})
	assert.True(t, provider.IsRateLimited(err))
	assert.Contains(t, err.Error(), "status 429")

	err = p.transportError(context.DeadlineExceeded)
	assert.Equal(t, 0, provider.StatusCode(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
