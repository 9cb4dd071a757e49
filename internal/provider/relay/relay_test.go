package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/provider"
)

func TestAnalyzeSuccess(t *testing.T) {
	var got analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(analyzeResponse{Content: `{"speech": "Sağda bir kapı var.", "boxes": []}`})
	}))
	defer srv.Close()

	p := New(config.ProviderConfig{Endpoint: srv.URL + "/api/analyze"})
	res, err := p.Analyze(context.Background(), message.Request{Mode: message.ModeNavigate, Image: []byte{0xff, 0xd8, 0xff}, Query: " kapı nerede? "})
	require.NoError(t, err)

	assert.Equal(t, "Sağda bir kapı var.", res.Text)
	assert.Equal(t, "relay", p.Name())
	assert.Equal(t, "navigate", got.Mode)
	assert.Equal(t, "kapı nerede?", got.Query)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", got.Image)
}

func TestAnalyzeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte("payload too large"))
	}))
	defer srv.Close()

	_, err := New(config.ProviderConfig{Endpoint: srv.URL}).Analyze(context.Background(), message.Request{Mode: message.ModeScan})
	assert.Equal(t, http.StatusRequestEntityTooLarge, provider.StatusCode(err))
}

func TestAnalyzeEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": ""}`))
	}))
	defer srv.Close()

	_, err := New(config.ProviderConfig{Endpoint: srv.URL}).Analyze(context.Background(), message.Request{Mode: message.ModeScan})
	var empty *provider.EmptyResponseError
	assert.ErrorAs(t, err, &empty)
}

func TestAnalyzeWithoutEndpoint(t *testing.T) {
	_, err := New(config.ProviderConfig{Name: "backup"}).Analyze(context.Background(), message.Request{})
	var cfgErr *provider.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "backup", cfgErr.Provider)
}
