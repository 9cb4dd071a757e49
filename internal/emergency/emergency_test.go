package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
)

var msgs = locale.Messages{
	EmergencyAlert: "EMERGENCY! My location: %s",
	UnknownPlace:   "unknown",
	AlertSent:      "Emergency message sent.",
	AlertFailed:    "Could not send the emergency message.",
}

var istanbul = message.Location{Latitude: 41.008238, Longitude: 28.978359}

func TestCompose(t *testing.T) {
	assert.Equal(t, "EMERGENCY! My location: https://maps.google.com/?q=41.008238,28.978359",
		Compose(msgs.EmergencyAlert, msgs.UnknownPlace, &istanbul))
	assert.Equal(t, "EMERGENCY! My location: unknown", Compose(msgs.EmergencyAlert, msgs.UnknownPlace, nil))
}

func TestLocationStore(t *testing.T) {
	var s LocationStore
	assert.Nil(t, s.Get())

	s.Set(istanbul)
	got := s.Get()
	require.NotNil(t, got)
	assert.InDelta(t, istanbul.Latitude, got.Latitude, 1e-9)
	assert.False(t, got.Timestamp.IsZero())

	got.Latitude = 0
	assert.InDelta(t, istanbul.Latitude, s.Get().Latitude, 1e-9, "Get returns a copy")
}

type fakeSender struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(_ context.Context, a Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.err
}

func (f *fakeSender) sent() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Alert(nil), f.alerts...)
}

type recorder struct {
	mu     sync.Mutex
	events []message.Event
	spoken []string
}

func (r *recorder) Publish(ev message.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Speak(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoken = append(r.spoken, text)
}

func TestActivateSendsInBackground(t *testing.T) {
	sender := &fakeSender{}
	rec := &recorder{}
	locs := &LocationStore{}
	locs.Set(istanbul)

	s := NewService(sender, "123456", time.Second, locs, msgs, rec, rec)
	s.Activate(context.Background())
	s.Close()

	alerts := sender.sent()
	require.Len(t, alerts, 1)
	assert.Equal(t, "123456", alerts[0].Contact)
	assert.Contains(t, alerts[0].Text, "maps.google.com/?q=41.008238,28.978359")

	require.Len(t, rec.events, 1)
	assert.Equal(t, message.EventEmergency, rec.events[0].Type)
	assert.Equal(t, msgs.AlertSent, rec.events[0].Text)
	assert.Equal(t, []string{msgs.AlertSent}, rec.spoken)
}

func TestAlertFailureIsReported(t *testing.T) {
	sender := &fakeSender{err: errors.New("network down")}
	rec := &recorder{}
	s := NewService(sender, "123456", time.Second, &LocationStore{}, msgs, rec, rec)
	defer s.Close()

	err := s.Alert(context.Background())
	assert.ErrorContains(t, err, "network down")
	assert.Equal(t, []string{msgs.AlertFailed}, rec.spoken)
	assert.Equal(t, "EMERGENCY! My location: unknown", sender.sent()[0].Text)
}

func TestDisabledWithoutContact(t *testing.T) {
	sender := &fakeSender{}
	rec := &recorder{}
	s := NewService(sender, "", time.Second, &LocationStore{}, msgs, rec, rec)

	assert.False(t, s.Enabled())
	s.Activate(context.Background())
	s.Close()
	assert.Empty(t, sender.sent())
	assert.Empty(t, rec.events)

	assert.False(t, NewService(nil, "123", 0, &LocationStore{}, msgs, rec, rec).Enabled())
}

type mockBot struct{ mock.Mock }

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func newTelegram(bot botAPI) *TelegramSender {
	s := NewTelegramSender(config.TelegramConfig{Token: "123:abc"}, time.Second)
	s.newBot = func(string, string, *http.Client) (botAPI, error) { return bot, nil }
	return s
}

func TestTelegramSendsTextAndPin(t *testing.T) {
	bot := &mockBot{}
	bot.On("Send", tgbotapi.NewMessage(42, "help")).Return(nil).Once()
	bot.On("Send", tgbotapi.NewLocation(42, istanbul.Latitude, istanbul.Longitude)).Return(nil).Once()

	err := newTelegram(bot).Send(context.Background(), Alert{Contact: "42", Text: "help", Location: &istanbul})
	require.NoError(t, err)
	bot.AssertExpectations(t)
}

func TestTelegramChannelContact(t *testing.T) {
	bot := &mockBot{}
	bot.On("Send", tgbotapi.NewMessageToChannel("@family", "help")).Return(nil).Once()

	err := newTelegram(bot).Send(context.Background(), Alert{Contact: "@family", Text: "help", Location: &istanbul})
	require.NoError(t, err)
	bot.AssertExpectations(t)
}

func TestTelegramErrors(t *testing.T) {
	bot := &mockBot{}
	bot.On("Send", mock.Anything).Return(errors.New("Forbidden: bot was blocked by the user"))

	err := newTelegram(bot).Send(context.Background(), Alert{Contact: "42", Text: "help"})
	assert.ErrorContains(t, err, "blocked")

	err = newTelegram(bot).Send(context.Background(), Alert{Contact: "mom", Text: "help"})
	assert.ErrorContains(t, err, "invalid telegram contact")

	noToken := NewTelegramSender(config.TelegramConfig{}, time.Second)
	err = noToken.Send(context.Background(), Alert{Contact: "42", Text: "help"})
	assert.ErrorContains(t, err, "token not configured")
}

func TestWebhookSend(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhookSender(config.WebhookConfig{URL: srv.URL, Token: "s3cret"}, time.Second)
	require.NoError(t, s.Send(context.Background(), Alert{Contact: "+905551112233", Text: "help", Location: &istanbul}))

	assert.Equal(t, "+905551112233", got.Contact)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, istanbul.Latitude, *got.Latitude, 1e-9)
	assert.Equal(t, MapsURL(istanbul), got.MapsURL)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSender(config.WebhookConfig{URL: srv.URL}, time.Second).Send(context.Background(), Alert{Text: "help"})
	assert.ErrorContains(t, err, "status 502")

	err = NewWebhookSender(config.WebhookConfig{}, time.Second).Send(context.Background(), Alert{Text: "help"})
	assert.Error(t, err)
}
