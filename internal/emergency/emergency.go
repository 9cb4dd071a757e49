// Package emergency sends the one-shot help message when Emergency mode is
// entered: the last known location is looked up and a message with a map
// link is delivered to the configured contact.
package emergency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/metrics"
)

// Alert is one outgoing emergency message.
type Alert struct {
	Contact  string
	Text     string
	Location *message.Location
}

// Sender delivers an alert over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// Publisher delivers events to clients. Publish must not block.
type Publisher interface {
	Publish(ev message.Event)
}

// Speaker is the speech output channel.
type Speaker interface {
	Speak(text string)
}

// LocationStore keeps the last location reported by the device.
type LocationStore struct {
	mu  sync.RWMutex
	loc *message.Location
}

// Set records a location fix.
func (s *LocationStore) Set(loc message.Location) {
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now()
	}
	s.mu.Lock()
	s.loc = &loc
	s.mu.Unlock()
}

// Get returns the last fix, or nil if none was reported.
func (s *LocationStore) Get() *message.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loc == nil {
		return nil
	}
	loc := *s.loc
	return &loc
}

// MapsURL links to loc on Google Maps.
func MapsURL(loc message.Location) string {
	return fmt.Sprintf("https://maps.google.com/?q=%.6f,%.6f", loc.Latitude, loc.Longitude)
}

// Compose fills the alert template (one %s verb) with a map link, or with
// unknown when no location is available.
func Compose(template, unknown string, loc *message.Location) string {
	place := unknown
	if loc != nil {
		place = MapsURL(*loc)
	}
	return fmt.Sprintf(template, place)
}

// Service runs the alert. A Service with no sender or no contact is disabled.
type Service struct {
	sender    Sender
	contact   string
	timeout   time.Duration
	locations *LocationStore
	msgs      locale.Messages
	pub       Publisher
	speaker   Speaker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates the alert service.
func NewService(sender Sender, contact string, timeout time.Duration, locations *LocationStore, msgs locale.Messages, pub Publisher, speaker Speaker) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		sender:    sender,
		contact:   contact,
		timeout:   timeout,
		locations: locations,
		msgs:      msgs,
		pub:       pub,
		speaker:   speaker,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enabled reports whether alerts will be sent.
func (s *Service) Enabled() bool {
	return s.sender != nil && s.contact != ""
}

// Activate sends the alert in the background.
func (s *Service) Activate(ctx context.Context) {
	if !s.Enabled() {
		metrics.EmergencyAlerts.WithLabelValues("disabled").Inc()
		slog.Info("emergency alert disabled, no contact configured")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Alert(s.ctx); err != nil {
			slog.Error("emergency alert failed", "error", err)
		}
	}()
}

// Alert composes and sends the alert, then reports the outcome to the user.
func (s *Service) Alert(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	loc := s.locations.Get()
	alert := Alert{
		Contact:  s.contact,
		Text:     Compose(s.msgs.EmergencyAlert, s.msgs.UnknownPlace, loc),
		Location: loc,
	}

	slog.Info("sending emergency alert", "channel", s.sender.Name(), "has_location", loc != nil)
	err := s.sender.Send(ctx, alert)

	text := s.msgs.AlertSent
	result := "sent"
	if err != nil {
		text = s.msgs.AlertFailed
		result = "failed"
	}
	metrics.EmergencyAlerts.WithLabelValues(result).Inc()

	ev := message.NewEvent(message.EventEmergency)
	ev.Mode = message.ModeEmergency
	ev.Text = text
	s.pub.Publish(ev)
	s.speaker.Speak(text)

	if err != nil {
		return fmt.Errorf("sending via %s: %w", s.sender.Name(), err)
	}
	return nil
}

// Close cancels pending alerts and waits for them to finish.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
