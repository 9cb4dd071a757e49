// Package transport defines the interface for pluggable client transports.
//
// Each transport (gRPC, HTTP/WebSocket, MQTT) accepts commands from client
// devices and pushes events back to them. The app doesn't care how commands
// arrive; it only works with the Transport contract.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/metrics"
)

// Handler processes an incoming command and returns the resulting state.
// The app provides this handler to each transport.
type Handler func(ctx context.Context, cmd *message.Command) (*message.State, error)

// ErrBadCommand marks handler errors caused by the content of the command
// (missing fields, unknown mode, undecodable frame). Transports report them
// as client errors.
var ErrBadCommand = errors.New("bad command")

// Prepare stamps and validates an incoming command before it reaches the handler.
func Prepare(cmd *message.Command, transport string) error {
	cmd.Stamp(transport)
	metrics.CommandsReceived.WithLabelValues(transport, string(cmd.Kind)).Inc()
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadCommand, err)
	}
	return nil
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http", "mqtt").
	Name() string

	// Listen starts accepting commands and passes them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Publish pushes an event to every client connected through this transport.
	Publish(ctx context.Context, ev message.Event) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// Hub fans events out to every transport. Publish never blocks the caller;
// events are delivered in order by a single goroutine started with Run.
type Hub struct {
	events     chan message.Event
	transports []Transport
}

// NewHub creates a hub with room for buffer pending events.
func NewHub(buffer int, transports ...Transport) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{events: make(chan message.Event, buffer), transports: transports}
}

// Publish queues ev for delivery. When the queue is full the event is dropped.
func (h *Hub) Publish(ev message.Event) {
	select {
	case h.events <- ev:
	default:
		metrics.EventsDropped.WithLabelValues("hub").Inc()
		slog.Warn("event queue full, dropping event", "type", ev.Type, "id", ev.ID)
	}
}

// Run delivers queued events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-h.events:
			for _, t := range h.transports {
				if err := t.Publish(ctx, ev); err != nil {
					slog.Warn("event publish failed", "transport", t.Name(), "type", ev.Type, "error", err)
				}
			}
		}
	}
}

// Subscribers is a set of event streams held by one transport (websocket
// connections, gRPC Events calls). Slow subscribers lose events rather than
// stalling the others.
type Subscribers struct {
	transport string
	buffer    int

	mu   sync.Mutex
	subs map[chan message.Event]struct{}
}

// NewSubscribers creates an empty set for the named transport.
func NewSubscribers(transport string, buffer int) *Subscribers {
	if buffer <= 0 {
		buffer = 32
	}
	return &Subscribers{transport: transport, buffer: buffer, subs: make(map[chan message.Event]struct{})}
}

// Subscribe registers a new stream. The cancel func unregisters it and closes the channel.
func (s *Subscribers) Subscribe() (<-chan message.Event, func()) {
	ch := make(chan message.Event, s.buffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	n := len(s.subs)
	s.mu.Unlock()
	metrics.ConnectedClients.WithLabelValues(s.transport).Set(float64(n))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			n := len(s.subs)
			close(ch)
			s.mu.Unlock()
			metrics.ConnectedClients.WithLabelValues(s.transport).Set(float64(n))
		})
	}
}

// Broadcast offers ev to every subscriber without blocking.
func (s *Subscribers) Broadcast(ev message.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			metrics.EventsDropped.WithLabelValues(s.transport).Inc()
		}
	}
}

// Len returns the number of subscribers.
func (s *Subscribers) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
