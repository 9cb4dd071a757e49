// Package mqtt implements the MQTT transport for thirdeye.
//
// MQTT suits wearables and camera modules on flaky links. The transport
// subscribes to <prefix>/commands (JSON command envelopes) and
// <prefix>/frames (raw JPEG payloads), publishes every event to
// <prefix>/events and the state after each command, retained, to
// <prefix>/state.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/transport"
)

const (
	topicCommands = "commands"
	topicFrames   = "frames"
	topicEvents   = "events"
	topicState    = "state"

	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned by Publish while the broker connection is down.
var ErrNotConnected = errors.New("mqtt: not connected")

// Transport implements transport.Transport over MQTT.
type Transport struct {
	broker   string
	prefix   string
	clientID string
	username string
	password string

	mu     sync.Mutex
	client paho.Client
}

// New creates a new MQTT transport.
func New(cfg config.MQTTConfig) *Transport {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "thirdeye-" + uuid.NewString()[:8]
	}
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "thirdeye"
	}
	return &Transport{
		broker:   cfg.Broker,
		prefix:   prefix,
		clientID: clientID,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "mqtt" }

func (t *Transport) topic(name string) string {
	return t.prefix + "/" + name
}

// Listen connects to the MQTT broker and subscribes to the command topics.
// Lost connections are re-established and resubscribed by the client.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	opts := paho.NewClientOptions().
		AddBroker(t.broker).
		SetClientID(t.clientID).
		SetUsername(t.username).
		SetPassword(t.password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			slog.Warn("mqtt connection lost", "broker", t.broker, "error", err)
		}).
		SetOnConnectHandler(func(c paho.Client) {
			t.subscribe(ctx, c, handler)
		})

	client := paho.NewClient(opts)
	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	slog.Info("mqtt transport connecting", "broker", t.broker, "prefix", t.prefix, "client_id", t.clientID)
	tok := client.Connect()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	slog.Info("mqtt transport shutting down")
	client.Disconnect(250)
	return nil
}

func (t *Transport) subscribe(ctx context.Context, c paho.Client, handler transport.Handler) {
	filters := map[string]byte{
		t.topic(topicCommands): 1,
		t.topic(topicFrames):   0,
	}
	tok := c.SubscribeMultiple(filters, func(_ paho.Client, m paho.Message) {
		t.onMessage(ctx, m.Topic(), m.Payload(), handler)
	})
	if !tok.WaitTimeout(publishTimeout) {
		slog.Error("mqtt subscribe timed out", "prefix", t.prefix)
		return
	}
	if err := tok.Error(); err != nil {
		slog.Error("mqtt subscribe failed", "prefix", t.prefix, "error", err)
		return
	}
	slog.Info("mqtt transport listening", "broker", t.broker, "prefix", t.prefix)
}

func (t *Transport) onMessage(ctx context.Context, topic string, payload []byte, handler transport.Handler) {
	cmd, err := t.decode(topic, payload)
	if err != nil {
		slog.Warn("mqtt: dropping message", "topic", topic, "error", err)
		return
	}
	if err := transport.Prepare(cmd, t.Name()); err != nil {
		slog.Warn("mqtt: invalid command", "topic", topic, "error", err)
		return
	}

	state, err := handler(ctx, cmd)
	if err != nil {
		slog.Error("command failed", "kind", cmd.Kind, "id", cmd.ID, "error", err)
		return
	}
	if err := t.publishJSON(t.topic(topicState), 1, true, state); err != nil {
		slog.Debug("mqtt: state publish failed", "error", err)
	}
}

// decode turns a message on one of the subscribed topics into a command.
func (t *Transport) decode(topic string, payload []byte) (*message.Command, error) {
	switch topic {
	case t.topic(topicCommands):
		var cmd message.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return nil, fmt.Errorf("invalid command json: %w", err)
		}
		return &cmd, nil
	case t.topic(topicFrames):
		return &message.Command{Kind: message.CommandFrame, Frame: payload}, nil
	default:
		return nil, fmt.Errorf("unexpected topic %q", topic)
	}
}

// Publish sends ev to <prefix>/events.
func (t *Transport) Publish(_ context.Context, ev message.Event) error {
	return t.publishJSON(t.topic(topicEvents), 0, false, ev)
}

func (t *Transport) publishJSON(topic string, qos byte, retained bool, v any) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqtt: encoding payload: %w", err)
	}
	tok := client.Publish(topic, qos, retained, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	return tok.Error()
}

// Close disconnects from the MQTT broker.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil && t.client.IsConnected() {
		t.client.Disconnect(250)
	}
	return nil
}
