package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/message"
)

func TestNewDefaults(t *testing.T) {
	tr := New(config.MQTTConfig{Broker: "tcp://localhost:1883"})
	assert.Equal(t, "thirdeye/events", tr.topic(topicEvents))
	assert.Contains(t, tr.clientID, "thirdeye-")

	tr = New(config.MQTTConfig{TopicPrefix: "home/glasses/", ClientID: "glasses-01"})
	assert.Equal(t, "home/glasses/commands", tr.topic(topicCommands))
	assert.Equal(t, "glasses-01", tr.clientID)
}

func TestDecode(t *testing.T) {
	tr := New(config.MQTTConfig{TopicPrefix: "te"})

	cmd, err := tr.decode("te/commands", []byte(`{"kind":"select_mode","mode":"read"}`))
	require.NoError(t, err)
	assert.Equal(t, message.CommandSelectMode, cmd.Kind)
	assert.Equal(t, message.ModeRead, cmd.Mode)

	cmd, err = tr.decode("te/frames", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	assert.Equal(t, message.CommandFrame, cmd.Kind)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, cmd.Frame)

	_, err = tr.decode("te/commands", []byte(`{`))
	assert.ErrorContains(t, err, "invalid command json")

	_, err = tr.decode("te/other", nil)
	assert.ErrorContains(t, err, "unexpected topic")
}

func TestOnMessage(t *testing.T) {
	tr := New(config.MQTTConfig{})

	var got []*message.Command
	handler := func(_ context.Context, cmd *message.Command) (*message.State, error) {
		got = append(got, cmd)
		return &message.State{}, nil
	}

	tr.onMessage(context.Background(), "thirdeye/commands", []byte(`{"kind":"describe"}`), handler)
	tr.onMessage(context.Background(), "thirdeye/commands", []byte(`{"kind":"ask"}`), handler)
	tr.onMessage(context.Background(), "thirdeye/commands", []byte(`nope`), handler)

	require.Len(t, got, 1, "invalid commands never reach the handler")
	assert.Equal(t, message.CommandDescribe, got[0].Kind)
	assert.Equal(t, "mqtt", got[0].Source)
}

func TestPublishWithoutConnection(t *testing.T) {
	tr := New(config.MQTTConfig{})
	err := tr.Publish(context.Background(), message.NewEvent(message.EventText))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, tr.Close())
}
