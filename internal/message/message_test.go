package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("  Read ")
	require.NoError(t, err)
	assert.Equal(t, ModeRead, m)

	_, err = ParseMode("dance")
	assert.Error(t, err)
}

func TestModeActive(t *testing.T) {
	assert.False(t, ModeIdle.Active())
	assert.False(t, Mode("bogus").Active())
	for _, m := range []Mode{ModeScan, ModeRead, ModeNavigate, ModeEmergency} {
		assert.True(t, m.Active(), m)
	}
}

func TestRequestImageDataURL(t *testing.T) {
	req := Request{Image: []byte{0xff, 0xd8, 0xff}}
	assert.Equal(t, "data:image/jpeg;base64,/9j/", req.ImageDataURL())
}

func TestCommandValidate(t *testing.T) {
	on := true
	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"stop", Command{Kind: CommandStop}, false},
		{"select valid", Command{Kind: CommandSelectMode, Mode: ModeScan}, false},
		{"select unknown", Command{Kind: CommandSelectMode, Mode: "x"}, true},
		{"ask without text", Command{Kind: CommandAsk}, true},
		{"torch", Command{Kind: CommandTorch, On: &on}, false},
		{"torch without state", Command{Kind: CommandTorch}, true},
		{"empty frame", Command{Kind: CommandFrame}, true},
		{"unknown", Command{Kind: "launch"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommandStamp(t *testing.T) {
	cmd := Command{Kind: CommandStop}
	cmd.Stamp("http")
	assert.NotEmpty(t, cmd.ID)
	assert.Equal(t, "http", cmd.Source)
	assert.False(t, cmd.Timestamp.IsZero())

	cmd2 := Command{Kind: CommandStop, ID: "fixed", Source: "phone"}
	cmd2.Stamp("http")
	assert.Equal(t, "fixed", cmd2.ID)
	assert.Equal(t, "phone", cmd2.Source)
}
