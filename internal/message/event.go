package message

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// EventType identifies an outgoing event pushed to connected clients.
type EventType string

const (
	// EventMode announces a mode transition.
	EventMode EventType = "mode"

	// EventText replaces the displayed text (placeholder, idle prompt, failure message).
	EventText EventType = "text"

	// EventResult carries a fresh analysis result: text and overlay boxes.
	EventResult EventType = "result"

	// EventSpeak asks the client to speak Text, preempting anything currently spoken.
	EventSpeak EventType = "speak"

	// EventSpeechStop asks the client to stop speaking.
	EventSpeechStop EventType = "speech_stop"

	// EventTorch asks the client to switch its torch.
	EventTorch EventType = "torch"

	// EventDetections carries detector boxes merged into the overlay.
	EventDetections EventType = "detections"

	// EventEmergency reports the outcome of the emergency alert.
	EventEmergency EventType = "emergency"
)

// Event is an outgoing notification fanned out to every transport.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Mode      Mode          `json:"mode,omitempty"`
	Text      string        `json:"text,omitempty"`
	Boxes     []BoundingBox `json:"boxes,omitempty"`
	TorchOn   *bool         `json:"torch_on,omitempty"`
	Voice     string        `json:"voice,omitempty"`
	Lang      string        `json:"lang,omitempty"`
	Rate      float64       `json:"rate,omitempty"`
	Pitch     float64       `json:"pitch,omitempty"`
	Timestamp time.Time     `json:"timestamp"`

	// Audio is synthesized speech as a base64-encoded string, when server-side TTS is enabled.
	Audio string `json:"audio,omitempty"`

	// AudioContentType is the MIME type of Audio (e.g., "audio/wav").
	AudioContentType string `json:"audio_content_type,omitempty"`
}

// NewEvent creates an event of the given type with a fresh ID and timestamp.
func NewEvent(t EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
	}
}

// SetAudioBytes base64-encodes raw audio bytes into Audio.
func (e *Event) SetAudioBytes(audio []byte) {
	if len(audio) > 0 {
		e.Audio = base64.StdEncoding.EncodeToString(audio)
	}
}
