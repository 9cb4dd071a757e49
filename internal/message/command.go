package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CommandKind identifies what a Command asks the daemon to do.
type CommandKind string

const (
	CommandSelectMode CommandKind = "select_mode"
	CommandStop       CommandKind = "stop"
	CommandDescribe   CommandKind = "describe"
	CommandAsk        CommandKind = "ask"
	CommandTorch      CommandKind = "torch"
	CommandUtterance  CommandKind = "utterance"
	CommandFrame      CommandKind = "frame"
	CommandBrightness CommandKind = "brightness"
	CommandLocation   CommandKind = "location"
	CommandVoices     CommandKind = "voices"
	CommandDetections CommandKind = "detections"
	CommandFocusBox   CommandKind = "focus_box"
	CommandMute       CommandKind = "mute"
	CommandState      CommandKind = "state"
)

// Command is an incoming request from any transport. Only the fields
// relevant to Kind are read.
type Command struct {
	// ID is a unique identifier for this command (UUID).
	ID string `json:"id,omitempty"`

	// Source identifies the sender (e.g., "phone-ayse", "glasses-01").
	Source string `json:"source,omitempty"`

	Kind CommandKind `json:"kind"`

	// Mode is the requested mode for select_mode.
	Mode Mode `json:"mode,omitempty"`

	// Text carries the utterance for utterance and the question for ask.
	Text string `json:"text,omitempty"`

	// On is the requested state for torch and mute.
	On *bool `json:"on,omitempty"`

	// Brightness is a luma sample (0..255) for brightness.
	Brightness *float64 `json:"brightness,omitempty"`

	// Frame is a JPEG still for frame. Base64 in JSON.
	Frame []byte `json:"frame,omitempty"`

	Location   *Location       `json:"location,omitempty"`
	Voices     []Voice         `json:"voices,omitempty"`
	Detections *DetectionBatch `json:"detections,omitempty"`
	Box        *BoundingBox    `json:"box,omitempty"`

	// Timestamp is when the command was received by thirdeye.
	Timestamp time.Time `json:"timestamp"`
}

// Stamp fills in ID and Timestamp if the sender left them empty.
func (c *Command) Stamp(source string) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Source == "" {
		c.Source = source
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
}

// Validate checks that the fields required by Kind are present.
func (c *Command) Validate() error {
	switch c.Kind {
	case CommandStop, CommandDescribe, CommandState:
		return nil
	case CommandSelectMode:
		if !c.Mode.Valid() {
			return fmt.Errorf("select_mode: unknown mode %q", c.Mode)
		}
	case CommandAsk, CommandUtterance:
		if c.Text == "" {
			return fmt.Errorf("%s: text is required", c.Kind)
		}
	case CommandTorch, CommandMute:
		if c.On == nil {
			return fmt.Errorf("%s: on is required", c.Kind)
		}
	case CommandFrame:
		if len(c.Frame) == 0 {
			return fmt.Errorf("frame: empty image")
		}
	case CommandBrightness:
		if c.Brightness == nil {
			return fmt.Errorf("brightness: value is required")
		}
	case CommandLocation:
		if c.Location == nil {
			return fmt.Errorf("location: coordinates are required")
		}
	case CommandVoices:
		return nil
	case CommandDetections:
		if c.Detections == nil {
			return fmt.Errorf("detections: batch is required")
		}
	case CommandFocusBox:
		if c.Box == nil {
			return fmt.Errorf("focus_box: box is required")
		}
	default:
		return fmt.Errorf("unknown command kind %q", c.Kind)
	}
	return nil
}
