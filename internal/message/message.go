// Package message defines the core data types flowing through the thirdeye pipeline.
package message

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Mode is the user-selected operating intent. Exactly one mode is active at a time.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeScan      Mode = "scan"
	ModeRead      Mode = "read"
	ModeNavigate  Mode = "navigate"
	ModeEmergency Mode = "emergency"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeIdle, ModeScan, ModeRead, ModeNavigate, ModeEmergency}

// ParseMode converts a mode identifier (case-insensitive) into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Active reports whether m is a non-idle mode that drives analysis.
func (m Mode) Active() bool {
	return m != ModeIdle && m.Valid()
}

// Description returns a short human-readable name used in prompts and logs.
func (m Mode) Description() string {
	switch m {
	case ModeScan:
		return "environment scan"
	case ModeRead:
		return "read text"
	case ModeNavigate:
		return "path guidance"
	case ModeEmergency:
		return "emergency egress/help"
	default:
		return "idle"
	}
}

// BoundingBox is a labelled region in percent-of-frame coordinates (0..100).
type BoundingBox struct {
	Label      string   `json:"label"`
	XMin       float64  `json:"xmin"`
	YMin       float64  `json:"ymin"`
	XMax       float64  `json:"xmax"`
	YMax       float64  `json:"ymax"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Result is the canonical output of a single analysis cycle.
type Result struct {
	Text  string        `json:"text"`
	Boxes []BoundingBox `json:"boxes"`
}

// Request is a transient analysis request. It is never persisted.
type Request struct {
	// ID correlates log lines for one analysis cycle (UUID).
	ID string

	// Image is the JPEG-encoded still frame.
	Image []byte

	Mode Mode

	// Query is an optional free-text question that overrides the mode instruction.
	Query string
}

// HasQuery returns true if the request carries a user question.
func (r Request) HasQuery() bool {
	return strings.TrimSpace(r.Query) != ""
}

// ImageBase64 returns the image as standard base64 without a data URL prefix.
func (r Request) ImageBase64() string {
	return base64.StdEncoding.EncodeToString(r.Image)
}

// ImageDataURL returns the image as a base64 JPEG data URL.
func (r Request) ImageDataURL() string {
	return "data:image/jpeg;base64," + r.ImageBase64()
}

// Location is a geographic fix reported by the client device.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Voice is a speech-synthesis voice available on the client device.
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// Detection is a single object reported by the on-device detector, in pixels.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// DetectionBatch is one detector pass over a frame of the given size.
type DetectionBatch struct {
	FrameWidth  float64     `json:"frame_width"`
	FrameHeight float64     `json:"frame_height"`
	Items       []Detection `json:"items"`
}

// State is a snapshot of everything the client renders.
type State struct {
	Mode          Mode          `json:"mode"`
	Text          string        `json:"text"`
	Boxes         []BoundingBox `json:"boxes"`
	Detections    []BoundingBox `json:"detections"`
	TorchOn       bool          `json:"torch_on"`
	TorchOverride bool          `json:"torch_override"`
	InFlight      bool          `json:"in_flight"`
	Muted         bool          `json:"muted"`
}
