// Package normalize turns raw model replies into a canonical message.Result.
//
// Vision models are asked for {"speech": "...", "boxes": [...]} but routinely
// wrap it in markdown fences, prepend prose, rename fields or return plain
// text. Response is total: whatever comes in, a well-formed Result comes out.
package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/nadzzz/thirdeye/internal/message"
)

var (
	fencePattern  = regexp.MustCompile("```[A-Za-z0-9_-]*")
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// Response parses a raw provider reply. Text comes from "speech", then "text",
// then the reply itself with fences removed. Boxes default to empty.
func Response(raw string) message.Result {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
	result := message.Result{Text: cleaned, Boxes: []message.BoundingBox{}}

	span := objectPattern.FindString(cleaned)
	if span == "" {
		return result
	}

	var payload struct {
		Speech json.RawMessage `json:"speech"`
		Text   json.RawMessage `json:"text"`
		Boxes  json.RawMessage `json:"boxes"`
	}
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return result
	}

	if s := stringField(payload.Speech); s != "" {
		result.Text = s
	} else if s := stringField(payload.Text); s != "" {
		result.Text = s
	}
	result.Boxes = Boxes(payload.Boxes)
	return result
}

// Boxes decodes a JSON array of boxes, skipping entries that are malformed
// or degenerate. Anything that is not an array yields an empty slice.
func Boxes(raw json.RawMessage) []message.BoundingBox {
	out := []message.BoundingBox{}
	if len(raw) == 0 {
		return out
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}

	for _, item := range items {
		var b struct {
			Label      string   `json:"label"`
			XMin       *float64 `json:"xmin"`
			YMin       *float64 `json:"ymin"`
			XMax       *float64 `json:"xmax"`
			YMax       *float64 `json:"ymax"`
			Confidence *float64 `json:"confidence"`
		}
		if err := json.Unmarshal(item, &b); err != nil {
			continue
		}
		if b.XMin == nil || b.YMin == nil || b.XMax == nil || b.YMax == nil {
			continue
		}
		box, ok := Box(message.BoundingBox{
			Label:      strings.TrimSpace(b.Label),
			XMin:       *b.XMin,
			YMin:       *b.YMin,
			XMax:       *b.XMax,
			YMax:       *b.YMax,
			Confidence: b.Confidence,
		})
		if ok {
			out = append(out, box)
		}
	}
	return out
}

// Box enforces the box invariants: coordinates clamped to [0,100], min/max
// reordered when inverted, confidence clamped to [0,1]. Boxes with NaN
// coordinates or zero area after clamping are rejected.
func Box(b message.BoundingBox) (message.BoundingBox, bool) {
	for _, v := range []float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) {
			return b, false
		}
	}

	if b.XMin > b.XMax {
		b.XMin, b.XMax = b.XMax, b.XMin
	}
	if b.YMin > b.YMax {
		b.YMin, b.YMax = b.YMax, b.YMin
	}
	b.XMin, b.XMax = clamp(b.XMin, 0, 100), clamp(b.XMax, 0, 100)
	b.YMin, b.YMax = clamp(b.YMin, 0, 100), clamp(b.YMax, 0, 100)

	if b.XMax == b.XMin || b.YMax == b.YMin {
		return b, false
	}

	if b.Confidence != nil {
		c := *b.Confidence
		if math.IsNaN(c) {
			b.Confidence = nil
		} else {
			c = clamp(c, 0, 1)
			b.Confidence = &c
		}
	}
	return b, true
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
