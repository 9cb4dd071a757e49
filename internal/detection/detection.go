// Package detection merges the on-device object detector's output into the
// overlay: pixel boxes become percent-of-frame boxes with translated labels.
package detection

import (
	"log/slog"
	"sync"

	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/normalize"
)

// Convert turns one detector pass into overlay boxes. Detections at or below
// minConfidence, and classes the locale has no translation for, are dropped.
func Convert(batch message.DetectionBatch, loc *locale.Locale, minConfidence float64) []message.BoundingBox {
	boxes := make([]message.BoundingBox, 0, len(batch.Items))
	if batch.FrameWidth <= 0 || batch.FrameHeight <= 0 {
		return boxes
	}

	for _, d := range batch.Items {
		if d.Confidence <= minConfidence {
			continue
		}
		label, ok := loc.Label(d.Label)
		if !ok {
			continue
		}

		conf := d.Confidence
		box, ok := normalize.Box(message.BoundingBox{
			Label:      label,
			XMin:       d.X / batch.FrameWidth * 100,
			YMin:       d.Y / batch.FrameHeight * 100,
			XMax:       (d.X + d.Width) / batch.FrameWidth * 100,
			YMax:       (d.Y + d.Height) / batch.FrameHeight * 100,
			Confidence: &conf,
		})
		if ok {
			boxes = append(boxes, box)
		}
	}
	return boxes
}

// Publisher delivers events to clients. Publish must not block.
type Publisher interface {
	Publish(ev message.Event)
}

// Overlay keeps the latest detector boxes and pushes them to clients.
type Overlay struct {
	loc           *locale.Locale
	minConfidence float64
	pub           Publisher

	mu    sync.RWMutex
	boxes []message.BoundingBox
}

// NewOverlay creates an overlay.
func NewOverlay(loc *locale.Locale, minConfidence float64, pub Publisher) *Overlay {
	return &Overlay{loc: loc, minConfidence: minConfidence, pub: pub}
}

// Update replaces the detector boxes with those of batch and publishes them.
func (o *Overlay) Update(batch message.DetectionBatch) []message.BoundingBox {
	boxes := Convert(batch, o.loc, o.minConfidence)

	o.mu.Lock()
	o.boxes = boxes
	o.mu.Unlock()

	slog.Debug("detections updated", "received", len(batch.Items), "kept", len(boxes))

	ev := message.NewEvent(message.EventDetections)
	ev.Boxes = boxes
	o.pub.Publish(ev)
	return boxes
}

// Boxes returns the latest detector boxes.
func (o *Overlay) Boxes() []message.BoundingBox {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]message.BoundingBox(nil), o.boxes...)
}
