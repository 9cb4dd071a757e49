package torch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/thirdeye/internal/camera"
)

// sampleGrid is the number of pixels sampled along each axis.
const sampleGrid = 64

// Luma decodes a JPEG frame and returns its average perceptual brightness (0-255).
func Luma(data []byte) (float64, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decoding frame: %w", err)
	}
	return ImageLuma(img), nil
}

// ImageLuma averages 0.299R + 0.587G + 0.114B over a downsampled grid of img.
func ImageLuma(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}

	stepX := max(b.Dx()/sampleGrid, 1)
	stepY := max(b.Dy()/sampleGrid, 1)

	var sum float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
			n++
		}
	}
	return sum / float64(n)
}

// FrameSource provides the most recent camera frame.
type FrameSource interface {
	Latest() (camera.Frame, bool)
}

// Sampler computes brightness from the latest frame and feeds the controller.
// Each frame is sampled at most once.
type Sampler struct {
	frames     FrameSource
	controller *Controller

	mu   sync.Mutex
	last time.Time
}

// NewSampler creates a sampler over frames.
func NewSampler(frames FrameSource, controller *Controller) *Sampler {
	return &Sampler{frames: frames, controller: controller}
}

// Tick samples the latest frame, if it is new. Decode errors are logged and
// dropped.
func (s *Sampler) Tick(ctx context.Context) {
	f, ok := s.frames.Latest()
	if !ok {
		return
	}

	s.mu.Lock()
	if !f.ReceivedAt.After(s.last) {
		s.mu.Unlock()
		return
	}
	s.last = f.ReceivedAt
	s.mu.Unlock()

	level, err := Luma(f.Data)
	if err != nil {
		slog.Debug("brightness sample skipped", "error", err)
		return
	}
	s.controller.Sample(ctx, level)
}
