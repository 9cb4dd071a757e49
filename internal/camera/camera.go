// Package camera holds the most recent still frame pushed by the capture
// device. The analysis loop and the brightness sampler read from it; neither
// owns the camera itself.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNoFrame is returned when no frame has been received yet.
	ErrNoFrame = errors.New("no frame available")

	// ErrStaleFrame is returned when the latest frame is older than the max age.
	ErrStaleFrame = errors.New("latest frame is stale")
)

var jpegSOI = []byte{0xff, 0xd8}

// Frame is a JPEG still and the time it was received.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
}

// Buffer stores the latest frame. It is safe for concurrent use.
type Buffer struct {
	mu     sync.RWMutex
	frame  Frame
	maxAge time.Duration
	now    func() time.Time
}

// NewBuffer creates a frame buffer. A maxAge of zero disables the staleness check.
func NewBuffer(maxAge time.Duration) *Buffer {
	return &Buffer{maxAge: maxAge, now: time.Now}
}

// Put replaces the stored frame. data must be a JPEG image.
func (b *Buffer) Put(data []byte) error {
	if !bytes.HasPrefix(data, jpegSOI) {
		return fmt.Errorf("frame is not a JPEG image (%d bytes)", len(data))
	}

	b.mu.Lock()
	b.frame = Frame{Data: data, ReceivedAt: b.now()}
	b.mu.Unlock()
	return nil
}

// Latest returns the stored frame regardless of its age.
func (b *Buffer) Latest() (Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame, len(b.frame.Data) > 0
}

// Capture returns the latest frame for analysis.
func (b *Buffer) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, ok := b.Latest()
	if !ok {
		return nil, ErrNoFrame
	}
	if b.maxAge > 0 {
		if age := b.now().Sub(f.ReceivedAt); age > b.maxAge {
			return nil, fmt.Errorf("%w: %s old", ErrStaleFrame, age.Round(time.Millisecond))
		}
	}
	return f.Data, nil
}
