// Package speech owns the single speech output channel.
//
// A new utterance always preempts the one being spoken; nothing is queued.
// Text is pushed to clients as speak events for on-device synthesis. When a
// server-side Synthesizer is configured the event also carries WAV audio.
package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/metrics"
)

// SynthesizeOpts controls server-side synthesis.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "tr", "en") used to select the voice.
	Language string

	// Voice overrides language-based voice selection.
	Voice string
}

// SynthesizeResult holds synthesized audio.
type SynthesizeResult struct {
	Audio       []byte
	ContentType string
	SampleRate  int
	Channels    int
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)
	Close() error
}

// Publisher delivers events to connected clients. Publish must not block.
type Publisher interface {
	Publish(ev message.Event)
}

// synthesisTimeout bounds one server-side synthesis.
const synthesisTimeout = 15 * time.Second

// Channel is the global speech output. It is safe for concurrent use.
type Channel struct {
	pub   Publisher
	synth Synthesizer

	tag      string // BCP-47 tag, e.g. "tr-TR"
	language string // ISO-639-1 prefix of tag
	rate     float64
	pitch    float64

	mu     sync.Mutex
	voice  string
	muted  bool
	seq    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChannel creates the speech channel for the given BCP-47 language tag.
// synth may be nil, in which case clients synthesize speech themselves.
func NewChannel(cfg config.SpeechConfig, tag string, pub Publisher, synth Synthesizer) *Channel {
	language, _, _ := strings.Cut(tag, "-")
	return &Channel{
		pub:      pub,
		synth:    synth,
		tag:      tag,
		language: strings.ToLower(language),
		rate:     cfg.Rate,
		pitch:    cfg.Pitch,
	}
}

// Speak cleans text and speaks it, cutting off whatever is being spoken.
// Muted channels and text shorter than three characters are ignored.
func (c *Channel) Speak(text string) {
	clean := Clean(text)
	if len([]rune(clean)) < minSpeakable {
		metrics.SpeechUtterances.WithLabelValues("skipped").Inc()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.muted {
		metrics.SpeechUtterances.WithLabelValues("muted").Inc()
		return
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		metrics.SpeechUtterances.WithLabelValues("preempted").Inc()
	}
	c.seq++

	ev := c.event(clean)
	if c.synth == nil {
		c.pub.Publish(ev)
		metrics.SpeechUtterances.WithLabelValues("spoken").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), synthesisTimeout)
	c.cancel = cancel
	c.wg.Add(1)
	go c.synthesize(ctx, c.seq, ev)
}

func (c *Channel) synthesize(ctx context.Context, seq uint64, ev message.Event) {
	defer c.wg.Done()

	res, err := c.synth.Synthesize(ctx, ev.Text, SynthesizeOpts{Language: c.language})
	if err != nil && ctx.Err() == nil {
		slog.Warn("speech synthesis failed, sending text only", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		return
	}
	c.cancel = nil
	if err == nil {
		ev.SetAudioBytes(res.Audio)
		ev.AudioContentType = res.ContentType
	}
	c.pub.Publish(ev)
	metrics.SpeechUtterances.WithLabelValues("spoken").Inc()
}

func (c *Channel) event(text string) message.Event {
	ev := message.NewEvent(message.EventSpeak)
	ev.Text = text
	ev.Voice = c.voice
	ev.Lang = c.tag
	ev.Rate = c.rate
	ev.Pitch = c.pitch
	return ev
}

// Stop silences the channel.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Channel) stopLocked() {
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.pub.Publish(message.NewEvent(message.EventSpeechStop))
}

// SetMuted mutes or unmutes the channel. Muting stops current speech.
func (c *Channel) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if muted && !c.muted {
		c.stopLocked()
	}
	c.muted = muted
	slog.Info("speech mute changed", "muted", muted)
}

// Muted reports whether the channel is muted.
func (c *Channel) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// SetVoices picks the voice to request from the list the client reported
// and returns its name.
func (c *Channel) SetVoices(voices []message.Voice) string {
	v, ok := SelectVoice(voices, c.language)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		return c.voice
	}
	c.voice = v.Name
	slog.Info("speech voice selected", "voice", v.Name, "lang", v.Lang, "available", len(voices))
	return c.voice
}

// Voice returns the selected voice name, if any.
func (c *Channel) Voice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice
}

// Watch applies every voice list received on voices until ctx is done or
// the channel is closed.
func (c *Channel) Watch(ctx context.Context, voices <-chan []message.Voice) {
	for {
		select {
		case <-ctx.Done():
			return
		case list, ok := <-voices:
			if !ok {
				return
			}
			c.SetVoices(list)
		}
	}
}

// Close cancels pending synthesis and waits for it to finish.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	if c.synth != nil {
		return c.synth.Close()
	}
	return nil
}
