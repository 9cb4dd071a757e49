package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/message"
)

type recorder struct {
	mu     sync.Mutex
	events []message.Event
}

func (r *recorder) Publish(ev message.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []message.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Event(nil), r.events...)
}

func (r *recorder) spoken() []string {
	var out []string
	for _, ev := range r.snapshot() {
		if ev.Type == message.EventSpeak {
			out = append(out, ev.Text)
		}
	}
	return out
}

var speechCfg = config.SpeechConfig{Rate: 0.9, Pitch: 0.9}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"speech": "Önünüzde bir kapı var."}`, "Önünüzde bir kapı var."},
		{"**STOP** obstacle ahead", "STOP obstacle ahead"},
		{`Speech: hello  [boxes: ]`, "hello"},
		{"label: chair", "chair"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), tt.in)
	}
}

func TestSpeakPublishesEvent(t *testing.T) {
	rec := &recorder{}
	c := NewChannel(speechCfg, "tr-TR", rec, nil)
	c.SetVoices([]message.Voice{{Name: "Microsoft Tolga", Lang: "tr-TR"}})

	c.Speak(`{"speech": "Karşıda bir otobüs var."}`)

	events := rec.snapshot()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, message.EventSpeak, ev.Type)
	assert.Equal(t, "Karşıda bir otobüs var.", ev.Text)
	assert.Equal(t, "Microsoft Tolga", ev.Voice)
	assert.Equal(t, "tr-TR", ev.Lang)
	assert.InDelta(t, 0.9, ev.Rate, 1e-9)
	assert.Empty(t, ev.Audio)
}

func TestSpeakSkipsShortText(t *testing.T) {
	rec := &recorder{}
	c := NewChannel(speechCfg, "en-US", rec, nil)

	c.Speak("ok")
	c.Speak(`"**"`)
	assert.Empty(t, rec.snapshot())

	c.Speak("Işık")
	assert.Equal(t, []string{"Işık"}, rec.spoken())
}

func TestMute(t *testing.T) {
	rec := &recorder{}
	c := NewChannel(speechCfg, "en-US", rec, nil)

	c.SetMuted(true)
	assert.True(t, c.Muted())
	c.Speak("A car is approaching.")
	assert.Empty(t, rec.spoken())

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, message.EventSpeechStop, events[0].Type)

	c.SetMuted(false)
	c.Speak("A car is approaching.")
	assert.Equal(t, []string{"A car is approaching."}, rec.spoken())
}

// gatedSynth blocks each synthesis until released or cancelled.
type gatedSynth struct {
	release chan struct{}
	fail    bool
}

func (g *gatedSynth) Synthesize(ctx context.Context, text string, _ SynthesizeOpts) (*SynthesizeResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
	}
	if g.fail {
		return nil, errors.New("piper down")
	}
	return &SynthesizeResult{Audio: []byte("RIFF" + text), ContentType: "audio/wav"}, nil
}

func (g *gatedSynth) Close() error { return nil }

func TestSpeakPreemptsPendingSynthesis(t *testing.T) {
	rec := &recorder{}
	synth := &gatedSynth{release: make(chan struct{})}
	c := NewChannel(speechCfg, "en-US", rec, synth)

	c.Speak("First sentence.")
	c.Speak("Second sentence.")
	close(synth.release)

	assert.Eventually(t, func() bool { return len(rec.spoken()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "Second sentence.", events[0].Text)
	assert.Equal(t, "audio/wav", events[0].AudioContentType)
	assert.NotEmpty(t, events[0].Audio)
}

func TestSynthesisFailureFallsBackToText(t *testing.T) {
	rec := &recorder{}
	synth := &gatedSynth{release: make(chan struct{}), fail: true}
	close(synth.release)
	c := NewChannel(speechCfg, "en-US", rec, synth)

	c.Speak("Door on the left.")
	assert.Eventually(t, func() bool { return len(rec.spoken()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.Empty(t, rec.snapshot()[0].Audio)
}

func TestStopDiscardsPendingSynthesis(t *testing.T) {
	rec := &recorder{}
	synth := &gatedSynth{release: make(chan struct{})}
	c := NewChannel(speechCfg, "en-US", rec, synth)

	c.Speak("Something long.")
	c.Stop()
	close(synth.release)
	require.NoError(t, c.Close())

	assert.Empty(t, rec.spoken())
}

func TestSelectVoice(t *testing.T) {
	voices := []message.Voice{
		{Name: "Samantha", Lang: "en-US"},
		{Name: "Yelda", Lang: "tr-TR"},
		{Name: "Google Türkçe", Lang: "tr-TR"},
		{Name: "Microsoft Emel Online", Lang: "tr-TR"},
	}

	v, ok := SelectVoice(voices, "tr")
	require.True(t, ok)
	assert.Equal(t, "Microsoft Emel Online", v.Name)

	v, _ = SelectVoice(voices[:3], "tr")
	assert.Equal(t, "Google Türkçe", v.Name)

	v, _ = SelectVoice(voices[:2], "tr")
	assert.Equal(t, "Yelda", v.Name)

	v, _ = SelectVoice(voices[:1], "tr")
	assert.Equal(t, "Samantha", v.Name)

	_, ok = SelectVoice(nil, "tr")
	assert.False(t, ok)
}

func TestWatchAppliesVoiceLists(t *testing.T) {
	c := NewChannel(speechCfg, "tr-TR", &recorder{}, nil)
	voices := make(chan []message.Voice)
	done := make(chan struct{})

	go func() {
		c.Watch(context.Background(), voices)
		close(done)
	}()

	voices <- []message.Voice{{Name: "Yelda", Lang: "tr-TR"}}
	close(voices)
	<-done
	assert.Equal(t, "Yelda", c.Voice())
}
