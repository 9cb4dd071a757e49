// Package piper synthesizes speech with a Piper server over the Wyoming
// protocol (TCP, port 10200 in the stock container).
//
// Each synthesis opens its own connection: a synthesize event goes out and
// audio-start, audio-chunk* and audio-stop come back.
package piper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/speech"
)

const (
	dialTimeout    = 5 * time.Second
	defaultTimeout = 20 * time.Second
)

// defaultVoices maps ISO-639-1 codes to Piper voice models.
var defaultVoices = map[string]string{
	"tr": "tr_TR-dfki-medium",
	"en": "en_US-lessac-medium",
	"de": "de_DE-thorsten-medium",
	"fr": "fr_FR-siwis-medium",
	"es": "es_ES-davefx-medium",
}

// Synthesizer implements speech.Synthesizer against one or more Piper servers.
type Synthesizer struct {
	endpoint  string
	endpoints map[string]string
	voices    map[string]string
}

// New creates a Piper synthesizer. Configured voices override the defaults.
func New(cfg config.PiperConfig) *Synthesizer {
	voices := make(map[string]string, len(defaultVoices)+len(cfg.Voices))
	for lang, v := range defaultVoices {
		voices[lang] = v
	}
	for lang, v := range cfg.Voices {
		voices[strings.ToLower(lang)] = v
	}

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[strings.ToLower(lang)] = hostPort(ep)
	}

	return &Synthesizer{
		endpoint:  hostPort(cfg.Endpoint),
		endpoints: endpoints,
		voices:    voices,
	}
}

func hostPort(ep string) string {
	for _, scheme := range []string{"tcp://", "http://"} {
		ep = strings.TrimPrefix(ep, scheme)
	}
	return ep
}

// route returns the endpoint and voice for a request.
func (s *Synthesizer) route(opts speech.SynthesizeOpts) (string, string, error) {
	lang := strings.ToLower(opts.Language)

	voice := opts.Voice
	if voice == "" {
		voice = s.voices[lang]
	}
	if voice == "" {
		voice = s.voices["en"]
	}

	endpoint := s.endpoints[lang]
	if endpoint == "" {
		endpoint = s.endpoint
	}
	if endpoint == "" {
		return "", "", fmt.Errorf("no piper endpoint for language %q", lang)
	}
	return endpoint, voice, nil
}

// Synthesize returns text as WAV audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts speech.SynthesizeOpts) (*speech.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	endpoint, voice, err := s.route(opts)
	if err != nil {
		return nil, err
	}

	logger := slog.With("endpoint", endpoint, "voice", voice)
	logger.Debug("piper synthesize", "chars", len(text))

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	_ = conn.SetDeadline(deadline)

	// Unblock reads when ctx is cancelled before the deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	req := event{
		Type: "synthesize",
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": voice},
		},
	}
	if err := writeEvent(conn, req, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	var (
		r      = bufio.NewReader(conn)
		format = defaultFormat
		pcm    bytes.Buffer
	)
	for {
		ev, payload, err := readEvent(r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch ev.Type {
		case "audio-start":
			format = audioFormat{
				rate:     intField(ev.Data, "rate", defaultFormat.rate),
				width:    intField(ev.Data, "width", defaultFormat.width),
				channels: intField(ev.Data, "channels", defaultFormat.channels),
			}
		case "audio-chunk":
			pcm.Write(payload)
		case "audio-stop":
			logger.Debug("piper audio complete", "pcm_bytes", pcm.Len(), "rate", format.rate)
			return &speech.SynthesizeResult{
				Audio:       format.wav(pcm.Bytes()),
				ContentType: "audio/wav",
				SampleRate:  format.rate,
				Channels:    format.channels,
			}, nil
		case "error":
			msg, _ := ev.Data["text"].(string)
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("piper error: %s", msg)
		default:
			logger.Debug("piper event ignored", "type", ev.Type)
		}
	}
}

// Close is a no-op; connections are per request.
func (s *Synthesizer) Close() error { return nil }
