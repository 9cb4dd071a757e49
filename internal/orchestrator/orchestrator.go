// Package orchestrator decides when frames are analyzed and applies results.
//
// At most one analysis runs at a time: triggers that arrive while one is in
// flight are dropped, not queued. Every mode change starts a new generation;
// a result whose generation is no longer current is discarded, so a slow
// reply can never overwrite fresher state.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/metrics"
	"github.com/nadzzz/thirdeye/internal/provider"
	"github.com/nadzzz/thirdeye/internal/scheduler"
)

// Analyzer turns a request into a result. provider.Cascade implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req message.Request) (message.Result, error)
}

// FrameSource supplies the still frame to analyze.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Speaker is the speech output channel.
type Speaker interface {
	Speak(text string)
	Stop()
}

// Publisher delivers events to clients. Publish must not block.
type Publisher interface {
	Publish(ev message.Event)
}

// Scheduler runs recurring jobs.
type Scheduler interface {
	Every(name string, interval time.Duration, fn func()) scheduler.Job
}

// Config tunes the orchestrator.
type Config struct {
	Interval     time.Duration
	CycleTimeout time.Duration
	Messages     locale.Messages
}

// Status is a snapshot of the orchestrator's displayed state.
type Status struct {
	Mode     message.Mode
	Text     string
	Boxes    []message.BoundingBox
	InFlight bool
}

// Orchestrator owns the single-flight guard and the polling timer.
type Orchestrator struct {
	analyzer Analyzer
	frames   FrameSource
	speaker  Speaker
	pub      Publisher
	sched    Scheduler
	cfg      Config

	mu         sync.Mutex
	active     message.Mode
	inFlight   bool
	generation uint64
	cancel     context.CancelFunc
	timer      scheduler.Job
	text       string
	boxes      []message.BoundingBox
	closed     bool

	wg sync.WaitGroup
}

// New creates an orchestrator in Idle.
func New(cfg Config, analyzer Analyzer, frames FrameSource, speaker Speaker, pub Publisher, sched Scheduler) *Orchestrator {
	return &Orchestrator{
		analyzer: analyzer,
		frames:   frames,
		speaker:  speaker,
		pub:      pub,
		sched:    sched,
		cfg:      cfg,
		active:   message.ModeIdle,
	}
}

// Trigger starts an analysis for mode, with an optional question. It
// returns false when the trigger was dropped: another analysis is in flight,
// or mode is not the active mode.
func (o *Orchestrator) Trigger(mode message.Mode, query string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.triggerLocked(mode, query)
}

func (o *Orchestrator) triggerLocked(mode message.Mode, query string) bool {
	switch {
	case o.closed:
		return false
	case !mode.Active() || mode != o.active:
		metrics.TriggersDropped.WithLabelValues("inactive").Inc()
		slog.Debug("trigger dropped, mode not active", "mode", mode, "active", o.active)
		return false
	case o.inFlight:
		metrics.TriggersDropped.WithLabelValues("in_flight").Inc()
		slog.Debug("trigger dropped, analysis in flight", "mode", mode)
		return false
	}

	o.inFlight = true
	metrics.InFlight.Set(1)

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CycleTimeout)
	o.cancel = cancel

	req := message.Request{ID: uuid.NewString(), Mode: mode, Query: query}
	o.wg.Add(1)
	go o.run(ctx, cancel, o.generation, req)
	return true
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, generation uint64, req message.Request) {
	defer o.wg.Done()
	defer cancel()

	logger := slog.With("request_id", req.ID, "mode", req.Mode)
	start := time.Now()

	var res message.Result
	image, err := o.frames.Capture(ctx)
	noFrame := err != nil
	if noFrame {
		logger.Warn("no frame to analyze", "error", err)
	} else {
		req.Image = image
		logger.Debug("analysis started", "image_bytes", len(image), "query", req.HasQuery())
		res, err = o.analyzer.Analyze(ctx, req)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if generation != o.generation {
		metrics.AnalysisCycles.WithLabelValues("stale").Inc()
		logger.Info("discarding stale result", "active", o.active, "duration", time.Since(start))
		return
	}

	o.inFlight = false
	o.cancel = nil
	metrics.InFlight.Set(0)
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	if noFrame {
		metrics.AnalysisCycles.WithLabelValues("no_frame").Inc()
		return
	}

	if err != nil {
		text := o.cfg.Messages.Failure
		outcome := "failure"
		if provider.IsRateLimited(err) {
			text = o.cfg.Messages.RateLimited
			outcome = "rate_limited"
		}
		metrics.AnalysisCycles.WithLabelValues(outcome).Inc()
		logger.Error("analysis failed", "outcome", outcome, "error", err)

		o.text = text
		ev := message.NewEvent(message.EventText)
		ev.Mode = req.Mode
		ev.Text = text
		o.pub.Publish(ev)
		o.speaker.Speak(text)
		return
	}

	metrics.AnalysisCycles.WithLabelValues("success").Inc()
	logger.Info("analysis published", "duration", time.Since(start), "boxes", len(res.Boxes))

	o.text = res.Text
	o.boxes = res.Boxes
	ev := message.NewEvent(message.EventResult)
	ev.Mode = req.Mode
	ev.Text = res.Text
	ev.Boxes = res.Boxes
	o.pub.Publish(ev)
	o.speaker.Speak(res.Text)
}

// SetActiveMode switches the mode analysis runs for. Any analysis in flight
// is cancelled and its result discarded. Entering a non-Idle mode analyzes
// immediately and then every interval; entering Idle stops the timer and
// any speech.
func (o *Orchestrator) SetActiveMode(mode message.Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	prev := o.active
	o.active = mode
	o.generation++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.inFlight {
		o.inFlight = false
		metrics.InFlight.Set(0)
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.boxes = nil

	slog.Info("analysis mode changed", "from", prev, "to", mode)

	ev := message.NewEvent(message.EventText)
	ev.Mode = mode

	if !mode.Active() {
		o.text = o.cfg.Messages.IdlePrompt
		ev.Text = o.text
		o.pub.Publish(ev)
		o.speaker.Stop()
		return
	}

	o.text = o.cfg.Messages.Analyzing
	ev.Text = o.text
	o.pub.Publish(ev)

	o.triggerLocked(mode, "")
	o.timer = o.sched.Every("analysis-"+string(mode), o.cfg.Interval, func() {
		o.Trigger(mode, "")
	})
}

// ActiveMode returns the mode analysis currently runs for.
func (o *Orchestrator) ActiveMode() message.Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Status returns a snapshot of the displayed state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Mode:     o.active,
		Text:     o.text,
		Boxes:    append([]message.BoundingBox(nil), o.boxes...),
		InFlight: o.inFlight,
	}
}

// Close stops the timer, cancels any analysis and waits for it to return.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.generation++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.mu.Unlock()

	o.wg.Wait()
}
