// Package mode implements the top-level state machine
// (Idle, Scan, Read, Navigate, Emergency).
//
// All state changes are funnelled through a single command channel consumed
// by Run, so every operation sees the current mode rather than a snapshot.
package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/metrics"
)

// ErrStopped is returned by operations issued after Run has returned.
var ErrStopped = errors.New("mode controller stopped")

// Orchestrator is the analysis loop driven by mode transitions.
type Orchestrator interface {
	SetActiveMode(mode message.Mode)
	Trigger(mode message.Mode, query string) bool
}

// Torch is the flashlight controller.
type Torch interface {
	Set(ctx context.Context, on bool)
	ClearOverride()
	ReleaseForIdle(ctx context.Context)
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

// Emergency runs the one-shot alert when Emergency mode is entered.
// Activate must return without waiting for the alert to be delivered.
type Emergency interface {
	Activate(ctx context.Context)
}

// Config holds the controller's tunables.
type Config struct {
	// FocusDelay is the wait between focusing a box and re-analyzing.
	FocusDelay time.Duration
	Messages   locale.Messages
}

// Controller owns the current mode.
type Controller struct {
	orch      Orchestrator
	torch     Torch
	speaker   Speaker
	pub       Publisher
	emergency Emergency
	cfg       Config

	cmds chan func(ctx context.Context)
	done chan struct{}

	// Owned by the Run goroutine.
	mode      message.Mode
	stopFocus func() bool
	focusSeq  uint64

	// afterFunc schedules the delayed re-analysis after a box focus.
	afterFunc func(d time.Duration, f func()) (stop func() bool)
}

// New creates a controller in Idle. emergency may be nil to disable the alert.
func New(cfg Config, orch Orchestrator, torch Torch, speaker Speaker, pub Publisher, emergency Emergency) *Controller {
	return &Controller{
		orch:      orch,
		torch:     torch,
		speaker:   speaker,
		pub:       pub,
		emergency: emergency,
		cfg:       cfg,
		cmds:      make(chan func(ctx context.Context)),
		done:      make(chan struct{}),
		mode:      message.ModeIdle,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
}

// Run processes commands until ctx is cancelled. On return the controller
// has gone back to Idle.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	slog.Info("mode controller started")

	for {
		select {
		case <-ctx.Done():
			c.cancelFocus()
			if c.mode != message.ModeIdle {
				c.transition(context.WithoutCancel(ctx), message.ModeIdle)
			}
			slog.Info("mode controller stopped")
			return
		case cmd := <-c.cmds:
			cmd(ctx)
		}
	}
}

// do runs fn on the Run goroutine and waits for it.
func (c *Controller) do(fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	select {
	case c.cmds <- func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}:
	case <-c.done:
		return ErrStopped
	}
	<-finished
	return nil
}

// Select applies a mode selection. Selecting the active mode, or Idle,
// returns to Idle. It returns the resulting mode.
func (c *Controller) Select(mode message.Mode) (message.Mode, error) {
	if !mode.Valid() {
		return "", fmt.Errorf("unknown mode %q", mode)
	}

	var result message.Mode
	err := c.do(func(ctx context.Context) {
		target := mode
		if mode == c.mode {
			target = message.ModeIdle
		}
		if target != c.mode {
			c.transition(ctx, target)
		}
		result = c.mode
	})
	return result, err
}

// Stop returns to Idle and silences speech.
func (c *Controller) Stop() error {
	return c.do(func(ctx context.Context) {
		if c.mode != message.ModeIdle {
			c.transition(ctx, message.ModeIdle)
		}
		c.speaker.Stop()
	})
}

// Describe analyzes immediately in the active mode. In Idle it asks the
// user to pick a mode. It reports whether an analysis was started.
func (c *Controller) Describe() (bool, error) {
	return c.Ask("")
}

// Ask forwards a question to the analysis of the active mode. In Idle it
// asks the user to pick a mode. It reports whether an analysis was started.
func (c *Controller) Ask(question string) (bool, error) {
	var started bool
	err := c.do(func(ctx context.Context) {
		if !c.mode.Active() {
			c.speaker.Speak(c.cfg.Messages.PickMode)
			return
		}
		started = c.orch.Trigger(c.mode, strings.TrimSpace(question))
	})
	return started, err
}

// SetTorch is an explicit user torch switch.
func (c *Controller) SetTorch(on bool) error {
	return c.do(func(ctx context.Context) {
		c.torch.Set(ctx, on)
	})
}

// FocusBox speaks the label of a selected overlay box and re-analyzes once
// the focus delay has passed, if a mode is still active then.
func (c *Controller) FocusBox(box message.BoundingBox) error {
	return c.do(func(ctx context.Context) {
		c.speaker.Speak(box.Label)
		c.cancelFocus()
		seq := c.focusSeq
		c.stopFocus = c.afterFunc(c.cfg.FocusDelay, func() {
			_ = c.do(func(context.Context) {
				if seq != c.focusSeq {
					return
				}
				c.stopFocus = nil
				if c.mode.Active() {
					c.orch.Trigger(c.mode, "")
				}
			})
		})
	})
}

// Mode returns the current mode.
func (c *Controller) Mode() message.Mode {
	mode := message.ModeIdle
	_ = c.do(func(context.Context) { mode = c.mode })
	return mode
}

// cancelFocus stops a pending focus re-analysis, including one whose timer
// already fired but has not yet been processed.
func (c *Controller) cancelFocus() {
	c.focusSeq++
	if c.stopFocus != nil {
		c.stopFocus()
		c.stopFocus = nil
	}
}

func (c *Controller) transition(ctx context.Context, to message.Mode) {
	from := c.mode
	c.mode = to
	c.cancelFocus()

	metrics.ModeTransitions.WithLabelValues(string(to)).Inc()
	slog.Info("mode changed", "from", from, "to", to)

	ev := message.NewEvent(message.EventMode)
	ev.Mode = to
	c.pub.Publish(ev)

	if !to.Active() {
		c.orch.SetActiveMode(message.ModeIdle)
		c.torch.ReleaseForIdle(ctx)
		return
	}

	c.torch.ClearOverride()
	c.orch.SetActiveMode(to)
	if to == message.ModeEmergency && c.emergency != nil {
		c.emergency.Activate(ctx)
	}
}
