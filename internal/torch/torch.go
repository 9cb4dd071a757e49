// Package torch switches the device flashlight from ambient brightness
// samples.
//
// Two thresholds give the controller a dead zone: the torch turns on below
// the low threshold and off above the high one, and nothing happens in
// between. A manual switch-off sets an override that suppresses automatic
// switch-on until a mode is selected or the user turns the torch on again.
package torch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/metrics"
)

// Effector drives the physical torch. Errors (e.g., torch unsupported) are
// logged and otherwise ignored. SetTorch is called with the controller lock
// held and must return promptly.
type Effector interface {
	SetTorch(ctx context.Context, on bool) error
}

// Announcer speaks a short notice to the user.
type Announcer interface {
	Speak(text string)
}

// State is a snapshot of the controller.
type State struct {
	On       bool `json:"on"`
	Override bool `json:"override"`
	ManualOn bool `json:"manual_on"`
}

// Controller is the hysteresis state machine. It is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	low      float64
	high     float64
	on       bool
	override bool
	manualOn bool

	effector  Effector
	announcer Announcer
	dark      string
}

// New creates a controller with the torch off. announcer may be nil; dark is
// spoken on every automatic switch-on when non-empty.
func New(cfg config.TorchConfig, effector Effector, announcer Announcer, dark string) *Controller {
	return &Controller{
		low:       cfg.LowThreshold,
		high:      cfg.HighThreshold,
		effector:  effector,
		announcer: announcer,
		dark:      dark,
	}
}

// Sample feeds one brightness reading (0-255 luma) and reports whether the
// torch was switched.
func (c *Controller) Sample(ctx context.Context, level float64) bool {
	metrics.Brightness.Set(level)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.on && level < c.low:
		if c.override {
			slog.Debug("dark, auto torch suppressed by manual override", "brightness", level)
			return false
		}
		slog.Info("dark, turning torch on", "brightness", level, "threshold", c.low)
		c.apply(ctx, true, "auto_on")
		if c.announcer != nil && c.dark != "" {
			c.announcer.Speak(c.dark)
		}
		return true

	case c.on && level > c.high:
		slog.Info("bright, turning torch off", "brightness", level, "threshold", c.high)
		c.manualOn = false
		c.apply(ctx, false, "auto_off")
		return true
	}
	return false
}

// Set is an explicit user switch. Off sets the manual override; on clears it.
func (c *Controller) Set(ctx context.Context, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.override = !on
	c.manualOn = on
	if on {
		c.apply(ctx, true, "manual_on")
	} else {
		c.apply(ctx, false, "manual_off")
	}
}

// ClearOverride re-enables automatic switch-on. Called on mode selection.
func (c *Controller) ClearOverride() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.override {
		slog.Debug("torch manual override cleared")
	}
	c.override = false
}

// ReleaseForIdle turns the torch off when returning to Idle, unless the
// user turned it on manually.
func (c *Controller) ReleaseForIdle(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.on || c.manualOn {
		return
	}
	c.apply(ctx, false, "idle")
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{On: c.on, Override: c.override, ManualOn: c.manualOn}
}

func (c *Controller) apply(ctx context.Context, on bool, reason string) {
	changed := c.on != on
	c.on = on
	if changed {
		metrics.TorchSwitches.WithLabelValues(reason).Inc()
	}
	if c.effector == nil {
		return
	}
	if err := c.effector.SetTorch(ctx, on); err != nil {
		slog.Warn("torch control failed", "on", on, "reason", reason, "error", err)
	}
}
