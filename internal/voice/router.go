package voice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/metrics"
)

// Controller is the mode state machine the router drives.
type Controller interface {
	Select(mode message.Mode) (message.Mode, error)
	Stop() error
	Describe() (bool, error)
	Ask(question string) (bool, error)
	SetTorch(on bool) error
}

// Router dispatches classified utterances.
type Router struct {
	classifier *Classifier
	ctrl       Controller
}

// NewRouter creates a router.
func NewRouter(classifier *Classifier, ctrl Controller) *Router {
	return &Router{classifier: classifier, ctrl: ctrl}
}

// Handle classifies one utterance and applies it. Unmatched utterances are
// asked as questions; in Idle the controller prompts for a mode instead.
func (r *Router) Handle(utterance string) (Command, error) {
	cmd := r.classifier.Classify(utterance)
	metrics.VoiceIntents.WithLabelValues(string(cmd.Intent)).Inc()
	slog.Info("voice command", "intent", cmd.Intent, "mode", cmd.Mode, "text", cmd.Text)

	var err error
	switch cmd.Intent {
	case IntentNone:
		return cmd, nil
	case IntentStop:
		err = r.ctrl.Stop()
	case IntentMode:
		_, err = r.ctrl.Select(cmd.Mode)
	case IntentDescribe:
		_, err = r.ctrl.Describe()
	case IntentTorch:
		err = r.ctrl.SetTorch(cmd.TorchOn)
	case IntentQuestion:
		_, err = r.ctrl.Ask(cmd.Text)
	}
	if err != nil {
		return cmd, fmt.Errorf("applying %s command: %w", cmd.Intent, err)
	}
	return cmd, nil
}

// Run handles utterances from the recognition stream until ctx is done or
// the stream is closed.
func (r *Router) Run(ctx context.Context, utterances <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-utterances:
			if !ok {
				return
			}
			if _, err := r.Handle(u); err != nil {
				slog.Warn("voice command failed", "error", err)
			}
		}
	}
}
