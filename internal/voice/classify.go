// Package voice routes recognized utterances to mode, torch and stop
// commands, and forwards anything else as a question about the scene.
package voice

import (
	"log/slog"
	"strings"

	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
)

// Intent is what an utterance asks for.
type Intent string

const (
	IntentNone     Intent = "none"
	IntentStop     Intent = "stop"
	IntentMode     Intent = "mode"
	IntentDescribe Intent = "describe"
	IntentTorch    Intent = "torch"
	IntentQuestion Intent = "question"
)

// Command is a classified utterance.
type Command struct {
	Intent  Intent
	Mode    message.Mode // IntentMode
	TorchOn bool         // IntentTorch
	Text    string       // the normalized utterance
}

type modeWords struct {
	mode  message.Mode
	words []string
}

// Classifier matches utterances against a locale's keyword tables. It holds
// no state between utterances.
type Classifier struct {
	loc   *locale.Locale
	modes []modeWords
}

// NewClassifier builds a classifier for l. Mode entries naming an unknown
// mode are skipped.
func NewClassifier(l *locale.Locale) *Classifier {
	c := &Classifier{loc: l}
	for _, mk := range l.Keywords.Modes {
		m, err := message.ParseMode(mk.Mode)
		if err != nil || !m.Active() {
			slog.Warn("ignoring voice keywords for unknown mode", "locale", l.Code, "mode", mk.Mode)
			continue
		}
		c.modes = append(c.modes, modeWords{mode: m, words: lowerAll(l, mk.Words)})
	}
	return c
}

// Classify maps an utterance to a command. Keyword sets are checked by
// substring in priority order (stop, mode, describe, torch) and the first
// match wins; any other non-empty utterance is a question.
func (c *Classifier) Classify(utterance string) Command {
	text := strings.Join(strings.Fields(c.loc.Lower(utterance)), " ")
	if text == "" {
		return Command{Intent: IntentNone}
	}
	kw := c.loc.Keywords

	if containsAny(text, lowerAll(c.loc, kw.Stop)) {
		return Command{Intent: IntentStop, Text: text}
	}

	for _, m := range c.modes {
		if containsAny(text, m.words) {
			return Command{Intent: IntentMode, Mode: m.mode, Text: text}
		}
	}

	if containsAny(text, lowerAll(c.loc, kw.Describe)) {
		return Command{Intent: IntentDescribe, Text: text}
	}

	// Padding lets " on"/" off" style keywords match at either end.
	padded := " " + text + " "
	if containsAny(padded, lowerAll(c.loc, kw.Torch.Nouns)) {
		switch {
		case containsAny(padded, lowerAll(c.loc, kw.Torch.On)):
			return Command{Intent: IntentTorch, TorchOn: true, Text: text}
		case containsAny(padded, lowerAll(c.loc, kw.Torch.Off)):
			return Command{Intent: IntentTorch, TorchOn: false, Text: text}
		}
	}

	return Command{Intent: IntentQuestion, Text: text}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func lowerAll(l *locale.Locale, words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = l.Lower(w)
	}
	return out
}
