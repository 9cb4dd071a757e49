// Package locale holds the language-specific tables used across the daemon:
// voice command keywords, user-facing messages, model prompts and detector
// label translations.
//
// Built-in locales are embedded YAML files; a custom file can replace them.
package locale

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var builtin embed.FS

// Locale is one language's complete table.
type Locale struct {
	// Code is the ISO-639-1 code (e.g., "tr", "en").
	Code string `yaml:"code"`

	// Speech is the BCP-47 tag used for synthesis and voice selection (e.g., "tr-TR").
	Speech string `yaml:"speech"`

	Keywords Keywords          `yaml:"keywords"`
	Messages Messages          `yaml:"messages"`
	Prompts  Prompts           `yaml:"prompts"`
	Labels   map[string]string `yaml:"labels"`
}

// Keywords are substring tables for the voice command router.
type Keywords struct {
	Stop     []string       `yaml:"stop"`
	Modes    []ModeKeywords `yaml:"modes"`
	Describe []string       `yaml:"describe"`
	Torch    TorchKeywords  `yaml:"torch"`
}

// ModeKeywords maps a mode identifier to its synonyms. Order in the file is match order.
type ModeKeywords struct {
	Mode  string   `yaml:"mode"`
	Words []string `yaml:"words"`
}

// TorchKeywords match when one of Nouns and one of On or Off both occur.
type TorchKeywords struct {
	Nouns []string `yaml:"nouns"`
	On    []string `yaml:"on"`
	Off   []string `yaml:"off"`
}

// Messages are the fixed user-facing strings.
type Messages struct {
	Analyzing      string `yaml:"analyzing"`
	IdlePrompt     string `yaml:"idle_prompt"`
	PickMode       string `yaml:"pick_mode"`
	Failure        string `yaml:"failure"`
	RateLimited    string `yaml:"rate_limited"`
	Dark           string `yaml:"dark"`
	EmergencyAlert string `yaml:"emergency_alert"`
	UnknownPlace   string `yaml:"unknown_place"`
	AlertSent      string `yaml:"alert_sent"`
	AlertFailed    string `yaml:"alert_failed"`
}

// Prompts are the model instructions. Question and User* contain one %s verb.
type Prompts struct {
	Base         string            `yaml:"base"`
	Question     string            `yaml:"question"`
	Modes        map[string]string `yaml:"modes"`
	UserDescribe string            `yaml:"user_describe"`
	UserQuestion string            `yaml:"user_question"`
}

// Load returns the built-in locale for code.
func Load(code string) (*Locale, error) {
	data, err := builtin.ReadFile("locales/" + strings.ToLower(code) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown locale %q", code)
	}
	return Parse(data)
}

// LoadFile reads a locale from a YAML file on disk.
func LoadFile(path string) (*Locale, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading locale file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a locale document.
func Parse(data []byte) (*Locale, error) {
	var l Locale
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing locale: %w", err)
	}
	if l.Code == "" {
		return nil, fmt.Errorf("locale: code is required")
	}
	if l.Messages.Failure == "" || l.Messages.PickMode == "" {
		return nil, fmt.Errorf("locale %s: failure and pick_mode messages are required", l.Code)
	}
	if l.Prompts.Base == "" {
		return nil, fmt.Errorf("locale %s: base prompt is required", l.Code)
	}
	return &l, nil
}

// Lower lower-cases s with the locale's casing rules. Turkish needs its own
// mapping so that "IŞIK" becomes "ışık" and not "işik".
func (l *Locale) Lower(s string) string {
	if l.Code == "tr" {
		return strings.ToLowerSpecial(unicode.TurkishCase, s)
	}
	return strings.ToLower(s)
}

// Label translates a detector class name. ok is false for classes with no translation.
func (l *Locale) Label(class string) (string, bool) {
	name, ok := l.Labels[strings.ToLower(class)]
	return name, ok
}
