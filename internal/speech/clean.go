package speech

import (
	"regexp"
	"strings"

	"github.com/nadzzz/thirdeye/internal/message"
)

// minSpeakable is the shortest cleaned text worth speaking, in characters.
const minSpeakable = 3

var (
	markupChars  = strings.NewReplacer("*", "", "{", "", "}", "", "[", "", "]", "", `"`, "")
	fieldLabels  = regexp.MustCompile(`(?i)speech:|boxes:|label:`)
	extraSpacing = regexp.MustCompile(`\s+`)
)

// Clean strips JSON and markdown residue that leaks into model replies so
// it is not read aloud.
func Clean(text string) string {
	text = markupChars.Replace(text)
	text = fieldLabels.ReplaceAllString(text, "")
	text = extraSpacing.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SelectVoice picks a voice for language (ISO-639-1): a Microsoft voice
// first, then a Google voice, then any voice of the language, then the first
// voice in the list. ok is false only for an empty list.
func SelectVoice(voices []message.Voice, language string) (message.Voice, bool) {
	if len(voices) == 0 {
		return message.Voice{}, false
	}

	language = strings.ToLower(language)
	var matching []message.Voice
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), language) {
			matching = append(matching, v)
		}
	}

	for _, vendor := range []string{"microsoft", "google"} {
		for _, v := range matching {
			if strings.Contains(strings.ToLower(v.Name), vendor) {
				return v, true
			}
		}
	}
	if len(matching) > 0 {
		return matching[0], true
	}
	return voices[0], true
}
