package locale

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBuiltin(t *testing.T) {
	for _, code := range []string{"tr", "en"} {
		t.Run(code, func(t *testing.T) {
			l, err := Load(code)
			require.NoError(t, err)
			assert.Equal(t, code, l.Code)
			assert.NotEmpty(t, l.Keywords.Stop)
			assert.Len(t, l.Keywords.Modes, 4)
			assert.NotEmpty(t, l.Messages.RateLimited)
			for _, mode := range []string{"scan", "read", "navigate", "emergency"} {
				assert.NotEmpty(t, l.Prompts.Modes[mode], mode)
			}
		})
	}
}

func TestLoadUnknown(t *testing.T) {
	_, err := Load("xx")
	assert.Error(t, err)
}

func TestTurkishLower(t *testing.T) {
	l, err := Load("tr")
	require.NoError(t, err)
	assert.Equal(t, "ışığı aç", l.Lower("IŞIĞI AÇ"))
	assert.Equal(t, "ışık", l.Lower("IŞIK"))
	assert.Equal(t, "light", mustLoad(t, "en").Lower("LIGHT"))
}

func TestLabel(t *testing.T) {
	l := mustLoad(t, "tr")
	name, ok := l.Label("Traffic Light")
	assert.True(t, ok)
	assert.Equal(t, "Trafik ışığı", name)

	_, ok = l.Label("spaceship")
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	doc := `
code: de
speech: de-DE
messages:
  failure: Ich kann gerade nichts sehen.
  pick_mode: Bitte zuerst einen Modus wählen.
prompts:
  base: Du bist ein Assistent.
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	l, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "de", l.Code)
	assert.Equal(t, "de-DE", l.Speech)
}

func TestParseRejectsIncomplete(t *testing.T) {
	_, err := Parse([]byte("code: fr\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("code: [unclosed"))
	assert.Error(t, err)
}

func mustLoad(t *testing.T, code string) *Locale {
	t.Helper()
	l, err := Load(code)
	require.NoError(t, err)
	return l
}
