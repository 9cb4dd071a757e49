package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
)

func classifier(t *testing.T, code string) *Classifier {
	t.Helper()
	l, err := locale.Load(code)
	require.NoError(t, err)
	return NewClassifier(l)
}

func TestClassifyTurkish(t *testing.T) {
	c := classifier(t, "tr")

	tests := []struct {
		utterance string
		want      Command
	}{
		{"Dur", Command{Intent: IntentStop, Text: "dur"}},
		{"OKU", Command{Intent: IntentMode, Mode: message.ModeRead, Text: "oku"}},
		{"tara lütfen", Command{Intent: IntentMode, Mode: message.ModeScan, Text: "tara lütfen"}},
		{"yol göster", Command{Intent: IntentMode, Mode: message.ModeNavigate, Text: "yol göster"}},
		{"imdat", Command{Intent: IntentMode, Mode: message.ModeEmergency, Text: "imdat"}},
		{"ne görüyorsun", Command{Intent: IntentDescribe, Text: "ne görüyorsun"}},
		{"IŞIĞI AÇ", Command{Intent: IntentTorch, TorchOn: true, Text: "ışığı aç"}},
		{"ışığı kapat", Command{Intent: IntentTorch, TorchOn: false, Text: "ışığı kapat"}},
		{"  kapıda   ne yazıyor ", Command{Intent: IntentQuestion, Text: "kapıda ne yazıyor"}},
		{"   ", Command{Intent: IntentNone}},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.utterance))
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	c := classifier(t, "tr")

	assert.Equal(t, IntentStop, c.Classify("dur ve oku").Intent, "stop beats mode")
	assert.Equal(t, IntentMode, c.Classify("oku ışığı aç").Intent, "mode beats torch")
	assert.Equal(t, IntentDescribe, c.Classify("şimdi ışığı aç").Intent, "describe beats torch")
	assert.Equal(t, IntentQuestion, c.Classify("ışık ne renk").Intent, "torch noun without a verb is a question")
}

func TestClassifyEnglish(t *testing.T) {
	c := classifier(t, "en")

	assert.Equal(t, Command{Intent: IntentTorch, TorchOn: true, Text: "turn the light on"}, c.Classify("Turn the light on"))
	assert.Equal(t, Command{Intent: IntentTorch, TorchOn: false, Text: "light off please"}, c.Classify("light off please"))
	assert.Equal(t, IntentMode, c.Classify("guide me to the door").Intent)
	assert.Equal(t, IntentStop, c.Classify("Please be quiet").Intent)
	assert.Equal(t, IntentQuestion, c.Classify("what color is this shirt").Intent)
}

type mockController struct{ mock.Mock }

func (m *mockController) Select(mode message.Mode) (message.Mode, error) {
	args := m.Called(mode)
	return args.Get(0).(message.Mode), args.Error(1)
}

func (m *mockController) Stop() error { return m.Called().Error(0) }

func (m *mockController) Describe() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *mockController) Ask(question string) (bool, error) {
	args := m.Called(question)
	return args.Bool(0), args.Error(1)
}

func (m *mockController) SetTorch(on bool) error { return m.Called(on).Error(0) }

func TestRouterDispatch(t *testing.T) {
	ctrl := &mockController{}
	r := NewRouter(classifier(t, "tr"), ctrl)

	ctrl.On("Stop").Return(nil).Once()
	ctrl.On("Select", message.ModeRead).Return(message.ModeRead, nil).Once()
	ctrl.On("Describe").Return(true, nil).Once()
	ctrl.On("SetTorch", true).Return(nil).Once()
	ctrl.On("Ask", "bu otobüs kaç numara").Return(true, nil).Once()

	for _, u := range []string{"sus", "oku", "anlat", "ışığı yak", "Bu otobüs kaç numara"} {
		_, err := r.Handle(u)
		require.NoError(t, err, u)
	}
	ctrl.AssertExpectations(t)
}

func TestRouterFallbackAsksInReadMode(t *testing.T) {
	ctrl := &mockController{}
	r := NewRouter(classifier(t, "en"), ctrl)
	ctrl.On("Ask", "how much is this bill").Return(true, nil).Once()

	cmd, err := r.Handle("How much is this bill")
	require.NoError(t, err)
	assert.Equal(t, IntentQuestion, cmd.Intent)
	ctrl.AssertExpectations(t)
}

func TestRouterIgnoresEmptyUtterance(t *testing.T) {
	ctrl := &mockController{}
	r := NewRouter(classifier(t, "en"), ctrl)

	cmd, err := r.Handle("")
	require.NoError(t, err)
	assert.Equal(t, IntentNone, cmd.Intent)
	ctrl.AssertNotCalled(t, "Ask", mock.Anything)
}

func TestRouterWrapsErrors(t *testing.T) {
	ctrl := &mockController{}
	r := NewRouter(classifier(t, "en"), ctrl)
	ctrl.On("Stop").Return(errors.New("stopped"))

	_, err := r.Handle("stop")
	assert.ErrorContains(t, err, "applying stop command")
}

func TestRouterRunConsumesStream(t *testing.T) {
	ctrl := &mockController{}
	r := NewRouter(classifier(t, "en"), ctrl)
	ctrl.On("Select", message.ModeScan).Return(message.ModeScan, nil).Once()
	ctrl.On("Describe").Return(false, nil).Once()

	utterances := make(chan string, 2)
	utterances <- "scan"
	utterances <- "describe"
	close(utterances)

	r.Run(context.Background(), utterances)
	ctrl.AssertExpectations(t)
}
