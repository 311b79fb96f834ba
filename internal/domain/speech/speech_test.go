package speech

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/platform/config"
)

type fakeSynth struct {
	voice    string
	settings VoiceSettings
	audio    []byte
	err      error
}

func (f *fakeSynth) Synthesize(_ context.Context, _ string, voice string, settings VoiceSettings) ([]byte, error) {
	f.voice = voice
	f.settings = settings
	return f.audio, f.err
}

func TestToneSettings(t *testing.T) {
	tests := []struct {
		tone  model.Tone
		want  VoiceSettings
		rate  string
		pitch string
	}{
		{model.TonePlayful, VoiceSettings{Pitch: 1.3, Rate: 1.05}, "+5%", "+30Hz"},
		{model.ToneCalm, VoiceSettings{Pitch: 0.85, Rate: 0.8}, "-20%", "-15Hz"},
		{model.ToneTrainer, VoiceSettings{Pitch: 1.0, Rate: 0.95}, "-5%", "+0Hz"},
	}
	for _, tt := range tests {
		t.Run(string(tt.tone), func(t *testing.T) {
			got := SettingsFor(tt.tone)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rate, got.EdgeRate())
			assert.Equal(t, tt.pitch, got.EdgePitch())
		})
	}

	assert.Equal(t, SettingsFor(model.DefaultTone), SettingsFor("unknown"))
}

func TestSpeakWritesFile(t *testing.T) {
	dir := t.TempDir()
	synth := &fakeSynth{audio: []byte("not really mp3")}
	sp := NewSpeaker(config.SpeechConfig{OutputDir: dir}, synth, nil)

	out, err := sp.Speak(context.Background(), "  Let's play!  ", model.TonePlayful)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(out.Path))
	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, synth.audio, data)
	assert.Zero(t, out.Duration, "undecodable audio has unknown duration")
	assert.Equal(t, defaultVoice, synth.voice)
	assert.Equal(t, SettingsFor(model.TonePlayful), synth.settings)
}

func TestSpeakErrors(t *testing.T) {
	sp := NewSpeaker(config.SpeechConfig{OutputDir: t.TempDir()}, &fakeSynth{}, nil)
	_, err := sp.Speak(context.Background(), "   ", model.ToneCalm)
	assert.Error(t, err)

	_, err = sp.Speak(context.Background(), "hello", model.ToneCalm)
	assert.Error(t, err, "empty audio")

	boom := errors.New("boom")
	sp = NewSpeaker(config.SpeechConfig{OutputDir: t.TempDir()}, &fakeSynth{err: boom}, nil)
	_, err = sp.Speak(context.Background(), "hello", model.ToneCalm)
	assert.ErrorIs(t, err, boom)
}

func TestDurationRejectsGarbage(t *testing.T) {
	_, err := Duration(bytes.NewReader([]byte("definitely not an mp3 stream")))
	assert.Error(t, err)
}
