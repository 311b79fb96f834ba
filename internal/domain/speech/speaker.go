package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/platform/config"
	"dogtranslator/internal/platform/logging"
)

const (
	defaultVoice   = "en-US-AnaNeural"
	receiveTimeout = 20
)

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, settings VoiceSettings) ([]byte, error)
}

// EdgeSynthesizer uses the Edge neural TTS service.
type EdgeSynthesizer struct{}

func (EdgeSynthesizer) Synthesize(ctx context.Context, text, voice string, settings VoiceSettings) ([]byte, error) {
	type result struct {
		audio []byte
		err   error
	}
	done := make(chan result, 1)

	go func() {
		comm, err := edge_tts.NewCommunicate(text,
			edge_tts.SetVoice(voice),
			edge_tts.SetRate(settings.EdgeRate()),
			edge_tts.SetPitch(settings.EdgePitch()),
			edge_tts.SetReceiveTimeout(receiveTimeout),
		)
		if err != nil {
			done <- result{err: fmt.Errorf("create tts session: %w", err)}
			return
		}
		audio, err := comm.Stream()
		done <- result{audio: audio, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("tts synthesis failed: %w", r.err)
		}
		return r.audio, nil
	}
}

// Speech is a synthesised utterance on disk.
type Speech struct {
	Path     string
	Tone     model.Tone
	Duration time.Duration // zero when the MP3 length is unknown
	Bytes    int
}

// Speaker reads explanations aloud in the voice of their tone.
type Speaker struct {
	synth     Synthesizer
	voice     string
	outputDir string
	logger    *logging.Logger
}

// NewSpeaker builds a Speaker. A nil synth uses EdgeSynthesizer.
func NewSpeaker(cfg config.SpeechConfig, synth Synthesizer, logger *logging.Logger) *Speaker {
	if synth == nil {
		synth = EdgeSynthesizer{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoice
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &Speaker{synth: synth, voice: voice, outputDir: outputDir, logger: logger}
}

// Speak synthesises text and writes it to an MP3 file.
func (s *Speaker) Speak(ctx context.Context, text string, tone model.Tone) (*Speech, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("speech: text cannot be empty")
	}
	settings := SettingsFor(tone)

	s.logger.InfoTag("TTS", "synthesising speech", map[string]any{
		"tone":  string(tone),
		"voice": s.voice,
		"rate":  settings.EdgeRate(),
		"pitch": settings.EdgePitch(),
		"chars": len(text),
	})
	start := time.Now()
	audio, err := s.synth.Synthesize(ctx, text, s.voice, settings)
	if err != nil {
		s.logger.ErrorTag("TTS", "synthesis failed: %v", err)
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("speech: synthesiser returned no audio")
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create speech directory: %w", err)
	}
	path := filepath.Join(s.outputDir, fmt.Sprintf("speech_%d.mp3", time.Now().UnixNano()))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return nil, fmt.Errorf("write speech file: %w", err)
	}

	out := &Speech{Path: path, Tone: tone, Bytes: len(audio)}
	if d, err := Duration(bytes.NewReader(audio)); err != nil {
		s.logger.WarnTag("TTS", "cannot determine speech duration: %v", err)
	} else {
		out.Duration = d
	}

	s.logger.DebugTag("TTS", "speech written", map[string]any{
		"path":        path,
		"bytes":       out.Bytes,
		"duration_ms": out.Duration.Milliseconds(),
		"elapsed_ms":  time.Since(start).Milliseconds(),
	})
	return out, nil
}

// Duration decodes an MP3 stream and returns its play length.
func Duration(r io.Reader) (time.Duration, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	length := dec.Length()
	rate := dec.SampleRate()
	if length <= 0 || rate <= 0 {
		return 0, errors.New("mp3 length unknown")
	}
	// 16-bit stereo PCM: 4 bytes per sample frame
	return time.Duration(length) * time.Second / time.Duration(4*rate), nil
}
