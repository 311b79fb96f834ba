package services

import (
	"context"
	"sync/atomic"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/eventbus"
	"dogtranslator/internal/domain/speech"
	"dogtranslator/internal/platform/logging"
)

// Speaker synthesises text in the voice of a tone.
type Speaker interface {
	Speak(ctx context.Context, text string, tone model.Tone) (*speech.Speech, error)
}

// AutoSpeakSetting reports whether results are read aloud automatically.
type AutoSpeakSetting interface {
	AutoSpeak() bool
}

// SpeechConfig wires a SpeechService.
type SpeechConfig struct {
	Speaker  Speaker
	Settings AutoSpeakSetting
	Logger   *logging.Logger
}

// SpeechService reads interpretation results aloud.
type SpeechService struct {
	speaker  Speaker
	settings AutoSpeakSetting
	logger   *logging.Logger

	spoken int32
	last   atomic.Pointer[speech.Speech]
}

func NewSpeechService(cfg *SpeechConfig) *SpeechService {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &SpeechService{
		speaker:  cfg.Speaker,
		settings: cfg.Settings,
		logger:   logger,
	}
}

// SpeakResult reads res aloud. Results without a detected dog are skipped.
func (s *SpeechService) SpeakResult(ctx context.Context, res model.AnalysisResult, tone model.Tone) (*speech.Speech, error) {
	if res.Status != model.StatusOK || res.NoDogDetected() || res.Explanation == "" {
		s.logger.DebugTag("TTS", "nothing to speak")
		return nil, nil
	}
	out, err := s.speaker.Speak(ctx, res.Explanation, tone)
	if err != nil {
		return nil, err
	}
	atomic.AddInt32(&s.spoken, 1)
	s.last.Store(out)
	return out, nil
}

// Attach speaks completed analyses while the auto-speak setting is on.
// Handlers run asynchronously; call bus.WaitAsync before exiting.
func (s *SpeechService) Attach(bus *eventbus.Bus) error {
	return bus.SubscribeAsync(eventbus.EventAnalysisCompleted, s.onCompleted)
}

func (s *SpeechService) onCompleted(d eventbus.AnalysisCompletedData) {
	if s.settings == nil || !s.settings.AutoSpeak() || d.Replayed {
		return
	}
	if _, err := s.SpeakResult(context.Background(), d.Result, d.Request.Tone); err != nil {
		s.logger.WarnTag("TTS", "auto-speak failed: %v", err)
	}
}

// Spoken returns how many results were read aloud.
func (s *SpeechService) Spoken() int {
	return int(atomic.LoadInt32(&s.spoken))
}

// Last returns the most recent utterance, or nil.
func (s *SpeechService) Last() *speech.Speech {
	return s.last.Load()
}
