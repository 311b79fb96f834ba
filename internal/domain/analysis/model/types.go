package model

import (
	"fmt"
	"strings"
	"time"
)

// Tone selects the response style of the backend and the voice used for playback.
type Tone string

const (
	TonePlayful Tone = "playful"
	ToneCalm    Tone = "calm"
	ToneTrainer Tone = "trainer"
)

// DefaultTone is used when the caller does not choose one.
const DefaultTone = TonePlayful

// Tones lists every supported tone.
var Tones = []Tone{TonePlayful, ToneCalm, ToneTrainer}

// ParseTone accepts a tone name case-insensitively; an empty string yields DefaultTone.
func ParseTone(s string) (Tone, error) {
	v := Tone(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return DefaultTone, nil
	}
	for _, t := range Tones {
		if t == v {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tone %q (want playful, calm or trainer)", s)
}

func (t Tone) Valid() bool {
	_, err := ParseTone(string(t))
	return err == nil && t != ""
}

func (t Tone) String() string { return string(t) }

// AnalysisRequest is one user action. It is only persisted when queued.
type AnalysisRequest struct {
	ImageURI string
	Tone     Tone
	Save     bool
}

// Result status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// AnalysisResult is the normalized backend reply.
// Confidence == 0 means no dog was detected, which is not a transport failure.
type AnalysisResult struct {
	Status      string  `json:"status"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
	Breed       string  `json:"breed,omitempty"`
	Source      string  `json:"source,omitempty"`
	ShareID     string  `json:"share_id,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// NoDogDetected reports the zero-confidence sentinel on a successful reply.
func (r AnalysisResult) NoDogDetected() bool {
	return r.Status == StatusOK && r.Confidence == 0
}

// QueuedItem is a pending analysis waiting for connectivity.
type QueuedItem struct {
	ID        string    `json:"id"`
	URI       string    `json:"uri"`
	Tone      Tone      `json:"tone"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger is the logging contract consumed by the analysis domain.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
