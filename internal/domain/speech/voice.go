package speech

import (
	"fmt"
	"math"

	"dogtranslator/internal/domain/analysis/model"
)

// VoiceSettings are multipliers relative to the voice's natural delivery.
type VoiceSettings struct {
	Pitch float64
	Rate  float64
}

var toneVoices = map[model.Tone]VoiceSettings{
	model.TonePlayful: {Pitch: 1.3, Rate: 1.05},
	model.ToneCalm:    {Pitch: 0.85, Rate: 0.8},
	model.ToneTrainer: {Pitch: 1.0, Rate: 0.95},
}

// SettingsFor returns the voice settings of tone, falling back to the
// default tone.
func SettingsFor(tone model.Tone) VoiceSettings {
	if v, ok := toneVoices[tone]; ok {
		return v
	}
	return toneVoices[model.DefaultTone]
}

// EdgeRate renders Rate as a neural TTS rate offset, e.g. "+5%".
func (v VoiceSettings) EdgeRate() string {
	return signed(percentOffset(v.Rate), "%")
}

// EdgePitch renders Pitch as a neural TTS pitch offset, e.g. "+30Hz".
func (v VoiceSettings) EdgePitch() string {
	return signed(percentOffset(v.Pitch), "Hz")
}

func percentOffset(mult float64) int {
	if mult <= 0 {
		return 0
	}
	return int(math.Round((mult - 1) * 100))
}

func signed(n int, unit string) string {
	if n < 0 {
		return fmt.Sprintf("%d%s", n, unit)
	}
	return fmt.Sprintf("+%d%s", n, unit)
}
