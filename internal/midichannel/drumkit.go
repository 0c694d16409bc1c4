package midichannel

import (
	"github.com/cbegin/miditone/internal/envelope"
	"github.com/cbegin/miditone/internal/wavetable"
)

// drumVoice is the default timbre and stereo placement for one GM
// percussion key (channel 10 convention). Grounded on the standard GM
// drum map's note numbers (35-81) and a coarse placement convention
// (kicks/snares centered, hi-hats/cymbals panned, toms spread
// left-to-right) — the spec leaves the exact drum-kit pan table
// unspecified beyond "pan from drum-note default table".
type drumVoice struct {
	Waveform wavetable.WaveformId
	Pan      float64
	Envelope envelope.Params
}

func drumEnvelope(decay, sampleRate float64) envelope.Params {
	return envelope.Params{
		Peak:       1.0,
		AttackSec:  0.0005,
		HoldSec:    0,
		DecaySec:   decay,
		Sustain:    0,
		FadeSlope:  1,
		ReleaseSec: 0.02,
		SampleRate: sampleRate,
	}
}

// DrumVoiceFor returns the default waveform/pan/envelope for a GM
// percussion note on the drum channel. Notes without a case below,
// including every note outside the standard 35-81 range, fall back to
// a centered noise hit.
func DrumVoiceFor(note int, sampleRate float64) (wavetable.WaveformId, float64, envelope.Params) {
	switch note {
	case 35, 36: // Acoustic/Bass Drum
		return wavetable.Sine, 0, drumEnvelope(0.25, sampleRate)
	case 38, 40: // Acoustic/Electric Snare
		return wavetable.WhiteNoise, 0, drumEnvelope(0.15, sampleRate)
	case 42, 44: // Closed/Pedal Hi-Hat
		return wavetable.DrumNoise, 0.5, drumEnvelope(0.05, sampleRate)
	case 46: // Open Hi-Hat
		return wavetable.DrumNoise, 0.5, drumEnvelope(0.2, sampleRate)
	case 49, 57: // Crash Cymbal 1/2
		return wavetable.DrumNoise, -0.6, drumEnvelope(0.8, sampleRate)
	case 51, 59: // Ride Cymbal 1/2
		return wavetable.DrumNoise, 0.6, drumEnvelope(0.6, sampleRate)
	case 41, 43, 45, 47, 48, 50: // Low..High Toms
		pan := float64(note-45) * 0.15
		return wavetable.Sine, pan, drumEnvelope(0.3, sampleRate)
	case 39: // Hand Clap
		return wavetable.WhiteNoise, 0, drumEnvelope(0.1, sampleRate)
	case 37: // Side Stick
		return wavetable.WhiteNoise, 0, drumEnvelope(0.05, sampleRate)
	default:
		return wavetable.DrumNoise, 0, drumEnvelope(0.2, sampleRate)
	}
}
