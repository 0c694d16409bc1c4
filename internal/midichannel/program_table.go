package midichannel

import (
	"github.com/cbegin/miditone/internal/envelope"
	"github.com/cbegin/miditone/internal/wavetable"
)

// timbre pairs a wavetable selection with the envelope shape a GM
// program family is expected to have. Tone color is deliberately
// limited to the analytic wavetable presets per spec's non-goal
// ("no sample-based playback... tone color comes from analytic
// wavetables"); this table buckets the 128 GM programs into their 16
// standard families of 8 and gives each family a representative
// waveform and envelope contour (percussive families get fast
// attack/decay, the synth lead/pad/effects families get slow attack and
// long fade, and the remaining families keep the default contour).
type timbre struct {
	Waveform wavetable.WaveformId
	Envelope envelope.Params
}

// gmFamily returns which of the 16 standard 8-program GM families a
// program belongs to.
func gmFamily(program uint8) int {
	return int(program) / 8
}

// ProgramTimbre returns the default timbre for a melodic program,
// before any instrument.toml override is applied.
func ProgramTimbre(program uint8, sampleRate float64) timbre {
	family := gmFamily(program)
	waveforms := []wavetable.WaveformId{
		wavetable.Square50, wavetable.Sine, wavetable.Square33, wavetable.Sine,
	}
	wf := waveforms[family%len(waveforms)]

	base := envelope.Params{
		Peak:       1.0,
		AttackSec:  0.01,
		HoldSec:    0.0,
		DecaySec:   0.15,
		Sustain:    0.7,
		FadeSlope:  0.2,
		ReleaseSec: 0.2,
		SampleRate: sampleRate,
	}

	switch {
	case family == 0 || family == 8: // Piano, Reed
		base.AttackSec = 0.002
		base.DecaySec = 0.6
		base.Sustain = 0.2
		base.FadeSlope = 0.15
		base.ReleaseSec = 0.3
		wf = wavetable.Square25
	case family >= 1 && family <= 2: // Chromatic Percussion, Organ
		base.AttackSec = 0.01
		base.DecaySec = 0.05
		base.Sustain = 0.9
		base.FadeSlope = 0.05
		base.ReleaseSec = 0.1
	case family >= 10 && family <= 12: // Synth Lead, Synth Pad, Synth Effects
		base.AttackSec = 0.3
		base.DecaySec = 0.2
		base.Sustain = 0.8
		base.FadeSlope = 0.02
		base.ReleaseSec = 0.6
	case family >= 14: // Percussive, Sound Effects
		base.AttackSec = 0.001
		base.DecaySec = 0.1
		base.Sustain = 0.0
		base.FadeSlope = 0.3
		base.ReleaseSec = 0.05
		wf = wavetable.WhiteNoise
	}
	return timbre{Waveform: wf, Envelope: base}
}
