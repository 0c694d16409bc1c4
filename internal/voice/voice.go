// Package voice implements a single sounding note: an oscillator and
// envelope pair plus pan/pitch-bend resolution, matching spec's C6
// Voice component.
package voice

import (
	"math"

	"github.com/cbegin/miditone/internal/envelope"
	"github.com/cbegin/miditone/internal/lfo"
	"github.com/cbegin/miditone/internal/wavetable"
)

// Voice is a single sounding note. Grounded on the teacher's per-slot
// voice struct in wavetable/engine.go, refactored from an
// array-of-structs scanned by the engine into an owned type whose
// Update the pool calls directly.
type Voice struct {
	Osc      *wavetable.Oscillator
	Env      *envelope.Generator
	NoteNo   int
	Bend     float64 // pitch-bend offset in semitones
	Volume   float32
	Pan      *float64 // nil = use channel pan; set for drum-kit overrides
	hold     bool
	pendingOff bool

	Vibrato      *lfo.LFO
	vibratoDepth float64 // semitones at full LFO excursion
	vibratoMod   float64 // last sampled LFO output, applied to Freq

	sampleRate float64
}

// New constructs a Voice bound to osc/env for the given note.
func New(osc *wavetable.Oscillator, env *envelope.Generator, noteNo int, volume float32, sampleRate float64) *Voice {
	return &Voice{Osc: osc, Env: env, NoteNo: noteNo, Volume: volume, sampleRate: sampleRate}
}

// SetVibrato installs the per-voice vibrato LFO. A nil LFO disables
// vibrato entirely.
func (v *Voice) SetVibrato(l *lfo.LFO) {
	v.Vibrato = l
}

// SetVibratoDepth updates the vibrato excursion in semitones, driven by
// the channel's Mod Wheel (CC1).
func (v *Voice) SetVibratoDepth(semitones float64) {
	v.vibratoDepth = semitones
}

// Freq computes the voice's current frequency in equal temperament:
// 440 * 2^((noteNo+bend+vibrato-69)/12).
func (v *Voice) Freq() float64 {
	return 440 * math.Pow(2, (float64(v.NoteNo)+v.Bend+v.vibratoMod*v.vibratoDepth-69)/12)
}

// Update renders one mono sample: oscillator * envelope * volume. The
// vibrato LFO is advanced once per sample here so Freq can read a
// stable value for the oscillator's phase step this sample.
func (v *Voice) Update() float32 {
	if v.Vibrato != nil {
		v.vibratoMod = v.Vibrato.Update()
	}
	osc := v.Osc.Update(v.sampleRate, v.Freq())
	env := v.Env.Update()
	return osc * env * v.Volume
}

// IsBusy mirrors spec's `isBusy <-> envelope.state != Free` invariant.
func (v *Voice) IsBusy() bool {
	return v.Env.IsBusy()
}

// NoteOff releases the voice unless sustain (hold) is active, in which
// case the release is deferred until SetHold(false).
func (v *Voice) NoteOff() {
	if v.hold {
		v.pendingOff = true
		return
	}
	v.Env.NoteOff()
}

// NoteCut hard-stops the voice immediately, for voice stealing or
// All Sound Off.
func (v *Voice) NoteCut() {
	v.Env.Reset()
	v.pendingOff = false
}

// SetHold updates the sustain-pedal state for this voice. On the
// false transition, a deferred note-off is delivered immediately.
func (v *Voice) SetHold(hold bool) {
	v.hold = hold
	if !hold && v.pendingOff {
		v.pendingOff = false
		v.Env.NoteOff()
	}
}

// SetPitchBend updates the voice's semitone offset; frequency is
// recomputed lazily on the next Update.
func (v *Voice) SetPitchBend(semitones float64) {
	v.Bend = semitones
}

// SetPan overrides the channel pan for this voice (drum-kit notes).
func (v *Voice) SetPan(pan float64) {
	v.Pan = &pan
}
