package wavetable

import "math"

// Oscillator produces one sample per Update call from a shared,
// read-only Table, maintaining phase in [0,1) per spec's floored-
// modulo phase accumulation. Mirrors the teacher's voice.phase advance
// and interpolated table read in wavetable/engine.go's former
// RenderFrame, factored into its own reusable type.
type Oscillator struct {
	table  *Table
	volume float32
	phase  float64 // always in [0,1)
}

// Phase01 exposes the current phase in [0,1) for tests.
func (o *Oscillator) Phase01() float64 {
	return o.phase
}

// SetPhase forces the phase to an arbitrary value, wrapped into [0,1).
func (o *Oscillator) SetPhase(p float64) {
	o.phase = flooredMod(p, 1)
}

// Update advances phase by freqHz/sampleRate/cycles and returns the
// (linearly interpolated) sample at the prior phase, scaled by volume
// and the table's preAmp. Linear interpolation is always applied: the
// teacher's engines already interpolate unconditionally, which
// satisfies spec's "must be used when table length < 4096" a fortiori.
func (o *Oscillator) Update(sampleRate, freqHz float64) float32 {
	frames := len(o.table.Samples)
	if frames == 0 || sampleRate <= 0 {
		return 0
	}
	fFrames := float64(frames)
	pos := o.phase * fFrames
	i0 := int(math.Floor(pos))
	frac := pos - float64(i0)
	i0 = ((i0 % frames) + frames) % frames
	i1 := (i0 + 1) % frames
	s0 := o.table.Samples[i0]
	s1 := o.table.Samples[i1]
	sample := s0 + (s1-s0)*float32(frac)

	cycles := o.table.Cycles
	if cycles < 1 {
		cycles = 1
	}
	delta := freqHz / sampleRate / float64(cycles)
	o.phase = flooredMod(o.phase+delta, 1)

	return sample * o.volume * o.table.PreAmp
}

// SetVolume updates the oscillator's output scalar live.
func (o *Oscillator) SetVolume(v float32) {
	o.volume = v
}

// flooredMod is Euclidean/floored modulo: the result always has the
// same sign as m, so negative phaseDelta (reverse playback) wraps
// correctly, per spec §4.3.
func flooredMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}
