// Package lfo implements the sine low-frequency oscillator used for
// vibrato (pitch) and tremolo (amplitude) modulation.
package lfo

import "math"

// LFO is a sine oscillator with a configurable rate and pre-delay.
// Adapted from the teacher's internal/lfo package: phase accumulation
// and Reset/Active are kept, the waveform is narrowed to sine-only per
// spec (the teacher's WaveSaw/WaveSquare/WaveTriangle/WaveRandom
// constants are dropped here), and a pre-delay sample counter is added
// that the teacher's LFO has no equivalent of.
type LFO struct {
	rateHz     float64
	phase      float64 // radians
	phaseInc   float64 // radians per sample, recomputed on SetRate
	preDelay   int     // samples to wait before output begins
	sampleCtr  int
	sampleRate float64
}

// New creates an LFO at the given sample rate, rate in Hz, and
// pre-delay in seconds.
func New(sampleRate, rateHz, preDelaySec float64) *LFO {
	l := &LFO{sampleRate: sampleRate}
	l.SetRate(rateHz)
	l.SetPreDelay(preDelaySec)
	return l
}

// SetRate updates the oscillation rate live.
func (l *LFO) SetRate(rateHz float64) {
	l.rateHz = rateHz
	if l.sampleRate > 0 {
		l.phaseInc = 2 * math.Pi * rateHz / l.sampleRate
	}
}

// SetPreDelay updates the pre-delay live, in seconds.
func (l *LFO) SetPreDelay(sec float64) {
	if sec < 0 {
		sec = 0
	}
	l.preDelay = int(sec * l.sampleRate)
}

// Update advances phase unconditionally (so enabling the LFO mid-note
// produces a continuous waveform once pre-delay elapses) and returns 0
// until the pre-delay has elapsed, then sin(phase).
func (l *LFO) Update() float64 {
	l.phase += l.phaseInc
	if l.phase >= 2*math.Pi {
		l.phase -= 2 * math.Pi
	}
	if l.sampleCtr < l.preDelay {
		l.sampleCtr++
		return 0
	}
	return math.Sin(l.phase)
}

// Reset zeroes phase and the pre-delay counter.
func (l *LFO) Reset() {
	l.phase = 0
	l.sampleCtr = 0
}

// Active reports whether the LFO has a non-zero rate and so is worth
// sampling on the hot path.
func (l *LFO) Active() bool {
	return l.rateHz != 0
}

// Phase exposes the current phase in radians, for tests.
func (l *LFO) Phase() float64 {
	return l.phase
}
