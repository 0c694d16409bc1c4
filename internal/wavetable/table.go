// Package wavetable implements the registry of normalized single-cycle
// waveforms and the phase-accumulating oscillator that reads them.
package wavetable

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
)

// WaveformId names a registered waveform. Values below 1024 are
// reserved presets; custom waveforms start at 1024.
type WaveformId uint32

const (
	Ground     WaveformId = 0
	Sine       WaveformId = 1
	Square50   WaveformId = 2
	Square33   WaveformId = 3
	Square25   WaveformId = 4
	WhiteNoise WaveformId = 100
	DrumNoise  WaveformId = 200

	FirstCustomId WaveformId = 1024
)

// defaultOvertones mirrors the teacher engines' additive-synthesis
// order used for their band-limited pulse waveforms.
const defaultOvertones = 30

// Table is a read-only single-cycle waveform, shareable by any number
// of Oscillators once built.
type Table struct {
	Samples []float32
	PreAmp  float32
	Cycles  int
}

// Set is a registry of WaveformId -> Table, built lazily on first use
// and never mutated afterward, matching the teacher's
// build-once/play-many-times wavetable discipline.
type Set struct {
	mu         sync.Mutex
	tables     map[WaveformId]*Table
	sampleRate int
	logger     *slog.Logger
}

// NewSet creates an empty registry. logger may be nil.
func NewSet(sampleRate int, logger *slog.Logger) *Set {
	return &Set{
		tables:     make(map[WaveformId]*Table),
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// Warm pre-builds the standard preset tables so construction never
// happens on the audio thread once rendering starts.
func (s *Set) Warm() {
	for _, id := range []WaveformId{Ground, Sine, Square50, Square33, Square25, WhiteNoise, DrumNoise} {
		s.table(id)
	}
}

// Register installs a custom table under id, overwriting any existing
// entry. Intended for startup-time instrument loading, never from the
// audio thread.
func (s *Set) Register(id WaveformId, t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[id] = t
}

// Generator returns an Oscillator bound to the table for id. An
// unregistered id falls back silently to Ground and logs a warning;
// this method never panics.
func (s *Set) Generator(id WaveformId, volume float32) *Oscillator {
	return &Oscillator{table: s.table(id), volume: volume}
}

func (s *Set) table(id WaveformId) *Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[id]; ok {
		return t
	}
	t := s.build(id)
	if t == nil {
		if s.logger != nil {
			s.logger.Warn("unregistered waveform id, falling back to ground", "id", id)
		}
		t = groundTable()
	}
	s.tables[id] = t
	return t
}

func (s *Set) build(id WaveformId) *Table {
	switch id {
	case Ground:
		return groundTable()
	case Sine:
		return buildSine(2048)
	case Square50:
		return buildPulse(0.5, defaultOvertones)
	case Square33:
		return buildPulse(1.0/3.0, defaultOvertones)
	case Square25:
		return buildPulse(0.25, defaultOvertones)
	case WhiteNoise:
		return buildWhiteNoise(1.0, s.sampleRate)
	case DrumNoise:
		return buildDrumNoise(s.sampleRate)
	default:
		return nil
	}
}

func groundTable() *Table {
	return &Table{Samples: []float32{0, 0, 0, 0}, PreAmp: 1, Cycles: 1}
}

// buildSine fills n samples of sin(2*pi*i/n), per spec's N>=1024 rule
// for <0.1% THD.
func buildSine(n int) *Table {
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = float32(math.Sin(2 * math.Pi * float64(i) / float64(n)))
	}
	return &Table{Samples: samples, PreAmp: 1, Cycles: 1}
}

// buildPulse band-limits a duty-cycle square wave by additive
// synthesis of every harmonic up to overtones (the even ones vanish
// only at 50% duty), matching the teacher's reliance on
// additive/polyBLEP band-limiting rather than a naive step function.
// Duty constants (0.5, 1/3, 0.25) follow internal/chiptune's
// PulseDutyA/PulseDutyB (0.125/0.25) scaled to the Square33/Square25
// naming used here.
func buildPulse(duty float64, overtones int) *Table {
	const n = 2048
	samples := make([]float32, n)
	var peak float64
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n)
		var v float64
		for k := 1; k <= overtones; k++ {
			// Fourier series of a duty-cycle pulse train.
			coeff := (2.0 / (math.Pi * float64(k))) * math.Sin(math.Pi*float64(k)*duty)
			v += coeff * math.Cos(2*math.Pi*float64(k)*t)
		}
		v = duty*2 - 1 + 2*v
		samples[i] = float32(v)
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	if peak > 1e-9 {
		scale := float32(1.0 / peak)
		for i := range samples {
			samples[i] *= scale
		}
	}
	return &Table{Samples: samples, PreAmp: 1, Cycles: 1}
}

// buildWhiteNoise fills a table of at least `seconds` seconds at
// sampleRate with uniform [-1,1] values, per spec's "table length >= 1s
// at 44.1kHz" rule.
func buildWhiteNoise(seconds float64, sampleRate int) *Table {
	n := int(float64(sampleRate) * seconds)
	if n < 1 {
		n = sampleRate
	}
	rng := rand.New(rand.NewSource(1))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(rng.Float64()*2 - 1)
	}
	return &Table{Samples: samples, PreAmp: 1, Cycles: 1}
}

// buildDrumNoise produces filtered noise with a decaying envelope
// baked into the table, using a 16-bit Fibonacci-form LFSR (bit 0 xor
// bit 1 fed back into bit 15) modeled on the teacher's NES APU noise channel
// (internal/nesapu's seedLFSR/renderNoise), rather than math/rand,
// since the LFSR's short period gives the buzzy "drum noise" texture
// GM percussion patches expect.
func buildDrumNoise(sampleRate int) *Table {
	n := sampleRate / 4
	if n < 256 {
		n = 256
	}
	samples := make([]float32, n)
	var lfsr uint16 = 0xACE1
	var lp float64
	const alpha = 0.2
	for i := range samples {
		bit := (lfsr ^ (lfsr >> 1)) & 1
		lfsr = (lfsr >> 1) | (bit << 15)
		v := -1.0
		if lfsr&1 == 1 {
			v = 1
		}
		lp += alpha * (v - lp)
		decay := math.Exp(-4.0 * float64(i) / float64(n))
		samples[i] = float32(lp * decay)
	}
	return &Table{Samples: samples, PreAmp: 1, Cycles: 1}
}
