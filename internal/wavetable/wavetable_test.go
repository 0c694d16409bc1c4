package wavetable

import (
	"math"
	"testing"
)

func TestUnregisteredIdFallsBackToGround(t *testing.T) {
	s := NewSet(48000, nil)
	osc := s.Generator(WaveformId(9999), 1.0)
	for i := 0; i < 10; i++ {
		if v := osc.Update(48000, 440); v != 0 {
			t.Fatalf("expected ground generator to be silent, got %f", v)
		}
	}
}

func TestSineTableRoundTripsAtBaseFrequency(t *testing.T) {
	s := NewSet(48000, nil)
	osc := s.Generator(Sine, 1.0)
	table := s.table(Sine)
	n := len(table.Samples)
	sampleRate := float64(n)
	freq := 1.0 // one cycle across n samples played at rate n

	const eps = 1e-3
	for i := 0; i < n; i++ {
		got := osc.Update(sampleRate, freq)
		want := table.Samples[i]
		if math.Abs(float64(got-want)) > eps {
			t.Fatalf("sample %d: got %f want %f", i, got, want)
		}
	}
}

func TestOscillatorPhaseAdvancesByExpectedDelta(t *testing.T) {
	s := NewSet(48000, nil)
	osc := s.Generator(Sine, 1.0)
	sampleRate := 48000.0
	freq := 440.0
	const k = 100
	for i := 0; i < k; i++ {
		osc.Update(sampleRate, freq)
	}
	want := flooredMod(float64(k)*freq/sampleRate, 1)
	got := osc.Phase01()
	if math.Abs(got-want) > 1e-6*k {
		t.Fatalf("phase after %d updates: got %f want %f", k, got, want)
	}
}

func TestFlooredModWrapsNegativeCorrectly(t *testing.T) {
	got := flooredMod(-0.25, 1)
	if math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %f", got)
	}
}

func TestPulseTablesAreNormalizedAndDistinct(t *testing.T) {
	s := NewSet(48000, nil)
	for _, id := range []WaveformId{Square50, Square33, Square25} {
		table := s.table(id)
		var peak float32
		for _, v := range table.Samples {
			if v > peak {
				peak = v
			}
			if v < -peak {
				peak = -v
			}
		}
		if peak > 1.0001 {
			t.Fatalf("waveform %d not normalized, peak %f", id, peak)
		}
	}
	same := func(a, b []float32) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	s50, s33, s25 := s.table(Square50).Samples, s.table(Square33).Samples, s.table(Square25).Samples
	if same(s50, s33) || same(s50, s25) || same(s33, s25) {
		t.Fatalf("expected the three pulse tables to differ")
	}
}

func TestWhiteNoiseTableIsAtLeastOneSecond(t *testing.T) {
	s := NewSet(44100, nil)
	table := s.table(WhiteNoise)
	if len(table.Samples) < 44100 {
		t.Fatalf("expected >= 44100 samples, got %d", len(table.Samples))
	}
}
