// Package instrument loads optional per-program envelope/waveform
// overrides from a TOML file, matching spec §6's "optional instrument
// definition file". The core synthesizer works unmodified when no
// override file is present; this package only ever narrows the
// built-in GM program table (internal/midichannel.ProgramTimbre).
package instrument

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/cbegin/miditone/internal/envelope"
	"github.com/cbegin/miditone/internal/wavetable"
)

// Override describes one program's replacement timbre. Zero-valued
// fields are left for the caller to interpret as "use the GM default"
// except where noted.
type Override struct {
	Waveform   uint32  `toml:"waveform"`
	AttackSec  float64 `toml:"attack_sec"`
	HoldSec    float64 `toml:"hold_sec"`
	DecaySec   float64 `toml:"decay_sec"`
	Sustain    float64 `toml:"sustain"`
	FadeSlope  float64 `toml:"fade_slope"`
	ReleaseSec float64 `toml:"release_sec"`
	Pan        float64 `toml:"pan"`
	HasPan     bool    `toml:"-"`
}

// document is the on-disk shape: a table of program-number (as a
// decimal string key, since TOML tables key on strings) to Override.
type document struct {
	Program map[string]Override `toml:"program"`
}

// Set is a loaded collection of program overrides, keyed by GM program
// number (0-127).
type Set struct {
	overrides map[uint8]Override
}

// Empty returns a Set with no overrides, equivalent to no file present.
func Empty() *Set {
	return &Set{overrides: map[uint8]Override{}}
}

// Load parses path as a TOML instrument-override file, per
// BurntSushi/toml's DecodeFile convention.
func Load(path string) (*Set, error) {
	var doc document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("instrument: loading %q: %w", path, err)
	}
	s := &Set{overrides: make(map[uint8]Override, len(doc.Program))}
	for key, ov := range doc.Program {
		program, err := parseProgramKey(key)
		if err != nil {
			return nil, fmt.Errorf("instrument: %q: %w", path, err)
		}
		ov.HasPan = ov.Pan != 0
		s.overrides[program] = ov
	}
	return s, nil
}

func parseProgramKey(key string) (uint8, error) {
	var n int
	if _, err := fmt.Sscanf(key, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid program key %q: %w", key, err)
	}
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("program %d out of MIDI range 0-127", n)
	}
	return uint8(n), nil
}

// Lookup returns the override for program and whether one exists.
func (s *Set) Lookup(program uint8) (Override, bool) {
	if s == nil {
		return Override{}, false
	}
	ov, ok := s.overrides[program]
	return ov, ok
}

// Apply resolves program against the Set, falling back to fallback
// when no override exists, and returns the resulting waveform and
// envelope parameters (sampleRate is only needed to stamp into the
// returned Params).
func (s *Set) Apply(program uint8, sampleRate float64, fallback wavetable.WaveformId, fallbackEnv envelope.Params) (wavetable.WaveformId, envelope.Params) {
	ov, ok := s.Lookup(program)
	if !ok {
		return fallback, fallbackEnv
	}
	wf := fallback
	if ov.Waveform != 0 {
		wf = wavetable.WaveformId(ov.Waveform)
	}
	params := fallbackEnv
	if ov.AttackSec != 0 {
		params.AttackSec = ov.AttackSec
	}
	if ov.HoldSec != 0 {
		params.HoldSec = ov.HoldSec
	}
	if ov.DecaySec != 0 {
		params.DecaySec = ov.DecaySec
	}
	if ov.Sustain != 0 {
		params.Sustain = ov.Sustain
	}
	if ov.FadeSlope != 0 {
		params.FadeSlope = ov.FadeSlope
	}
	if ov.ReleaseSec != 0 {
		params.ReleaseSec = ov.ReleaseSec
	}
	params.SampleRate = sampleRate
	return wf, params
}
