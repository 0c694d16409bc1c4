// Package midichannel implements per-channel MIDI state and its
// conversion into voice operations, matching spec's C8 MIDI channel.
// Grounded on the teacher's runtimeState struct in
// internal/sequencer/sequencer.go for the field-shape idiom, re-
// targeted from MML score commands to real MIDI CC semantics per
// original_source's MIDI/Controller.cpp CC table.
package midichannel

import (
	"math"

	"github.com/cbegin/miditone/internal/effects"
	"github.com/cbegin/miditone/internal/envelope"
	"github.com/cbegin/miditone/internal/idgen"
	"github.com/cbegin/miditone/internal/instrument"
	"github.com/cbegin/miditone/internal/lfo"
	"github.com/cbegin/miditone/internal/voice"
	"github.com/cbegin/miditone/internal/voicemap"
	"github.com/cbegin/miditone/internal/wavetable"
)

const (
	rpnNull = 0x7F

	// vibratoRateHz and vibratoDepthSemitones match common GM module
	// defaults for Mod Wheel vibrato: a fixed ~5.5Hz rate, depth scaled
	// linearly by CC1 up to a gentle ceiling.
	vibratoRateHz        = 5.5
	vibratoDepthSemitones = 0.6
)

// rpnTarget names which parameter a latched RPN selector addresses.
type rpnTarget int

const (
	rpnNone rpnTarget = iota
	rpnPitchBendSensitivity
	rpnFineTune
	rpnCoarseTune
)

// Channel holds one of the synthesizer's 16 MIDI channels: its program
// and controller state, its voice pool, and its voice mapper. Channel
// and voice state is owned by the Synthesizer and mutated only on the
// audio thread, per spec §5; Channel itself holds no mutex (the
// Mapper and effects Chain it owns guard their own small pieces of
// state where that matters).
type Channel struct {
	Index int

	Program  uint8
	BankMSB  uint8
	BankLSB  uint8
	Volume   uint8 // CC7, default 100
	Expression uint8 // CC11, default 127
	PanCC    uint8 // CC10, default 64 (center)
	ModWheel uint8 // CC1

	pitchBendRaw int // -8192..8191
	pitchBendSensitivity float64 // semitones, default 2
	fineTuneCents  float64
	coarseTuneSemi float64

	sustain bool

	rpnMSB, rpnLSB   uint8
	nrpnMSB, nrpnLSB uint8
	activeRPN        rpnTarget

	isDrum bool

	Voices map[idgen.VoiceId]*voice.Voice
	Mapper *voicemap.Mapper

	Reverb *effects.Reverb
	Chorus *effects.Chorus
	chain  *effects.Chain

	wavetableSet *wavetable.Set
	issuer       *idgen.VoiceIssuer
	sampleRate   float64
	instruments  *instrument.Set
}

// SetInstrumentOverrides installs an optional per-program override
// table; a nil set restores plain GM program-table timbres.
func (c *Channel) SetInstrumentOverrides(set *instrument.Set) {
	c.instruments = set
}

// New constructs a Channel in its power-on default state.
func New(index int, sampleRate float64, set *wavetable.Set, issuer *idgen.VoiceIssuer) *Channel {
	c := &Channel{
		Index:        index,
		wavetableSet: set,
		issuer:       issuer,
		sampleRate:   sampleRate,
		Voices:       make(map[idgen.VoiceId]*voice.Voice),
		Mapper:       voicemap.New(),
	}
	c.resetDefaults()
	return c
}

func (c *Channel) resetDefaults() {
	c.Program = 0
	c.BankMSB = 0
	c.BankLSB = 0
	c.Volume = 100
	c.Expression = 127
	c.PanCC = 64
	c.ModWheel = 0
	c.pitchBendRaw = 0
	c.pitchBendSensitivity = 2
	c.fineTuneCents = 0
	c.coarseTuneSemi = 0
	c.sustain = false
	c.rpnMSB, c.rpnLSB = rpnNull, rpnNull
	c.nrpnMSB, c.nrpnLSB = rpnNull, rpnNull
	c.activeRPN = rpnNone
	sr := int(c.sampleRate)
	c.Reverb = effects.NewReverb(sr, 0.5, 0.6, 0)
	c.Chorus = effects.NewChorus(sr, 15, 0.2, 3, 0.5, 0)
	// Bus compressor levels velocity spikes before the sends; the
	// soft-clip saturator (unity pre/post gain, no LPF) guards against
	// inter-sample overs rather than coloring the tone; the short
	// delay is a subtle slapback with no CC hook in the GM CC table.
	bus := effects.NewCompressor(sr, -18, 3, 5, 80, 2)
	satClip := effects.NewDistortion(sr, 1.0, 1.0, 0)
	slapback := effects.NewDelay(sr, 180, 0.15, 0.1, 0.12)
	c.chain = effects.NewChain(bus, satClip, c.Reverb, c.Chorus, slapback)
	// Channel 10 (index 9) is the drum channel by GM/GS convention.
	c.isDrum = index9Convention(c.Index)
}

func index9Convention(index int) bool {
	return index == 9
}

// IsDrumChannel reports whether this channel indexes a percussion kit.
func (c *Channel) IsDrumChannel() bool {
	return c.isDrum
}

// SetDrumChannel overrides the drum-channel flag, used by GS Drum Part
// SysEx.
func (c *Channel) SetDrumChannel(drum bool) {
	c.isDrum = drum
}

// Reset restores power-on defaults and cuts every live voice, per
// spec's system reset semantics.
func (c *Channel) Reset() {
	c.AllSoundOff()
	c.Mapper.Reset()
	c.resetDefaults()
}

// pitchBendSemitones computes the currently-applicable semitone offset
// from the latched 14-bit pitch bend value and sensitivity.
func (c *Channel) pitchBendSemitones() float64 {
	return float64(c.pitchBendRaw) / 8192.0 * c.pitchBendSensitivity
}

func (c *Channel) panNormalized() float64 {
	p := (float64(c.PanCC) - 64.0) / 64.0
	if p < -1 {
		p = -1
	}
	if p > 1 {
		p = 1
	}
	return p
}

func (c *Channel) gain() float32 {
	v := float64(c.Volume) / 127.0
	e := float64(c.Expression) / 127.0
	return float32(v * v * e)
}

// NoteOn allocates a new voice for note at the given velocity (1-127;
// velocity 0 is handled by the caller dispatching NoteOff instead).
// Any displaced voice (retrigger) has its envelope released.
func (c *Channel) NoteOn(note, velocity int) {
	wf, envParams, pan, hasPan := c.timbreFor(note)
	osc := c.wavetableSet.Generator(wf, 1.0)
	env := envelope.New(envParams)

	on, off := c.Mapper.NoteOn(note, func() idgen.VoiceId { return c.issuer.Issue() })

	if !off.IsEmpty() {
		if prev, ok := c.Voices[off]; ok {
			// the displaced voice is released even while sustain is held
			prev.SetHold(false)
			prev.NoteOff()
		}
	}

	vol := float32(velocity) / 127.0
	v := voice.New(osc, env, note, vol, c.sampleRate)
	v.SetPitchBend(c.pitchBendSemitones())
	if hasPan {
		v.SetPan(pan)
	}
	v.SetHold(c.sustain)
	v.SetVibrato(lfo.New(c.sampleRate, vibratoRateHz, 0))
	v.SetVibratoDepth(c.vibratoDepth())
	env.NoteOn()
	c.Voices[on] = v
}

// vibratoDepth maps the Mod Wheel (CC1) linearly onto the vibrato
// excursion in semitones.
func (c *Channel) vibratoDepth() float64 {
	return float64(c.ModWheel) / 127.0 * vibratoDepthSemitones
}

// timbreFor resolves the wavetable/envelope/pan to use for a new
// voice: the drum kit table for drum channels, the GM program table
// otherwise.
func (c *Channel) timbreFor(note int) (wavetable.WaveformId, envelope.Params, float64, bool) {
	if c.isDrum {
		wf, pan, env := DrumVoiceFor(note, c.sampleRate)
		return wf, env, pan, true
	}
	t := ProgramTimbre(c.Program, c.sampleRate)
	if c.instruments != nil {
		wf, env := c.instruments.Apply(c.Program, c.sampleRate, t.Waveform, t.Envelope)
		return wf, env, 0, false
	}
	return t.Waveform, t.Envelope, 0, false
}

// NoteOff releases note, honoring sustain via the voice mapper's hold
// deferral.
func (c *Channel) NoteOff(note int) {
	id := c.Mapper.NoteOff(note, false)
	if id.IsEmpty() {
		return
	}
	if v, ok := c.Voices[id]; ok {
		v.NoteOff()
	}
}

// ControlChange dispatches a Control Change per spec's CC table.
func (c *Channel) ControlChange(cc, value uint8) {
	switch cc {
	case 0:
		c.BankMSB = value
	case 1:
		c.ModWheel = value
		depth := c.vibratoDepth()
		for _, v := range c.Voices {
			v.SetVibratoDepth(depth)
		}
	case 6:
		c.applyDataEntry(value, true)
	case 7:
		c.Volume = value
	case 10:
		c.PanCC = value
	case 11:
		c.Expression = value
	case 32:
		c.BankLSB = value
	case 38:
		c.applyDataEntry(value, false)
	case 64:
		c.setSustain(value >= 64)
	case 91:
		c.Reverb.SetWet(float32(value) / 127.0)
	case 93:
		c.Chorus.SetWet(float32(value) / 127.0)
	case 98:
		c.nrpnLSB = value
		c.activeRPN = rpnNone
	case 99:
		c.nrpnMSB = value
		c.activeRPN = rpnNone
	case 100:
		c.rpnLSB = value
		c.activeRPN = c.resolveRPN()
	case 101:
		c.rpnMSB = value
		c.activeRPN = c.resolveRPN()
	case 120:
		c.AllSoundOff()
	case 121:
		c.ResetAllControllers()
	case 123:
		c.AllNotesOff()
	}
}

func (c *Channel) resolveRPN() rpnTarget {
	switch {
	case c.rpnMSB == 0 && c.rpnLSB == 0:
		return rpnPitchBendSensitivity
	case c.rpnMSB == 0 && c.rpnLSB == 1:
		return rpnFineTune
	case c.rpnMSB == 0 && c.rpnLSB == 2:
		return rpnCoarseTune
	default:
		return rpnNone
	}
}

func (c *Channel) applyDataEntry(value uint8, isMSB bool) {
	switch c.activeRPN {
	case rpnPitchBendSensitivity:
		if isMSB {
			c.pitchBendSensitivity = float64(value)
		}
	case rpnFineTune:
		if isMSB {
			c.fineTuneCents = (float64(value) - 64) / 64 * 100
		}
	case rpnCoarseTune:
		if isMSB {
			c.coarseTuneSemi = float64(value) - 64
		}
	}
}

func (c *Channel) setSustain(on bool) {
	c.sustain = on
	for _, v := range c.Voices {
		v.SetHold(on)
	}
	if !on {
		for _, id := range c.Mapper.HoldOff() {
			if v, ok := c.Voices[id]; ok {
				v.NoteOff()
			}
		}
	} else {
		c.Mapper.HoldOn()
	}
}

// ProgramChange updates the channel's current timbre selector.
// Existing voices keep their prior timbre; only subsequently allocated
// voices use the new program.
func (c *Channel) ProgramChange(program uint8) {
	c.Program = program
}

// PitchBend updates the 14-bit raw bend value and applies the
// resulting semitone offset to every live voice in one pass.
func (c *Channel) PitchBend(raw int) {
	c.pitchBendRaw = raw
	semis := c.pitchBendSemitones()
	for _, v := range c.Voices {
		v.SetPitchBend(semis)
	}
}

// AllSoundOff cuts every voice immediately (CC120).
func (c *Channel) AllSoundOff() {
	for _, v := range c.Voices {
		v.NoteCut()
	}
}

// AllNotesOff issues a note-off for every mapped note (CC123).
func (c *Channel) AllNotesOff() {
	for note := range c.snapshotMappedNotes() {
		c.NoteOff(note)
	}
}

func (c *Channel) snapshotMappedNotes() map[int]struct{} {
	// Voices map keys are VoiceIds, not note numbers; derive from the
	// mapper's own bookkeeping is not exposed, so we instead release
	// every still-busy voice directly (equivalent effect: every mapped
	// note's voice receives a note-off).
	notes := make(map[int]struct{})
	for _, v := range c.Voices {
		if v.IsBusy() {
			notes[v.NoteNo] = struct{}{}
		}
	}
	return notes
}

// ResetAllControllers restores default controller values without
// cutting voices (CC121).
func (c *Channel) ResetAllControllers() {
	c.Volume = 100
	c.Expression = 127
	c.PanCC = 64
	c.ModWheel = 0
	c.pitchBendRaw = 0
	c.pitchBendSensitivity = 2
	c.sustain = false
	c.rpnMSB, c.rpnLSB = rpnNull, rpnNull
	c.nrpnMSB, c.nrpnLSB = rpnNull, rpnNull
	c.activeRPN = rpnNone
}

// Render sums and pans every live voice's contribution, then removes
// any voice whose envelope has reached Free, per spec §4.9 step 2.
func (c *Channel) Render() (l, r float32) {
	for id, v := range c.Voices {
		mono := v.Update()
		pan := c.panNormalized()
		if v.Pan != nil {
			pan = *v.Pan
		}
		theta := (pan + 1) * math.Pi / 4
		l += mono * float32(math.Cos(theta))
		r += mono * float32(math.Sin(theta))
		if !v.IsBusy() {
			delete(c.Voices, id)
		}
	}
	gain := c.gain()
	l *= gain
	r *= gain
	l, r = c.chain.Process(l, r)
	return l, r
}

// VoiceCount reports the number of currently tracked voices (live or
// pending removal this frame), for the polyphony-cap invariant.
func (c *Channel) VoiceCount() int {
	return len(c.Voices)
}

// OldestVoiceInState reports the lowest VoiceId currently in
// envelope state, used by the Synthesizer's polyphony-cap cull pass.
func (c *Channel) OldestVoiceInState(state envelope.State) (idgen.VoiceId, bool) {
	var best idgen.VoiceId
	found := false
	for id, v := range c.Voices {
		if v.Env.State() != state {
			continue
		}
		if !found || id < best {
			best, found = id, true
		}
	}
	return best, found
}

// CutVoice hard-stops and removes the voice with id, used by the
// Synthesizer's polyphony-cap cull pass (§5 invariant 6).
func (c *Channel) CutVoice(id idgen.VoiceId) {
	if v, ok := c.Voices[id]; ok {
		v.NoteCut()
		delete(c.Voices, id)
	}
}
