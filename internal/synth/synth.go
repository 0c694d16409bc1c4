// Package synth implements the top-level Synthesizer: the 16-channel
// MIDI tone module that drains a time-ordered message queue and
// renders stereo audio, matching spec's C9.
package synth

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/miditone/internal/effects"
	"github.com/cbegin/miditone/internal/envelope"
	"github.com/cbegin/miditone/internal/idgen"
	"github.com/cbegin/miditone/internal/midichannel"
	"github.com/cbegin/miditone/internal/midimsg"
	"github.com/cbegin/miditone/internal/mqueue"
	"github.com/cbegin/miditone/internal/sig"
	"github.com/cbegin/miditone/internal/wavetable"
)

// SystemType names which reset sequence last configured the module,
// per spec §6's recognized SysEx.
type SystemType int

const (
	SystemUnknown SystemType = iota
	SystemGM1
	SystemGM2
	SystemGS
	SystemXG
)

const numChannels = 16

// Synthesizer owns 16 MidiChannels, a shared wavetable Set, and the
// producer-to-render-thread message queue. Grounded on
// original_source's libsynthpp synthesizer.hpp for the
// Statistics/Digest/reset/sysExMessage shape; the teacher has no
// direct analog since each of its engines is a single flat timbre with
// no multi-channel dispatcher.
type Synthesizer struct {
	mu         sync.Mutex
	channels   [numChannels]*midichannel.Channel
	wavetables *wavetable.Set
	queue      *mqueue.Queue
	voiceIssue *idgen.VoiceIssuer
	sampleRate int
	systemType SystemType

	polyphonyCap int
	masterGain   atomic.Uint32 // float32 bits, matches teacher's atomic float-bits idiom
	masterEQ     *effects.EQ5Band

	stats      Statistics
	logger     *slog.Logger
}

// Statistics are the atomically-updated render counters exposed to
// any thread, per spec §4.9.
type Statistics struct {
	SamplesRendered   atomic.Uint64
	FailedSamples     atomic.Uint64
	LastRenderNanos   atomic.Int64
	LastCycleNanos    atomic.Int64
}

// Digest is a point-in-time snapshot of Statistics, safe to copy and
// hand to a UI thread.
type Digest struct {
	SamplesRendered uint64
	FailedSamples   uint64
	LastRenderNanos int64
	LastCycleNanos  int64
	LoadAverage     float64
}

// Snapshot reads every counter into a Digest. LoadAverage is
// render/cycle, 0 when no cycle duration has been recorded yet.
func (s *Statistics) Snapshot() Digest {
	d := Digest{
		SamplesRendered: s.SamplesRendered.Load(),
		FailedSamples:   s.FailedSamples.Load(),
		LastRenderNanos: s.LastRenderNanos.Load(),
		LastCycleNanos:  s.LastCycleNanos.Load(),
	}
	if d.LastCycleNanos > 0 {
		d.LoadAverage = float64(d.LastRenderNanos) / float64(d.LastCycleNanos)
	}
	return d
}

// defaultPolyphonyCap matches the teacher's engines' typical voice
// ceilings; a real value would come from host configuration.
const defaultPolyphonyCap = 256

// New constructs a Synthesizer with all 16 channels at power-on
// defaults. logger may be nil.
func New(sampleRate int, logger *slog.Logger) *Synthesizer {
	s := &Synthesizer{
		wavetables:   wavetable.NewSet(sampleRate, logger),
		queue:        mqueue.New(),
		voiceIssue:   idgen.NewVoiceIssuer(),
		sampleRate:   sampleRate,
		polyphonyCap: defaultPolyphonyCap,
		masterEQ:     effects.NewEQ5Band(sampleRate),
		logger:       logger,
	}
	s.wavetables.Warm()
	for i := range s.channels {
		s.channels[i] = midichannel.New(i, float64(sampleRate), s.wavetables, s.voiceIssue)
	}
	s.masterGain.Store(math.Float32bits(1.0))
	return s
}

// SetMasterGain updates the output gain multiplier applied after every
// channel is summed, matching the teacher's atomic float-bits pattern
// for a live-adjustable scalar shared with the audio thread.
func (s *Synthesizer) SetMasterGain(gain float32) {
	s.masterGain.Store(math.Float32bits(gain))
}

func (s *Synthesizer) masterGainValue() float32 {
	return math.Float32frombits(s.masterGain.Load())
}

// SetEQBand sets the gain for a master EQ band (0-4), applied as the
// final mixdown stage in Render. 1.0 = unity.
func (s *Synthesizer) SetEQBand(band int, gain float32) {
	s.masterEQ.SetGain(band, gain)
}

// EQBand returns the current gain for a master EQ band (0-4).
func (s *Synthesizer) EQBand(band int) float32 {
	return s.masterEQ.Gain(band)
}

// EnqueueMessage is the producer-side surface (§4.9): any thread may
// call this to schedule msg for dispatch at or after position. The
// render thread drains the queue at the start of each Render call.
func (s *Synthesizer) EnqueueMessage(position time.Time, msg midimsg.Message) {
	s.queue.Push(position, msg)
}

// SetPolyphonyCap overrides the cross-channel voice ceiling enforced
// by Render's cull pass (invariant 6).
func (s *Synthesizer) SetPolyphonyCap(cap int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polyphonyCap = cap
}

// Statistics exposes the live atomic counters for read-only snapshotting.
func (s *Synthesizer) Statistics() *Statistics {
	return &s.stats
}

// SystemType reports the last SysEx-selected system type.
func (s *Synthesizer) SystemType() SystemType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemType
}

// Render drains the message queue, dispatches every message, renders
// frames stereo samples, and enforces the polyphony cap, per spec
// §4.9's four-step algorithm.
func (s *Synthesizer) Render(frames int) *sig.Signal {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.queue.DrainAll() {
		s.dispatch(item.Message)
	}

	out := sig.New(frames)
	gain := s.masterGainValue()
	for i := 0; i < frames; i++ {
		var l, r float32
		for _, ch := range s.channels {
			cl, cr := ch.Render()
			l += cl
			r += cr
		}
		l *= gain
		r *= gain
		if math.IsNaN(float64(l)) || math.IsInf(float64(l), 0) {
			if s.logger != nil {
				s.logger.Warn("non-finite sample replaced with silence", "channel", "left", "frame", i)
			}
			l = 0
			s.stats.FailedSamples.Add(1)
		}
		if math.IsNaN(float64(r)) || math.IsInf(float64(r), 0) {
			if s.logger != nil {
				s.logger.Warn("non-finite sample replaced with silence", "channel", "right", "frame", i)
			}
			r = 0
			s.stats.FailedSamples.Add(1)
		}
		l, r = s.masterEQ.Process(l, r)
		out.Set(i, clampUnit(l), clampUnit(r))
	}
	s.stats.SamplesRendered.Add(uint64(frames))

	s.cullExcessVoices()

	elapsed := time.Since(start)
	s.stats.LastRenderNanos.Store(elapsed.Nanoseconds())
	cycleNanos := int64(float64(frames) / float64(s.sampleRate) * float64(time.Second))
	s.stats.LastCycleNanos.Store(cycleNanos)

	return out
}

// clampUnit clamps a sample to [-1,+1], per spec §6's audio host
// callback contract.
func clampUnit(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// dispatch routes one message to its channel or handles it as a
// system message (SysEx), per spec §4.9 step 1.
func (s *Synthesizer) dispatch(msg midimsg.Message) {
	switch msg.Kind {
	case midimsg.SysEx:
		s.handleSysEx(msg.Data)
		return
	case midimsg.MetaSetTempo, midimsg.MetaOther:
		if s.logger != nil {
			s.logger.Debug("ignoring meta message", "kind", msg.Kind)
		}
		return
	}
	if int(msg.Channel) >= numChannels {
		return
	}
	ch := s.channels[msg.Channel]
	switch msg.Kind {
	case midimsg.NoteOn:
		if msg.Data2 == 0 {
			ch.NoteOff(int(msg.Data1))
		} else {
			ch.NoteOn(int(msg.Data1), int(msg.Data2))
		}
	case midimsg.NoteOff:
		ch.NoteOff(int(msg.Data1))
	case midimsg.ControlChange:
		ch.ControlChange(msg.Data1, msg.Data2)
	case midimsg.ProgramChange:
		ch.ProgramChange(msg.Data1)
	case midimsg.PitchBend:
		ch.PitchBend(msg.PitchBendValue())
	case midimsg.Aftertouch, midimsg.ChannelPressure:
		// ignored, per spec §6's MIDI input contract.
	}
}

// cullExcessVoices enforces invariant 6: while the total live voice
// count across all channels exceeds the polyphony cap, retire the
// oldest voice in Release state first, then the oldest in Fade, then
// the oldest in Attack. "Oldest" is approximated by lowest VoiceId,
// since ids are issued monotonically in allocation order.
func (s *Synthesizer) cullExcessVoices() {
	total := 0
	for _, ch := range s.channels {
		total += ch.VoiceCount()
	}
	for _, state := range []envelope.State{envelope.Release, envelope.Fade, envelope.Attack} {
		for total > s.polyphonyCap {
			id, ch, ok := s.oldestVoiceInState(state)
			if !ok {
				break
			}
			ch.CutVoice(id)
			total--
		}
		if total <= s.polyphonyCap {
			return
		}
	}
}

// oldestVoiceInState scans every channel for the lowest VoiceId whose
// voice is currently in state.
func (s *Synthesizer) oldestVoiceInState(state envelope.State) (idgen.VoiceId, *midichannel.Channel, bool) {
	var bestID idgen.VoiceId
	var bestCh *midichannel.Channel
	found := false
	for _, ch := range s.channels {
		id, ok := ch.OldestVoiceInState(state)
		if !ok {
			continue
		}
		if !found || id < bestID {
			bestID, bestCh, found = id, ch, true
		}
	}
	return bestID, bestCh, found
}

// Channel returns the channel at index (0-15), for host integrations
// that need direct access (e.g. a mixer UI).
func (s *Synthesizer) Channel(index int) *midichannel.Channel {
	if index < 0 || index >= numChannels {
		return nil
	}
	return s.channels[index]
}

// Reset restores every channel to power-on defaults and clears the
// system type, without changing the registered wavetables.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.channels {
		ch.Reset()
	}
	s.systemType = SystemUnknown
}
