// Package miditone is a polyphonic MIDI software synthesizer: it loads
// a Standard MIDI File, drives a 16-channel GM/GM2/GS/XG-aware
// wavetable synth from it, and streams the result to an audio device.
package miditone

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cbegin/miditone/internal/audio"
	"github.com/cbegin/miditone/internal/instrument"
	"github.com/cbegin/miditone/internal/sequencer"
	"github.com/cbegin/miditone/internal/synth"
)

// PlaybackEventType names the kind of lifecycle event Watch delivers.
type PlaybackEventType int

const (
	EventStarted PlaybackEventType = iota
	EventStopped
	EventFinished
)

// PlaybackEvent is one lifecycle notification from a Player's Watch channel.
type PlaybackEvent struct {
	Type PlaybackEventType
	At   time.Time
}

// synthSource adapts a *synth.Synthesizer to internal/audio's
// SampleSource, pulling exactly as many frames as the audio host
// requests per Read.
type synthSource struct {
	synth *synth.Synthesizer
}

func (s *synthSource) Process(dst []float32) {
	frames := len(dst) / 2
	if frames == 0 {
		return
	}
	out := s.synth.Render(frames)
	n := copy(dst, out.Data)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// Player composes a Synthesizer, a Sequencer, and an audio host
// player into the playback surface spec's CLI host application drives.
// Grounded on the teacher's player.go Player/PlayerOption/eventWrapper
// shape (functional options, non-blocking event channel), generalized
// from MML-score playback to SMF playback.
type Player struct {
	synth       *synth.Synthesizer
	seq         *sequencer.Sequencer
	audioPlayer *audio.Player
	sampleRate  int
	logger      *slog.Logger

	events chan PlaybackEvent

	mu         sync.Mutex
	manualStop bool
}

// PlayerOption configures a Player at construction.
type PlayerOption func(*playerConfig)

type playerConfig struct {
	sampleRate   int
	logger       *slog.Logger
	instruments  *instrument.Set
	polyphonyCap int
}

// WithSampleRate overrides the default 48kHz render rate.
func WithSampleRate(hz int) PlayerOption {
	return func(c *playerConfig) { c.sampleRate = hz }
}

// WithLogger injects a structured logger; nil disables logging.
func WithLogger(logger *slog.Logger) PlayerOption {
	return func(c *playerConfig) { c.logger = logger }
}

// WithInstrumentOverrides installs a loaded instrument.Set.
func WithInstrumentOverrides(set *instrument.Set) PlayerOption {
	return func(c *playerConfig) { c.instruments = set }
}

// WithPolyphonyCap overrides the default cross-channel voice ceiling.
func WithPolyphonyCap(n int) PlayerOption {
	return func(c *playerConfig) { c.polyphonyCap = n }
}

const defaultSampleRate = 48000

// NewPlayer constructs a Player and opens its audio output. Returns a
// ResourceUnavailable-flavored error (per spec §7) if the audio device
// cannot be opened.
func NewPlayer(opts ...PlayerOption) (*Player, error) {
	cfg := playerConfig{sampleRate: defaultSampleRate}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := synth.New(cfg.sampleRate, cfg.logger)
	if cfg.polyphonyCap > 0 {
		s.SetPolyphonyCap(cfg.polyphonyCap)
	}
	if cfg.instruments != nil {
		for i := 0; i < 16; i++ {
			s.Channel(i).SetInstrumentOverrides(cfg.instruments)
		}
	}

	seq := sequencer.New(s)

	audioPlayer, err := audio.NewPlayer(cfg.sampleRate, &synthSource{synth: s})
	if err != nil {
		return nil, fmt.Errorf("miditone: opening audio device: %w", err)
	}

	return &Player{
		synth:       s,
		seq:         seq,
		audioPlayer: audioPlayer,
		sampleRate:  cfg.sampleRate,
		logger:      cfg.logger,
		events:      make(chan PlaybackEvent, 8),
	}, nil
}

// Play loads path as a Standard MIDI File and begins playback
// immediately. A DecodingError (per spec §7) is returned unwrapped so
// callers can detect it.
func (p *Player) Play(path string) error {
	if err := p.seq.LoadFile(path); err != nil {
		return err
	}
	p.mu.Lock()
	p.manualStop = false
	p.mu.Unlock()
	p.seq.Start()
	p.audioPlayer.Play()
	p.emit(EventStarted)
	go p.watchForNaturalEnd()
	return nil
}

// watchForNaturalEnd blocks until the sequencer thread exits, then
// reports EventFinished unless Stop already reported EventStopped.
func (p *Player) watchForNaturalEnd() {
	p.seq.Wait()
	p.mu.Lock()
	stopped := p.manualStop
	p.mu.Unlock()
	if stopped {
		return
	}
	p.audioPlayer.Pause()
	p.emit(EventFinished)
}

// Stop halts playback and the underlying audio stream.
func (p *Player) Stop() {
	p.mu.Lock()
	p.manualStop = true
	p.mu.Unlock()
	p.seq.Stop()
	p.audioPlayer.Pause()
	p.emit(EventStopped)
}

// Pause pauses the audio stream without stopping the sequencer thread.
func (p *Player) Pause() {
	p.audioPlayer.Pause()
}

// Resume resumes a paused audio stream.
func (p *Player) Resume() {
	p.audioPlayer.Play()
}

// Reset restores every channel to its power-on default state, per the
// CLI's "R" key (spec §6).
func (p *Player) Reset() {
	p.synth.Reset()
}

// IsPlaying reports whether the sequencer thread is currently running.
func (p *Player) IsPlaying() bool {
	return p.seq.IsPlaying()
}

// Wait blocks until playback stops, whether from reaching the end of
// the file or an explicit Stop.
func (p *Player) Wait() {
	p.seq.Wait()
}

// SetMasterVolume scales the synthesizer's overall output gain.
func (p *Player) SetMasterVolume(gain float32) {
	p.synth.SetMasterGain(gain)
}

// Statistics returns a point-in-time snapshot of the render counters.
func (p *Player) Statistics() synth.Digest {
	return p.synth.Statistics().Snapshot()
}

// Watch returns a channel of lifecycle events. The channel is shared
// across calls; events are dropped rather than blocking the render or
// sequencer threads if the receiver falls behind.
func (p *Player) Watch() <-chan PlaybackEvent {
	return p.events
}

func (p *Player) emit(t PlaybackEventType) {
	select {
	case p.events <- PlaybackEvent{Type: t, At: time.Now()}:
	default:
	}
}

// Close releases the audio device.
func (p *Player) Close() error {
	p.seq.Stop()
	return p.audioPlayer.Stop()
}
