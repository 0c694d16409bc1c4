// Package voicemap maps MIDI note numbers to the VoiceId currently
// sounding them, with sustain-pedal (hold) deferral, matching spec's
// C7 Voice mapper. No teacher analog exists for this (the teacher's
// engines free-run straight to Release on note-off); grounded on
// libsynthpp's VoiceMapper.cpp/.hpp from original_source.
package voicemap

import (
	"sync"

	"github.com/cbegin/miditone/internal/idgen"
)

type entry struct {
	voiceID idgen.VoiceId
	holding bool
}

// Mapper maps noteNo -> active VoiceId for a single channel. All
// operations are serialized by a mutex, matching the teacher's
// embedded-mutex idiom (sequencer.Sequencer, audio.Player); per spec
// §4.7, the channel only ever calls the mapper from the audio thread,
// so contention is never expected in practice.
type Mapper struct {
	mu    sync.Mutex
	notes map[int]entry
	hold  bool
}

// New returns an empty Mapper.
func New() *Mapper {
	return &Mapper{notes: make(map[int]entry)}
}

// NoteOn issues on for noteNo. If a prior entry existed it is replaced
// immediately (retrigger: hold is never honored for the displaced
// voice) and its id is returned as off; off is empty when there was
// none.
func (m *Mapper) NoteOn(noteNo int, issue func() idgen.VoiceId) (on, off idgen.VoiceId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.notes[noteNo]; ok {
		off = prev.voiceID
	}
	on = issue()
	m.notes[noteNo] = entry{voiceID: on}
	return on, off
}

// NoteOff removes (or, if hold is active and force is false, defers)
// the mapping for noteNo, returning the voice id to release, or empty
// if the mapping was deferred or didn't exist.
func (m *Mapper) NoteOff(noteNo int, force bool) idgen.VoiceId {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.notes[noteNo]
	if !ok {
		return idgen.EmptyVoiceId
	}
	if m.hold && !force {
		e.holding = true
		m.notes[noteNo] = e
		return idgen.EmptyVoiceId
	}
	delete(m.notes, noteNo)
	return e.voiceID
}

// HoldOn enables sustain: subsequent NoteOff calls defer instead of
// releasing.
func (m *Mapper) HoldOn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = true
}

// HoldOff disables sustain and returns the voice ids of every entry
// that had been deferred while held.
func (m *Mapper) HoldOff() []idgen.VoiceId {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = false
	var released []idgen.VoiceId
	for note, e := range m.notes {
		if e.holding {
			released = append(released, e.voiceID)
			delete(m.notes, note)
		}
	}
	return released
}

// Reset clears all mapping and hold state.
func (m *Mapper) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = make(map[int]entry)
	m.hold = false
}

// Count reports the number of currently mapped notes, used for spec's
// `voiceMapper.count() <= voices.size()` invariant check in tests.
func (m *Mapper) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}
