// Package idgen issues monotonically increasing identifiers tagged by
// type so a VoiceId and a ToneId can never be assigned to each other
// by mistake, matching the phantom-tagged id issuers of the original
// tone module this package replaces.
package idgen

import "sync/atomic"

// Id is an opaque, monotonically issued identifier. The zero value is
// Empty and never returned by Issue.
type Id[T any] uint64

// IsEmpty reports whether id is the zero/unassigned sentinel.
func (id Id[T]) IsEmpty() bool {
	return id == 0
}

// Issuer hands out unique, increasing Id[T] values starting at 1.
// Safe for concurrent use. In this repo Issue is called from
// Channel.NoteOn, which runs inside Synthesizer.Render's dispatch on
// the audio thread; the sequencer thread only enqueues messages.
type Issuer[T any] struct {
	next atomic.Uint64
}

// NewIssuer returns an Issuer whose first Issue() call returns 1.
func NewIssuer[T any]() *Issuer[T] {
	iss := &Issuer[T]{}
	iss.next.Store(1)
	return iss
}

// Issue returns the next id in sequence. Never returns Empty.
func (iss *Issuer[T]) Issue() Id[T] {
	return Id[T](iss.next.Add(1) - 1)
}

type voiceTag struct{}
type toneTag struct{}

// VoiceId identifies a single sounding or recently-stopped voice.
type VoiceId = Id[voiceTag]

// ToneId identifies a registered instrument/tone definition.
type ToneId = Id[toneTag]

// EmptyVoiceId is the sentinel meaning "no voice".
const EmptyVoiceId VoiceId = 0

// EmptyToneId is the sentinel meaning "no tone".
const EmptyToneId ToneId = 0

// VoiceIssuer issues VoiceIds. Exported as a concrete alias since
// voiceTag is unexported and so cannot otherwise be named outside this
// package.
type VoiceIssuer = Issuer[voiceTag]

// NewVoiceIssuer returns a fresh VoiceIssuer whose first issued id is 1.
func NewVoiceIssuer() *VoiceIssuer {
	return NewIssuer[voiceTag]()
}

// ToneIssuer issues ToneIds.
type ToneIssuer = Issuer[toneTag]

// NewToneIssuer returns a fresh ToneIssuer whose first issued id is 1.
func NewToneIssuer() *ToneIssuer {
	return NewIssuer[toneTag]()
}
