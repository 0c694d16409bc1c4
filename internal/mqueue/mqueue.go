// Package mqueue implements the time-ordered, mutex-protected message
// queue that sits between the producer thread(s) (sequencer or live
// MIDI input) and the synthesizer's render loop, matching spec's C12.
package mqueue

import (
	"sync"
	"time"

	"github.com/cbegin/miditone/internal/midimsg"
)

// Item pairs a message with its scheduled position (wall-clock time),
// mirroring original_source's `deque<pair<time, Message>>`.
type Item struct {
	Position time.Time
	Message  midimsg.Message
}

// Queue is a mutex-protected slice kept sorted by Position. Insertion
// is a linear scan from the head, matching the teacher's
// compactNoteOffs insertion-sort-on-nearly-sorted-slice idiom
// (internal/sequencer's former noteOff queue) — acceptable since audio-
// rate queue depth is small.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Push inserts msg before the first existing element with a strictly
// greater position, preserving insertion order among equal positions.
func (q *Queue) Push(position time.Time, msg midimsg.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item := Item{Position: position, Message: msg}
	i := len(q.items)
	for i > 0 && q.items[i-1].Position.After(position) {
		i--
	}
	q.items = append(q.items, Item{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = item
}

// Pop returns and removes the front item if its position is before
// until, else reports ok=false. A zero until pops unconditionally
// (until = +infinity is approximated by passing time.Time{}'s zero
// value check skipped via the until.IsZero() branch below).
func (q *Queue) Pop(until time.Time) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	front := q.items[0]
	if !until.IsZero() && !front.Position.Before(until) {
		return Item{}, false
	}
	q.items = q.items[1:]
	return front, true
}

// DrainAll removes and returns every queued item in position order,
// used by Synthesizer.Render to move the whole queue out under lock
// and process outside it per spec's real-time discipline.
func (q *Queue) DrainAll() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
