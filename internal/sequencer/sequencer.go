// Package sequencer owns the dedicated thread that walks a decoded
// SMF body and delivers its messages to a Synthesizer on a wall-clock
// schedule, matching spec's C10.
package sequencer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/miditone/internal/midimsg"
	"github.com/cbegin/miditone/internal/smfsource"
)

// Dispatcher is the subset of Synthesizer a Sequencer delivers
// messages to; satisfied by *synth.Synthesizer.
type Dispatcher interface {
	EnqueueMessage(position time.Time, msg midimsg.Message)
}

// coalesceWindow is the maximum gap between two messages' scheduled
// times for them to be delivered together in a single wake-up, per
// spec §4.10's "coalesce messages scheduled within ≤1 ms".
const coalesceWindow = time.Millisecond

// Sequencer owns a dedicated goroutine that walks a sorted message
// body and delivers each message to a Dispatcher at its scheduled
// wall-clock time. Grounded on other_examples' zurustar-son-et
// MIDIPlayer.playMIDIMessages (timeline walk + `select { case
// <-stopChan: ...; case <-time.After(wait): }` interruptible sleep),
// translated to context.Context cancellation per original_source's
// SMF/Sequencer.hpp stop-token thread design.
type Sequencer struct {
	dispatcher Dispatcher

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	body     []smfsource.TimedMessage
	playing  atomic.Bool
}

// New returns a Sequencer with no body loaded and nothing playing.
func New(dispatcher Dispatcher) *Sequencer {
	return &Sequencer{dispatcher: dispatcher}
}

// Load replaces the sequencer's message body. Load while playing
// stops the current playback first.
func (s *Sequencer) Load(body []smfsource.TimedMessage) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
}

// LoadFile decodes path via smfsource.Load and loads the result.
func (s *Sequencer) LoadFile(path string) error {
	body, err := smfsource.Load(path)
	if err != nil {
		return err
	}
	s.Load(body)
	return nil
}

// Start spawns the playback thread from the beginning of the loaded
// body. Calling Start while already playing is a reported-and-ignored
// InvalidState per spec §7; it returns false in that case.
func (s *Sequencer) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing.Load() {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	body := s.body
	s.playing.Store(true)
	go s.run(ctx, body, s.done)
	return true
}

// Stop signals the playback thread to exit and waits for it to join.
// Calling Stop while not playing is a reported-and-ignored InvalidState
// per spec §7; it returns false in that case.
func (s *Sequencer) Stop() bool {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	wasPlaying := s.playing.Load()
	s.mu.Unlock()
	if !wasPlaying || cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// IsPlaying reflects whether the playback thread is currently running.
func (s *Sequencer) IsPlaying() bool {
	return s.playing.Load()
}

// Wait blocks until the playback thread exits, whether by reaching the
// end of the loaded body or by Stop. Returns immediately if nothing is
// playing.
func (s *Sequencer) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return
	}
	<-done
}

// run is the dedicated playback thread: for each message, sleep (via
// an interruptible timer) until its scheduled wall-clock time, then
// deliver it (batching any messages within coalesceWindow of it) to
// the dispatcher. Records epoch at the start so every message's
// absolute offset maps onto a single wall-clock reference point.
func (s *Sequencer) run(ctx context.Context, body []smfsource.TimedMessage, done chan struct{}) {
	defer close(done)
	defer s.playing.Store(false)

	epoch := time.Now()
	i := 0
	for i < len(body) {
		target := epoch.Add(body[i].At)
		if !sleepUntil(ctx, target) {
			return
		}
		// coalesce any further messages within coalesceWindow of this one.
		j := i + 1
		for j < len(body) && body[j].At-body[i].At <= coalesceWindow {
			j++
		}
		now := time.Now()
		for _, tm := range body[i:j] {
			s.dispatcher.EnqueueMessage(now, tm.Message)
		}
		i = j
	}
}

// sleepUntil blocks until target or ctx cancellation, whichever comes
// first, reporting false if interrupted by cancellation.
func sleepUntil(ctx context.Context, target time.Time) bool {
	d := time.Until(target)
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
