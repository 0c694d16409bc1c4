package sequencer

import (
	"sync"
	"testing"
	"time"

	"github.com/cbegin/miditone/internal/midimsg"
	"github.com/cbegin/miditone/internal/smfsource"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	received []midimsg.Message
}

func (f *fakeDispatcher) EnqueueMessage(position time.Time, msg midimsg.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, msg)
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestStartDeliversAllMessagesInOrder(t *testing.T) {
	d := &fakeDispatcher{}
	s := New(d)
	s.Load([]smfsource.TimedMessage{
		{At: 0, Message: midimsg.Message{Kind: midimsg.NoteOn, Data1: 60}},
		{At: 5 * time.Millisecond, Message: midimsg.Message{Kind: midimsg.NoteOn, Data1: 64}},
		{At: 10 * time.Millisecond, Message: midimsg.Message{Kind: midimsg.NoteOff, Data1: 60}},
	})
	if !s.Start() {
		t.Fatalf("expected Start to succeed")
	}
	deadline := time.Now().Add(time.Second)
	for d.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Stop()
	if d.count() != 3 {
		t.Fatalf("expected 3 delivered messages, got %d", d.count())
	}
	if d.received[0].Data1 != 60 || d.received[1].Data1 != 64 || d.received[2].Data1 != 60 {
		t.Fatalf("expected messages delivered in scheduled order, got %+v", d.received)
	}
}

func TestStartWhileAlreadyPlayingReturnsFalse(t *testing.T) {
	d := &fakeDispatcher{}
	s := New(d)
	s.Load([]smfsource.TimedMessage{{At: time.Second, Message: midimsg.Message{Kind: midimsg.NoteOn}}})
	if !s.Start() {
		t.Fatalf("expected first Start to succeed")
	}
	if s.Start() {
		t.Fatalf("expected second Start to report InvalidState (false)")
	}
	s.Stop()
}

func TestStopWhileNotPlayingReturnsFalse(t *testing.T) {
	d := &fakeDispatcher{}
	s := New(d)
	if s.Stop() {
		t.Fatalf("expected Stop on an idle sequencer to return false")
	}
}

func TestStopInterruptsPendingSleep(t *testing.T) {
	d := &fakeDispatcher{}
	s := New(d)
	s.Load([]smfsource.TimedMessage{{At: time.Hour, Message: midimsg.Message{Kind: midimsg.NoteOn}}})
	s.Start()
	time.Sleep(5 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Stop to interrupt the pending hour-long sleep promptly")
	}
	if d.count() != 0 {
		t.Fatalf("expected the far-future message to never be delivered")
	}
}

func TestIsPlayingReflectsThreadLifecycle(t *testing.T) {
	d := &fakeDispatcher{}
	s := New(d)
	if s.IsPlaying() {
		t.Fatalf("expected idle sequencer to report not playing")
	}
	s.Load([]smfsource.TimedMessage{{At: time.Hour, Message: midimsg.Message{Kind: midimsg.NoteOn}}})
	s.Start()
	if !s.IsPlaying() {
		t.Fatalf("expected running sequencer to report playing")
	}
	s.Stop()
	if s.IsPlaying() {
		t.Fatalf("expected stopped sequencer to report not playing")
	}
}

func TestCoalescesMessagesWithinOneMillisecond(t *testing.T) {
	d := &fakeDispatcher{}
	s := New(d)
	s.Load([]smfsource.TimedMessage{
		{At: 0, Message: midimsg.Message{Kind: midimsg.NoteOn, Data1: 1}},
		{At: 200 * time.Microsecond, Message: midimsg.Message{Kind: midimsg.NoteOn, Data1: 2}},
		{At: 400 * time.Microsecond, Message: midimsg.Message{Kind: midimsg.NoteOn, Data1: 3}},
	})
	s.Start()
	deadline := time.Now().Add(time.Second)
	for d.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Stop()
	if d.count() != 3 {
		t.Fatalf("expected all 3 closely-scheduled messages delivered, got %d", d.count())
	}
}
