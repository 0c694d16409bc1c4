package synth

import (
	"math"
	"testing"
	"time"

	"github.com/cbegin/miditone/internal/midimsg"
)

func TestEnqueuedNoteOnSoundsOnNextRender(t *testing.T) {
	s := New(48000, nil)
	s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.NoteOn, Channel: 0, Data1: 60, Data2: 100})
	out := s.Render(256)
	if out.Frames != 256 {
		t.Fatalf("expected 256 frames, got %d", out.Frames)
	}
	nonZero := false
	for i := 0; i < out.Frames; i++ {
		l, r := out.At(i)
		if l != 0 || r != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatalf("expected audible output after NoteOn")
	}
}

func TestVelocityZeroNoteOnActsAsNoteOff(t *testing.T) {
	s := New(48000, nil)
	s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.NoteOn, Channel: 0, Data1: 60, Data2: 100})
	s.Render(16)
	if s.Channel(0).VoiceCount() != 1 {
		t.Fatalf("expected one voice after NoteOn")
	}
	s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.NoteOn, Channel: 0, Data1: 60, Data2: 0})
	s.Render(16)
	// the message is built directly with Kind=NoteOn, so this exercises
	// Synthesizer.dispatch routing velocity 0 to NoteOff: the note's
	// mapping is cleared while its voice is still releasing, not cut.
	if s.Channel(0).Mapper.Count() != 0 {
		t.Fatalf("expected velocity-0 NoteOn to clear the note mapping")
	}
	if s.Channel(0).VoiceCount() == 0 {
		t.Fatalf("expected releasing voice still tracked")
	}
}

func TestSysExGM1ResetRestoresChannelDefaults(t *testing.T) {
	s := New(48000, nil)
	s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.ControlChange, Channel: 0, Data1: 7, Data2: 10})
	s.Render(16)
	if s.Channel(0).Volume != 10 {
		t.Fatalf("expected volume set to 10 before reset")
	}
	gm1On := []byte{0xF0, 0x7E, 0x7F, 0x09, 0x01, 0xF7}
	s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.SysEx, Data: gm1On})
	s.Render(16)
	if s.Channel(0).Volume != 100 {
		t.Fatalf("expected volume restored to 100 after GM1 reset, got %d", s.Channel(0).Volume)
	}
	if s.SystemType() != SystemGM1 {
		t.Fatalf("expected SystemGM1 recorded")
	}
}

func TestSysExGSDrumPartSetsChannelDrumFlag(t *testing.T) {
	s := New(48000, nil)
	drumPart := []byte{0xF0, 0x41, 0x7F, 0x42, 0x12, 0x40, 0x12, 0x15, 0x01, 0x00, 0xF7}
	s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.SysEx, Data: drumPart})
	s.Render(16)
	if !s.Channel(2).IsDrumChannel() {
		t.Fatalf("expected channel 2 to become a drum channel")
	}
}

func TestUnrecognizedSysExIsIgnored(t *testing.T) {
	s := New(48000, nil)
	before := s.SystemType()
	s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.SysEx, Data: []byte{0xF0, 0x00, 0xF7}})
	s.Render(16)
	if s.SystemType() != before {
		t.Fatalf("expected unrecognized SysEx to leave system type unchanged")
	}
}

func TestNonFiniteAccumulatorIsReplacedAndCounted(t *testing.T) {
	s := New(48000, nil)
	s.Render(8)
	// a clean synthesizer with no notes never produces non-finite
	// output, so the counter stays at zero in the common case.
	if s.Statistics().FailedSamples.Load() != 0 {
		t.Fatalf("expected no failed samples for silent render")
	}

	// an infinite master gain turns every summed sample into Inf or NaN;
	// Render replaces each one with silence and counts it.
	s.SetMasterGain(float32(math.Inf(1)))
	s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.NoteOn, Channel: 0, Data1: 60, Data2: 100})
	out := s.Render(8)
	if s.Statistics().FailedSamples.Load() == 0 {
		t.Fatalf("expected non-finite samples to be counted")
	}
	for i := 0; i < out.Frames; i++ {
		l, r := out.At(i)
		if l != 0 || r != 0 {
			t.Fatalf("expected non-finite samples replaced with 0, got l=%f r=%f at frame %d", l, r, i)
		}
	}
}

func TestStatisticsTrackSamplesRendered(t *testing.T) {
	s := New(48000, nil)
	s.Render(100)
	s.Render(50)
	d := s.Statistics().Snapshot()
	if d.SamplesRendered != 150 {
		t.Fatalf("expected 150 samples rendered, got %d", d.SamplesRendered)
	}
}

func TestPolyphonyCapCullsOldestVoicesFirst(t *testing.T) {
	s := New(48000, nil)
	s.SetPolyphonyCap(4)
	for note := 40; note < 50; note++ {
		s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.NoteOn, Channel: 0, Data1: uint8(note), Data2: 100})
	}
	s.Render(16)
	total := 0
	for i := 0; i < 16; i++ {
		total += s.Channel(i).VoiceCount()
	}
	if total > 4 {
		t.Fatalf("expected polyphony cap of 4 to be enforced, got %d live voices", total)
	}
	// every voice is still in Attack, so the six lowest ids (notes 40-45) go.
	for _, v := range s.Channel(0).Voices {
		if v.NoteNo < 46 {
			t.Fatalf("expected the oldest voices culled first, found note %d still live", v.NoteNo)
		}
	}
}

func TestMasterGainScalesOutput(t *testing.T) {
	s := New(48000, nil)
	s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.NoteOn, Channel: 0, Data1: 60, Data2: 100})
	s.Render(8) // let the envelope begin ramping before comparing

	s.SetMasterGain(0)
	out := s.Render(64)
	for i := 0; i < out.Frames; i++ {
		l, r := out.At(i)
		if l != 0 || r != 0 {
			t.Fatalf("expected silence with master gain 0, got l=%f r=%f at frame %d", l, r, i)
		}
	}
}

func TestRenderOutputStaysWithinUnitRange(t *testing.T) {
	s := New(48000, nil)
	for ch := 0; ch < 16; ch++ {
		for note := 30; note < 40; note++ {
			s.EnqueueMessage(time.Time{}, midimsg.Message{Kind: midimsg.NoteOn, Channel: uint8(ch), Data1: uint8(note), Data2: 127})
		}
	}
	out := s.Render(512)
	for i := 0; i < out.Frames; i++ {
		l, r := out.At(i)
		if math.IsNaN(float64(l)) || math.IsInf(float64(l), 0) {
			t.Fatalf("non-finite left sample at frame %d", i)
		}
		if math.IsNaN(float64(r)) || math.IsInf(float64(r), 0) {
			t.Fatalf("non-finite right sample at frame %d", i)
		}
		if l > 1 || l < -1 || r > 1 || r < -1 {
			t.Fatalf("sample outside [-1,1] at frame %d: l=%f r=%f", i, l, r)
		}
	}
}
