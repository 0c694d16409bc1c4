// Package smfsource decodes a Standard MIDI File into a flat,
// absolute-microsecond ordered event list, matching spec's SMF
// decoder contract (§6). Grounded on icco-genidi's sequencer.go, which
// reads a file via smf.ReadFile and walks smf.Track events by
// accumulating msg.Delta into a running tick count.
package smfsource

import (
	"fmt"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/miditone/internal/midimsg"
)

// DecodingError wraps a human-readable reason an SMF file could not
// be decoded, per spec §7.
type DecodingError struct {
	Path   string
	Reason string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("smfsource: decoding %q failed: %s", e.Path, e.Reason)
}

// TimedMessage pairs a decoded Message with its absolute offset from
// the start of playback, tempo map already applied.
type TimedMessage struct {
	At      time.Duration
	Message midimsg.Message
}

const defaultBPM = 120.0

// metaTempo is the standard SMF Set Tempo meta-event type byte
// (status 0xFF <type> <len> <data>).
const (
	metaTempo = 0x51
)

// Load reads path as a Standard MIDI File and returns every channel-
// voice and SysEx event, sorted ascending by absolute time, with tempo
// changes already resolved into absolute microseconds. Meta.SetTempo
// events are consumed to build the tempo map and are not themselves
// returned; other meta events are dropped, per spec §6's "Meta.Other
// (logged, ignored)".
func Load(path string) ([]TimedMessage, error) {
	sm, err := smf.ReadFile(path)
	if err != nil {
		return nil, &DecodingError{Path: path, Reason: err.Error()}
	}

	ticksPerQuarter, err := ticksPerQuarterNote(sm)
	if err != nil {
		return nil, &DecodingError{Path: path, Reason: err.Error()}
	}

	type rawEvent struct {
		tick  uint64
		track int
		seq   int
		bytes []byte
	}

	var tempoTicks []uint64
	var tempoBPM []float64
	var raw []rawEvent

	for trackIdx, track := range sm.Tracks {
		var tick uint64
		seq := 0
		for _, ev := range track {
			tick += uint64(ev.Delta)
			b := ev.Message.Bytes()
			if len(b) == 0 {
				continue
			}
			if b[0] == 0xFF {
				if len(b) >= 6 && b[1] == metaTempo && b[2] == 0x03 {
					microsPerQuarter := int(b[3])<<16 | int(b[4])<<8 | int(b[5])
					if microsPerQuarter > 0 {
						tempoTicks = append(tempoTicks, tick)
						tempoBPM = append(tempoBPM, 60000000.0/float64(microsPerQuarter))
					}
				}
				continue
			}
			raw = append(raw, rawEvent{tick: tick, track: trackIdx, seq: seq, bytes: b})
			seq++
		}
	}

	tempo := buildTempoMap(tempoTicks, tempoBPM, ticksPerQuarter)

	sort.Slice(raw, func(i, j int) bool {
		if raw[i].tick != raw[j].tick {
			return raw[i].tick < raw[j].tick
		}
		if raw[i].track != raw[j].track {
			return raw[i].track < raw[j].track
		}
		return raw[i].seq < raw[j].seq
	})

	out := make([]TimedMessage, 0, len(raw))
	for _, ev := range raw {
		msg, ok := midimsg.FromBytes(ev.bytes)
		if !ok {
			continue
		}
		out = append(out, TimedMessage{
			At:      tempo.micros(ev.tick),
			Message: msg,
		})
	}
	return out, nil
}

func ticksPerQuarterNote(sm *smf.SMF) (uint32, error) {
	mt, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok {
		return 0, fmt.Errorf("unsupported time format (only metric ticks is supported)")
	}
	return uint32(mt), nil
}

// tempoSegment is one piecewise-linear run of the tempo map: from
// startTick onward, elapsed time advances at microsPerTick until the
// next segment's startTick.
type tempoSegment struct {
	startTick   uint64
	startMicros float64
	microsPerTick float64
}

type tempoMap struct {
	segments []tempoSegment
}

// buildTempoMap integrates a sequence of (tick, bpm) tempo changes
// into cumulative-microseconds segments, defaulting to 120 BPM before
// the first recorded change (or for the whole file, if there are none).
func buildTempoMap(ticks []uint64, bpms []float64, ticksPerQuarter uint32) tempoMap {
	if ticksPerQuarter == 0 {
		ticksPerQuarter = 480
	}
	type change struct {
		tick uint64
		bpm  float64
	}
	changes := make([]change, len(ticks))
	for i := range ticks {
		changes[i] = change{tick: ticks[i], bpm: bpms[i]}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })

	var segments []tempoSegment
	curTick := uint64(0)
	curMicros := 0.0
	curBPM := defaultBPM
	if len(changes) == 0 || changes[0].tick > 0 {
		segments = append(segments, tempoSegment{
			startTick:     0,
			startMicros:   0,
			microsPerTick: microsPerTick(curBPM, ticksPerQuarter),
		})
	}
	for _, c := range changes {
		if c.tick > curTick {
			curMicros += float64(c.tick-curTick) * microsPerTick(curBPM, ticksPerQuarter)
		}
		curTick = c.tick
		curBPM = c.bpm
		segments = append(segments, tempoSegment{
			startTick:     curTick,
			startMicros:   curMicros,
			microsPerTick: microsPerTick(curBPM, ticksPerQuarter),
		})
	}
	return tempoMap{segments: segments}
}

func microsPerTick(bpm float64, ticksPerQuarter uint32) float64 {
	if bpm <= 0 {
		bpm = defaultBPM
	}
	microsPerQuarter := 60000000.0 / bpm
	return microsPerQuarter / float64(ticksPerQuarter)
}

// micros converts an absolute tick count into an absolute time.Duration
// from the start of playback, using the segment active at tick.
func (m tempoMap) micros(tick uint64) time.Duration {
	seg := m.segments[0]
	for _, s := range m.segments {
		if s.startTick > tick {
			break
		}
		seg = s
	}
	elapsed := seg.startMicros + float64(tick-seg.startTick)*seg.microsPerTick
	return time.Duration(elapsed * float64(time.Microsecond))
}
