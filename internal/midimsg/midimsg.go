// Package midimsg defines a small, allocation-free MIDI message value
// type used throughout the synthesizer, decoupled from any particular
// wire-format library. Messages are POD values deliberately, per
// spec's design note preferring move-only value messages over the
// source's shared-pointer queue.
package midimsg

// Kind enumerates the recognized MIDI message kinds, per spec §6's
// MIDI input contract.
type Kind uint8

const (
	NoteOn Kind = iota
	NoteOff
	Aftertouch // polyphonic key pressure; ignored per spec
	ControlChange
	ProgramChange
	ChannelPressure
	PitchBend
	SysEx
	MetaSetTempo
	MetaOther
)

// Message is a small value type: a channel-voice or system message.
// SysEx/Meta payloads use Data (nil otherwise).
type Message struct {
	Kind    Kind
	Channel uint8 // 0-15, meaningless for SysEx/Meta
	Data1   uint8 // note/controller/program number
	Data2   uint8 // velocity/value
	Data    []byte // SysEx body (including F0/F7) or meta payload
}

// FromBytes decodes a single raw MIDI wire message (status byte plus
// data bytes, no running status) into a Message. Grounded on
// other_examples' zurustar-son-et MIDI player's extractMIDIComponents:
// channel messages are identified by masking the high nibble of the
// status byte (0x80-0xE0), system messages (0xF0+) are handled
// separately.
func FromBytes(b []byte) (Message, bool) {
	if len(b) == 0 {
		return Message{}, false
	}
	status := b[0]
	if status == 0xF0 {
		return Message{Kind: SysEx, Data: append([]byte(nil), b...)}, true
	}
	if status < 0x80 {
		return Message{}, false
	}
	if status >= 0xF0 {
		return Message{}, false
	}
	channel := status & 0x0F
	cmd := status & 0xF0
	switch cmd {
	case 0x80:
		return Message{Kind: NoteOff, Channel: channel, Data1: byteAt(b, 1), Data2: byteAt(b, 2)}, true
	case 0x90:
		vel := byteAt(b, 2)
		k := NoteOn
		if vel == 0 {
			k = NoteOff
		}
		return Message{Kind: k, Channel: channel, Data1: byteAt(b, 1), Data2: vel}, true
	case 0xA0:
		return Message{Kind: Aftertouch, Channel: channel, Data1: byteAt(b, 1), Data2: byteAt(b, 2)}, true
	case 0xB0:
		return Message{Kind: ControlChange, Channel: channel, Data1: byteAt(b, 1), Data2: byteAt(b, 2)}, true
	case 0xC0:
		return Message{Kind: ProgramChange, Channel: channel, Data1: byteAt(b, 1)}, true
	case 0xD0:
		return Message{Kind: ChannelPressure, Channel: channel, Data1: byteAt(b, 1)}, true
	case 0xE0:
		return Message{Kind: PitchBend, Channel: channel, Data1: byteAt(b, 1), Data2: byteAt(b, 2)}, true
	default:
		return Message{}, false
	}
}

func byteAt(b []byte, i int) uint8 {
	if i < len(b) {
		return b[i]
	}
	return 0
}

// PitchBendValue decodes the 14-bit signed pitch-bend value
// (-8192..+8191) from Data1 (LSB) / Data2 (MSB).
func (m Message) PitchBendValue() int {
	raw := int(m.Data1) | (int(m.Data2) << 7)
	return raw - 8192
}
