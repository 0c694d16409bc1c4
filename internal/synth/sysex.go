package synth

// handleSysEx recognizes the bit-exact System Exclusive sequences
// named in spec §6 and applies the corresponding system reset or
// drum-part assignment. Unrecognized SysEx is ignored.
func (s *Synthesizer) handleSysEx(b []byte) {
	switch {
	case matchGM1On(b):
		s.resetSystem(SystemGM1)
	case matchGM2On(b):
		s.resetSystem(SystemGM2)
	case matchGSReset(b):
		s.resetSystem(SystemGS)
	case matchXGReset(b):
		s.resetSystem(SystemXG)
	case matchGSDrumPart(b):
		s.applyGSDrumPart(b)
	}
}

// resetSystem resets every channel to power-on defaults (program=0,
// bank=0, volume=100, pan=64, expression=127, pitchBend=0,
// sensitivity=2, sustain off), cuts all voices, and clears every
// channel's voice mapper, per spec §4.9.
func (s *Synthesizer) resetSystem(t SystemType) {
	s.systemType = t
	for _, ch := range s.channels {
		ch.Reset()
	}
}

// applyGSDrumPart sets channel <ch>'s drum flag per the GS Drum Part
// SysEx's `F0 41 <dev> 42 12 40 1<ch> 15 <map> <sum> F7` shape: the
// channel nibble is the low nibble of byte 6, and <map> (byte 8) is
// nonzero for "drum kit", zero for "melodic".
func (s *Synthesizer) applyGSDrumPart(b []byte) {
	if len(b) < 10 {
		return
	}
	ch := int(b[6] & 0x0F)
	if ch < 0 || ch >= numChannels {
		return
	}
	drumMap := b[8]
	s.channels[ch].SetDrumChannel(drumMap != 0)
}

// matchGM1On matches F0 7E <dev> 09 01 F7.
func matchGM1On(b []byte) bool {
	return len(b) == 6 && b[0] == 0xF0 && b[1] == 0x7E && b[3] == 0x09 && b[4] == 0x01 && b[5] == 0xF7
}

// matchGM2On matches F0 7E <dev> 09 03 F7.
func matchGM2On(b []byte) bool {
	return len(b) == 6 && b[0] == 0xF0 && b[1] == 0x7E && b[3] == 0x09 && b[4] == 0x03 && b[5] == 0xF7
}

// matchGSReset matches F0 41 <dev> 42 12 40 00 7F 00 41 F7.
func matchGSReset(b []byte) bool {
	return len(b) == 11 &&
		b[0] == 0xF0 && b[1] == 0x41 && b[3] == 0x42 && b[4] == 0x12 &&
		b[5] == 0x40 && b[6] == 0x00 && b[7] == 0x7F && b[8] == 0x00 &&
		b[9] == 0x41 && b[10] == 0xF7
}

// matchGSDrumPart matches F0 41 <dev> 42 12 40 1<ch> 15 <map> <sum> F7.
func matchGSDrumPart(b []byte) bool {
	return len(b) == 11 &&
		b[0] == 0xF0 && b[1] == 0x41 && b[3] == 0x42 && b[4] == 0x12 &&
		b[5] == 0x40 && (b[6]&0xF0) == 0x10 && b[7] == 0x15 && b[10] == 0xF7
}

// matchXGReset matches F0 43 <dev> 4C 00 00 7E 00 F7.
func matchXGReset(b []byte) bool {
	return len(b) == 9 &&
		b[0] == 0xF0 && b[1] == 0x43 && b[3] == 0x4C && b[4] == 0x00 &&
		b[5] == 0x00 && b[6] == 0x7E && b[7] == 0x00 && b[8] == 0xF7
}
