// Package sig defines the stereo float32 audio buffer shared between
// the synthesizer's render path and the audio host adapter.
package sig

// Signal is an owned, interleaved stereo float32 buffer: Data[2*i] is
// the left sample of frame i, Data[2*i+1] is the right sample.
type Signal struct {
	Data   []float32
	Frames int
}

// New allocates a silent Signal with room for frames stereo samples.
func New(frames int) *Signal {
	return &Signal{Data: make([]float32, frames*2), Frames: frames}
}

// Set writes the left/right sample pair for frame i.
func (s *Signal) Set(i int, l, r float32) {
	s.Data[2*i] = l
	s.Data[2*i+1] = r
}

// At returns the left/right sample pair for frame i.
func (s *Signal) At(i int) (l, r float32) {
	return s.Data[2*i], s.Data[2*i+1]
}

// Add accumulates l/r into frame i, used when mixing multiple voices
// or channels into one buffer.
func (s *Signal) Add(i int, l, r float32) {
	s.Data[2*i] += l
	s.Data[2*i+1] += r
}

// Silence zeroes the whole buffer in place so it can be reused across
// Render calls without reallocating.
func (s *Signal) Silence() {
	for i := range s.Data {
		s.Data[i] = 0
	}
}
