package tdm

// State is the complete decode state between two clock edges. A zero State
// is unsynchronized and ready for the first sample. Each decode run owns its
// State exclusively; nothing in it is shared.
type State struct {
	bits int

	channel     int
	bitCount    int
	accumulator uint64
	lastFrame   bool

	// wordStart is the index where the word being assembled began. It stays
	// unset until the first frame start has been observed.
	wordStart    int64
	synchronized bool

	words  int64
	frames int64
	edges  int64
}

// NewState returns an unsynchronized state for words of the given width.
func NewState(bitsPerSample int) *State {
	return &State{bits: bitsPerSample}
}

// Synchronized reports whether a frame start has been seen.
func (s *State) Synchronized() bool { return s.synchronized }

// Channel is the number of words completed since the last frame start.
func (s *State) Channel() int { return s.channel }

// BitCount is the number of bits accumulated into the current word.
func (s *State) BitCount() int { return s.bitCount }

// Words is the number of words emitted so far.
func (s *State) Words() int64 { return s.words }

// Step feeds one qualifying clock edge through the state machine. It returns
// the completed word and true when smp finishes one.
//
// A frame start is a low to high transition of the frame line. It restarts
// channel numbering and discards any partial word, and the first one ever
// seen arms synchronization. The data bit is always shifted in MSB first.
// Once synchronized, a full word is reported over [wordStart, smp.Index) and
// the next word starts at smp.Index. Channels count from 1 after a frame
// start because the index is bumped before the word is reported.
func (s *State) Step(smp Sample) (Word, bool) {
	s.edges++

	if smp.Frame && !s.lastFrame {
		s.channel = 0
		s.bitCount = 0
		s.accumulator = 0
		s.frames++
		if !s.synchronized {
			s.synchronized = true
			s.wordStart = smp.Index
		}
	}

	s.accumulator <<= 1
	if smp.Data {
		s.accumulator |= 1
	}
	s.bitCount++

	var (
		w    Word
		done bool
	)
	if s.synchronized && s.bitCount >= s.bits {
		s.bitCount = 0
		s.channel++
		w = Word{
			Start:   s.wordStart,
			End:     smp.Index,
			Channel: s.channel,
			Value:   s.accumulator,
			Bits:    s.bits,
		}
		done = true
		s.accumulator = 0
		s.wordStart = smp.Index
		s.words++
	}

	s.lastFrame = smp.Frame
	return w, done
}

// Stats returns counters describing everything the state has seen so far.
func (s *State) Stats() Stats {
	return Stats{
		Edges:        s.edges,
		Frames:       s.frames,
		Words:        s.words,
		Synchronized: s.synchronized,
	}
}
