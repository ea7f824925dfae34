package capture

import "github.com/MrWong99/tdmdecode/pkg/tdm"

// Builder synthesises a clocked capture. Every bit occupies two samples: the
// clock at its idle level, then at the active level for the configured edge,
// with frame and data held steady across both.
type Builder struct {
	c      *Capture
	active bool
}

// NewBuilder returns a builder whose bits are latched on edge.
func NewBuilder(edge tdm.Edge) *Builder {
	return &Builder{c: New(0), active: edge.ActiveLevel()}
}

// Idle appends n samples with the clock parked at its idle level and the
// frame and data lines low.
func (b *Builder) Idle(n int) *Builder {
	for range n {
		b.c.Append(!b.active, false, false)
	}
	return b
}

// Bit appends one bit period.
func (b *Builder) Bit(data, frame bool) *Builder {
	b.c.Append(!b.active, frame, data)
	b.c.Append(b.active, frame, data)
	return b
}

// Word appends value MSB first as a bits-wide word. When frameOnFirst is
// set the frame line is raised for the word's first bit only.
func (b *Builder) Word(value uint64, bits int, frameOnFirst bool) *Builder {
	for i := bits - 1; i >= 0; i-- {
		b.Bit(value>>uint(i)&1 == 1, frameOnFirst && i == bits-1)
	}
	return b
}

// Frame appends one frame holding words, with a frame pulse on the first
// bit of the first word.
func (b *Builder) Frame(bits int, words ...uint64) *Builder {
	for i, w := range words {
		b.Word(w, bits, i == 0)
	}
	return b
}

// Build returns the capture assembled so far. The builder must not be used
// afterwards.
func (b *Builder) Build() *Capture {
	return b.c
}
