// Package capture holds logic-level captures of a TDM bus and turns them
// into the edge stream consumed by [tdm.Decoder].
//
// A [Capture] stores the clock, frame and data line levels for every sample
// number. [Capture.Source] walks it and yields the samples at which the
// clock enters the requested level. Captures are read from sigrok-style CSV
// or packed binary exports with [Read] and [Open], or synthesised with a
// [Builder].
package capture

import (
	"io"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// Capture is an in-memory sequence of bus samples. Index i of each line
// holds its level at sample number i.
type Capture struct {
	clock []bool
	frame []bool
	data  []bool
}

// New returns an empty capture with room for n samples.
func New(n int) *Capture {
	return &Capture{
		clock: make([]bool, 0, n),
		frame: make([]bool, 0, n),
		data:  make([]bool, 0, n),
	}
}

// Append adds one sample at the end of the capture.
func (c *Capture) Append(clock, frame, data bool) {
	c.clock = append(c.clock, clock)
	c.frame = append(c.frame, frame)
	c.data = append(c.data, data)
}

// Len returns the number of samples.
func (c *Capture) Len() int { return len(c.clock) }

// At returns the line levels at sample i.
func (c *Capture) At(i int) (clock, frame, data bool) {
	return c.clock[i], c.frame[i], c.data[i]
}

// Source returns a fresh [tdm.Source] positioned at the first sample. Each
// call returns an independent cursor.
func (c *Capture) Source() *EdgeSource {
	return &EdgeSource{c: c}
}

// EdgeSource finds clock edges in a [Capture].
type EdgeSource struct {
	c   *Capture
	pos int
}

// NextEdge implements [tdm.Source]. It returns the next sample whose clock
// equals activeLevel while the previous sample's clock did not. The first
// sample has no predecessor and never counts as an edge.
func (s *EdgeSource) NextEdge(activeLevel bool) (tdm.Sample, error) {
	n := s.c.Len()
	for s.pos < n {
		i := s.pos
		s.pos++
		if i == 0 {
			continue
		}
		if s.c.clock[i] != activeLevel || s.c.clock[i-1] == activeLevel {
			continue
		}
		return tdm.Sample{
			Clock: s.c.clock[i],
			Frame: s.c.frame[i],
			Data:  s.c.data[i],
			Index: int64(i),
		}, nil
	}
	return tdm.Sample{}, io.EOF
}
