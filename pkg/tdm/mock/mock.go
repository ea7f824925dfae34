// Package mock provides in-memory implementations of [tdm.Source] and
// [tdm.Sink] for use in unit tests.
//
// Both mocks are safe for concurrent use. They record every call so tests can
// assert on call counts and arguments, and expose exported fields that
// control their behaviour.
//
// Typical usage:
//
//	src := &mock.Source{Samples: []tdm.Sample{{Frame: true, Data: true, Index: 0}}}
//	sink := &mock.Sink{}
//	_, err := decoder.Run(ctx, src, sink)
//	words := sink.Words()
package mock

import (
	"io"
	"sync"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock [tdm.Source] that replays Samples in order. The samples
// are assumed to already be qualifying edges; the requested level is only
// recorded.
type Source struct {
	mu sync.Mutex

	// Samples are returned one per NextEdge call.
	Samples []tdm.Sample

	// Err, when non-nil, is returned once Samples are exhausted instead of
	// io.EOF.
	Err error

	pos int

	// CallCountNextEdge records how many times NextEdge was called.
	CallCountNextEdge int

	// ActiveLevels records the level passed to each NextEdge call.
	ActiveLevels []bool
}

// NextEdge implements [tdm.Source].
func (s *Source) NextEdge(activeLevel bool) (tdm.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountNextEdge++
	s.ActiveLevels = append(s.ActiveLevels, activeLevel)
	if s.pos >= len(s.Samples) {
		if s.Err != nil {
			return tdm.Sample{}, s.Err
		}
		return tdm.Sample{}, io.EOF
	}
	smp := s.Samples[s.pos]
	s.pos++
	return smp, nil
}

// Reset rewinds the source to its first sample and clears recorded calls.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
	s.CallCountNextEdge = 0
	s.ActiveLevels = nil
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock [tdm.Sink] that records every emitted word.
type Sink struct {
	mu sync.Mutex

	// EmitError is returned by Emit once FailAfter words have been accepted.
	EmitError error

	// FailAfter is the number of words accepted before EmitError is returned.
	FailAfter int

	words []tdm.Word

	// CallCountEmit records how many times Emit was called.
	CallCountEmit int
}

// Emit implements [tdm.Sink].
func (s *Sink) Emit(w tdm.Word) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountEmit++
	if s.EmitError != nil && len(s.words) >= s.FailAfter {
		return s.EmitError
	}
	s.words = append(s.words, w)
	return nil
}

// Words returns a copy of the accepted words in emission order.
func (s *Sink) Words() []tdm.Word {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tdm.Word, len(s.words))
	copy(out, s.words)
	return out
}
