package output

import (
	"sync"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// Collector is an in-memory sink. It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	words []tdm.Word
}

// Emit implements [tdm.Sink].
func (c *Collector) Emit(w tdm.Word) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.words = append(c.words, w)
	return nil
}

// Words returns a copy of the collected words in emission order.
func (c *Collector) Words() []tdm.Word {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tdm.Word, len(c.words))
	copy(out, c.words)
	return out
}

// Records returns the collected words in their wire representation.
func (c *Collector) Records() []Record {
	words := c.Words()
	out := make([]Record, len(words))
	for i, w := range words {
		out[i] = NewRecord(w)
	}
	return out
}

// Len returns the number of collected words.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.words)
}

// Reset drops all collected words.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.words = nil
}
