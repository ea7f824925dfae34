package config

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// OutputFormats lists the output format names that ship with tdmdecode.
// Used by [Validate] to warn about unrecognised formats.
var OutputFormats = []string{"text", "jsonl"}

// ErrSinkNotRegistered is returned by [Registry.CreateSink] when no factory
// has been registered under the requested format name.
var ErrSinkNotRegistered = errors.New("config: output sink not registered")

// SinkFactory builds a sink that writes decoded words to w. Sinks that hold
// buffered state may also implement io.Closer; callers close them after the
// decode run.
type SinkFactory func(out OutputConfig, w io.Writer) (tdm.Sink, error)

// Registry maps output format names to their sink constructors. It is safe
// for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]SinkFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]SinkFactory)}
}

// RegisterSink registers a sink factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSink(name string, factory SinkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = factory
}

// CreateSink instantiates the sink registered under out.Format.
// Returns [ErrSinkNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSink(out OutputConfig, w io.Writer) (tdm.Sink, error) {
	r.mu.RLock()
	factory, ok := r.sinks[out.Format]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSinkNotRegistered, out.Format)
	}
	return factory(out, w)
}

// Names returns the registered format names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
