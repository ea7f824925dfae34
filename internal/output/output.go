// Package output renders decoded TDM words for humans and machines.
//
// Every sink implements [tdm.Sink]. Writer-backed sinks buffer their output
// and must be closed to flush it. [Register] installs the built-in formats
// into a [config.Registry] so they can be selected by name.
package output

import (
	"errors"
	"io"

	"github.com/MrWong99/tdmdecode/internal/config"
	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// Record is the wire representation of a decoded word used by the jsonl
// format, the HTTP API and the MQTT publisher.
type Record struct {
	Start   int64     `json:"start"`
	End     int64     `json:"end"`
	Channel int       `json:"channel"`
	Value   uint64    `json:"value"`
	Hex     string    `json:"hex"`
	Class   string    `json:"class"`
	Labels  [3]string `json:"labels"`
}

// NewRecord converts w into its wire representation.
func NewRecord(w tdm.Word) Record {
	return Record{
		Start:   w.Start,
		End:     w.End,
		Channel: w.Channel,
		Value:   w.Value,
		Hex:     w.Hex(),
		Class:   tdm.Metadata.AnnotationClass(w.Channel),
		Labels:  tdm.Labels(w),
	}
}

// Register installs the text and jsonl sinks into reg.
func Register(reg *config.Registry) {
	reg.RegisterSink("text", func(out config.OutputConfig, w io.Writer) (tdm.Sink, error) {
		return NewText(w, out.Verbosity), nil
	})
	reg.RegisterSink("jsonl", func(_ config.OutputConfig, w io.Writer) (tdm.Sink, error) {
		return NewJSONL(w), nil
	})
}

// Tee returns a sink that forwards every word to each of sinks in order. The
// first error stops the fan-out for that word and is returned.
func Tee(sinks ...tdm.Sink) tdm.Sink {
	return tdm.SinkFunc(func(w tdm.Word) error {
		for _, s := range sinks {
			if err := s.Emit(w); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes every sink that implements [io.Closer] and joins the errors.
func Close(sinks ...tdm.Sink) error {
	var errs []error
	for _, s := range sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
