package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// Text writes one line per word: "start-end label", with the label chosen by
// the configured verbosity.
type Text struct {
	w         *bufio.Writer
	verbosity tdm.Verbosity
}

// NewText returns a text sink writing to w. An unknown verbosity falls back
// to [tdm.VerbosityFull].
func NewText(w io.Writer, v tdm.Verbosity) *Text {
	if !v.IsValid() {
		v = tdm.VerbosityFull
	}
	return &Text{w: bufio.NewWriter(w), verbosity: v}
}

// Emit implements [tdm.Sink].
func (t *Text) Emit(w tdm.Word) error {
	_, err := fmt.Fprintf(t.w, "%d-%d %s\n", w.Start, w.End, tdm.Label(w, t.verbosity))
	return err
}

// Close flushes buffered lines. It does not close the underlying writer.
func (t *Text) Close() error {
	return t.w.Flush()
}

// JSONL writes one [Record] per line.
type JSONL struct {
	buf *bufio.Writer
	enc *json.Encoder
}

// NewJSONL returns a jsonl sink writing to w.
func NewJSONL(w io.Writer) *JSONL {
	buf := bufio.NewWriter(w)
	return &JSONL{buf: buf, enc: json.NewEncoder(buf)}
}

// Emit implements [tdm.Sink].
func (j *JSONL) Emit(w tdm.Word) error {
	return j.enc.Encode(NewRecord(w))
}

// Close flushes buffered records. It does not close the underlying writer.
func (j *JSONL) Close() error {
	return j.buf.Flush()
}
