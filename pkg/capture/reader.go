package capture

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format identifies a capture file layout.
type Format string

const (
	// FormatAuto picks CSV or binary from the file name or content.
	FormatAuto Format = "auto"

	// FormatCSV is a sigrok-cli CSV export: one row per sample, one column
	// per logic channel holding 0 or 1.
	FormatCSV Format = "csv"

	// FormatBinary is a sigrok "binary" logic export with one byte per
	// sample; bit n holds logic channel n.
	FormatBinary Format = "binary"
)

// IsValid reports whether f is a recognised format.
func (f Format) IsValid() bool {
	switch f {
	case FormatAuto, FormatCSV, FormatBinary:
		return true
	}
	return false
}

// ErrNoSamples is returned when a capture file holds no sample rows.
var ErrNoSamples = errors.New("capture: no samples")

// Mapping assigns capture columns (CSV) or bit positions (binary) to the
// three bus roles.
type Mapping struct {
	Clock int `yaml:"clock" json:"clock"`
	Frame int `yaml:"frame" json:"frame"`
	Data  int `yaml:"data" json:"data"`
}

// DefaultMapping expects clock, frame and data on channels 0, 1 and 2.
func DefaultMapping() Mapping {
	return Mapping{Clock: 0, Frame: 1, Data: 2}
}

// Validate checks that every role has a distinct non-negative channel.
func (m Mapping) Validate() error {
	if m.Clock < 0 || m.Frame < 0 || m.Data < 0 {
		return fmt.Errorf("capture: channel mapping %+v has a negative index", m)
	}
	if m.Clock == m.Frame || m.Clock == m.Data || m.Frame == m.Data {
		return fmt.Errorf("capture: channel mapping %+v assigns one channel to several roles", m)
	}
	return nil
}

func (m Mapping) highest() int {
	return max(m.Clock, m.Frame, m.Data)
}

// Open reads the capture at path. Gzip and zstd compressed files are
// decompressed transparently. With [FormatAuto] the format is taken from the
// file extension, falling back to content sniffing.
func Open(path string, format Format, m Mapping) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %q: %w", path, err)
	}
	defer f.Close()

	if format == FormatAuto || format == "" {
		format = formatFromName(path)
	}
	c, err := Read(f, format, m)
	if err != nil {
		return nil, fmt.Errorf("capture: read %q: %w", path, err)
	}
	return c, nil
}

// formatFromName guesses the format from the extension under any
// compression suffix.
func formatFromName(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".zst")
	switch filepath.Ext(name) {
	case ".csv", ".txt":
		return FormatCSV
	case ".bin", ".raw", ".logic":
		return FormatBinary
	}
	return FormatAuto
}

// Read decodes a capture from r. Compressed input is detected by its magic
// bytes.
func Read(r io.Reader, format Format, m Mapping) (*Capture, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	rc, err := Decompress(r)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	if format == FormatAuto || format == "" {
		format = sniffFormat(br)
	}
	switch format {
	case FormatCSV:
		return ReadCSV(br, m)
	case FormatBinary:
		return ReadBinary(br, m)
	}
	return nil, fmt.Errorf("capture: unknown format %q", format)
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Decompress wraps r in a gzip or zstd reader when the stream starts with
// the matching magic number. Plain input is returned unchanged.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("capture: peek header: %w", err)
	}
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("capture: gzip: %w", err)
		}
		return zr, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("capture: zstd: %w", err)
		}
		return zr.IOReadCloser(), nil
	}
	return io.NopCloser(br), nil
}

// sniffFormat treats input containing control bytes as binary and anything
// else as CSV.
func sniffFormat(br *bufio.Reader) Format {
	head, _ := br.Peek(512)
	for _, b := range head {
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
			return FormatBinary
		}
	}
	return FormatCSV
}

// ReadCSV parses a sigrok-cli style CSV export. Lines starting with ';' or
// '#' are comments. The first non-comment row is treated as a header and
// skipped when its mapped columns are not 0 or 1; any later such row is an
// error.
func ReadCSV(r io.Reader, m Mapping) (*Capture, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	cr := csv.NewReader(r)
	cr.Comment = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	c := New(0)
	need := m.highest() + 1
	row, records := 0, 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("capture: csv: %w", err)
		}
		row++
		if len(rec) > 0 && strings.HasPrefix(rec[0], "#") {
			continue
		}
		records++
		if len(rec) < need {
			return nil, fmt.Errorf("capture: csv row %d has %d columns, mapping needs %d", row, len(rec), need)
		}
		clock, okC := parseLevel(rec[m.Clock])
		frame, okF := parseLevel(rec[m.Frame])
		data, okD := parseLevel(rec[m.Data])
		if !okC || !okF || !okD {
			if records == 1 {
				continue
			}
			return nil, fmt.Errorf("capture: csv row %d: expected 0 or 1 in columns %d, %d, %d", row, m.Clock, m.Frame, m.Data)
		}
		c.Append(clock, frame, data)
	}
	if c.Len() == 0 {
		return nil, ErrNoSamples
	}
	return c, nil
}

func parseLevel(s string) (bool, bool) {
	switch strings.TrimSpace(s) {
	case "0":
		return false, true
	case "1":
		return true, true
	}
	return false, false
}

// ReadBinary parses packed logic data with one byte per sample. Mapping
// indices are bit positions and must be below 8.
func ReadBinary(r io.Reader, m Mapping) (*Capture, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.highest() > 7 {
		return nil, fmt.Errorf("capture: binary mapping %+v exceeds 8 channels", m)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("capture: binary: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoSamples
	}
	c := New(len(raw))
	for _, b := range raw {
		c.Append(b>>uint(m.Clock)&1 == 1, b>>uint(m.Frame)&1 == 1, b>>uint(m.Data)&1 == 1)
	}
	return c, nil
}

// WriteCSV writes c in the layout read by [ReadCSV] with a header row and the
// default channel mapping.
func WriteCSV(w io.Writer, c *Capture) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"clock", "frame", "data"}); err != nil {
		return err
	}
	for i := range c.Len() {
		clk, frm, dat := c.At(i)
		if err := cw.Write([]string{level(clk), level(frm), level(dat)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBinary writes c as packed bytes with the default channel mapping.
func WriteBinary(w io.Writer, c *Capture) error {
	buf := make([]byte, c.Len())
	for i := range buf {
		clk, frm, dat := c.At(i)
		buf[i] = bit(clk, 0) | bit(frm, 1) | bit(dat, 2)
	}
	_, err := w.Write(buf)
	return err
}

func level(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func bit(b bool, pos uint) byte {
	if b {
		return 1 << pos
	}
	return 0
}
