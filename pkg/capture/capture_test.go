package capture_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/MrWong99/tdmdecode/pkg/capture"
	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

func TestEdgeSource_FindsActiveTransitions(t *testing.T) {
	t.Parallel()
	c := capture.New(0)
	// clock: 1 1 0 1 1 0 0 1
	for _, clk := range []bool{true, true, false, true, true, false, false, true} {
		c.Append(clk, false, clk)
	}

	tests := []struct {
		level bool
		want  []int64
	}{
		// Sample 0 is high but has no predecessor.
		{true, []int64{3, 7}},
		{false, []int64{2, 5}},
	}
	for _, tc := range tests {
		src := c.Source()
		var got []int64
		for {
			smp, err := src.NextEdge(tc.level)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("NextEdge: %v", err)
			}
			if smp.Clock != tc.level {
				t.Errorf("sample %d clock = %v, want %v", smp.Index, smp.Clock, tc.level)
			}
			got = append(got, smp.Index)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("level %v: edges %v, want %v", tc.level, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("level %v: edge %d at %d, want %d", tc.level, i, got[i], tc.want[i])
			}
		}
	}
}

func TestEdgeSource_Empty(t *testing.T) {
	t.Parallel()
	_, err := capture.New(0).Source().NextEdge(true)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestBuilder_DecodesBothEdges(t *testing.T) {
	t.Parallel()
	for _, edge := range []tdm.Edge{tdm.EdgeRising, tdm.EdgeFalling} {
		t.Run(string(edge), func(t *testing.T) {
			t.Parallel()
			c := capture.NewBuilder(edge).
				Idle(4).
				Frame(16, 0xB001, 0x0000).
				Frame(16, 0x1234, 0xFFFF).
				Build()

			words, err := tdm.Decode(context.Background(), tdm.Config{BitsPerSample: 16, ClockEdge: edge}, c.Source())
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			want := []struct {
				channel int
				value   uint64
			}{
				{1, 0xB001}, {2, 0x0000}, {1, 0x1234}, {2, 0xFFFF},
			}
			if len(words) != len(want) {
				t.Fatalf("got %d words, want %d", len(words), len(want))
			}
			for i, w := range words {
				if w.Channel != want[i].channel || w.Value != want[i].value {
					t.Errorf("word %d = channel %d value %#x, want channel %d value %#x",
						i, w.Channel, w.Value, want[i].channel, want[i].value)
				}
			}
			// Four idle samples, then the first bit's active level lands on
			// sample 5. Each word spans 32 samples.
			if words[0].Start != 5 || words[0].End != 35 {
				t.Errorf("first word = [%d,%d), want [5,35)", words[0].Start, words[0].End)
			}
			for i := 1; i < len(words); i++ {
				if words[i].Start != words[i-1].End {
					t.Errorf("word %d starts at %d, previous ended at %d", i, words[i].Start, words[i-1].End)
				}
			}
		})
	}
}

func TestBuilder_WrongEdgeDesynchronizes(t *testing.T) {
	t.Parallel()
	c := capture.NewBuilder(tdm.EdgeRising).Frame(8, 0xA5, 0x5A).Build()
	words, err := tdm.Decode(context.Background(), tdm.Config{BitsPerSample: 8, ClockEdge: tdm.EdgeFalling}, c.Source())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// The frame line is only high around the first bit's rising edge, so a
	// falling-edge decoder never sees it and stays unsynchronized.
	if len(words) != 0 {
		t.Errorf("got %d words on the wrong edge, want 0", len(words))
	}
}

func sampleCapture() *capture.Capture {
	return capture.NewBuilder(tdm.EdgeRising).Idle(2).Frame(8, 0x81, 0x7e, 0x3c).Build()
}

func assertSameCapture(t *testing.T, got, want *capture.Capture) {
	t.Helper()
	if got.Len() != want.Len() {
		t.Fatalf("len = %d, want %d", got.Len(), want.Len())
	}
	for i := range want.Len() {
		gc, gf, gd := got.At(i)
		wc, wf, wd := want.At(i)
		if gc != wc || gf != wf || gd != wd {
			t.Fatalf("sample %d = (%v,%v,%v), want (%v,%v,%v)", i, gc, gf, gd, wc, wf, wd)
		}
	}
}

func TestReadCSV_RoundTrip(t *testing.T) {
	t.Parallel()
	want := sampleCapture()
	var buf bytes.Buffer
	if err := capture.WriteCSV(&buf, want); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	got, err := capture.ReadCSV(&buf, capture.DefaultMapping())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	assertSameCapture(t, got, want)
}

func TestReadCSV_CommentsAndMapping(t *testing.T) {
	t.Parallel()
	in := `; sigrok-cli export
; channels: D0 D1 D2 D3
#time,data,frame,clk
0.0,1,0,0
0.1,1,1,1
0.2,0,0,0
`
	c, err := capture.ReadCSV(strings.NewReader(in), capture.Mapping{Clock: 3, Frame: 2, Data: 1})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	clk, frm, dat := c.At(1)
	if !clk || !frm || !dat {
		t.Errorf("sample 1 = (%v,%v,%v), want all high", clk, frm, dat)
	}
}

func TestReadCSV_SkipsSingleHeader(t *testing.T) {
	t.Parallel()
	c, err := capture.ReadCSV(strings.NewReader("clk,frame,data\n1,0,1\n0,1,0\n"), capture.DefaultMapping())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if clk, frm, dat := c.At(0); !clk || frm || !dat {
		t.Errorf("sample 0 = (%v,%v,%v), want (true,false,true)", clk, frm, dat)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		m    capture.Mapping
	}{
		{"too few columns", "0,1\n1,1\n", capture.DefaultMapping()},
		{"bad level after data", "0,0,0\n1,x,0\n", capture.DefaultMapping()},
		{"second header row", "a,b,c\nfoo,bar,baz\n1,0,1\n", capture.DefaultMapping()},
		{"header only", "clk,frame,data\n", capture.DefaultMapping()},
		{"empty", "", capture.DefaultMapping()},
		{"duplicate role", "0,0,0\n", capture.Mapping{Clock: 0, Frame: 0, Data: 1}},
		{"negative", "0,0,0\n", capture.Mapping{Clock: -1, Frame: 1, Data: 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := capture.ReadCSV(strings.NewReader(tc.in), tc.m); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestReadBinary_RoundTrip(t *testing.T) {
	t.Parallel()
	want := sampleCapture()
	var buf bytes.Buffer
	if err := capture.WriteBinary(&buf, want); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	got, err := capture.ReadBinary(&buf, capture.DefaultMapping())
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	assertSameCapture(t, got, want)
}

func TestReadBinary_RejectsWideMapping(t *testing.T) {
	t.Parallel()
	_, err := capture.ReadBinary(bytes.NewReader([]byte{0}), capture.Mapping{Clock: 0, Frame: 1, Data: 8})
	if err == nil {
		t.Fatal("expected error for bit 8, got nil")
	}
}

func compress(t *testing.T, kind string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch kind {
	case "gzip":
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		if _, err := zw.Write(data); err != nil {
			t.Fatalf("zstd write: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("zstd close: %v", err)
		}
	default:
		return data
	}
	return buf.Bytes()
}

func TestRead_SniffsFormatAndCompression(t *testing.T) {
	t.Parallel()
	want := sampleCapture()
	var csvBuf, binBuf bytes.Buffer
	if err := capture.WriteCSV(&csvBuf, want); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if err := capture.WriteBinary(&binBuf, want); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	for _, kind := range []string{"plain", "gzip", "zstd"} {
		for name, raw := range map[string][]byte{"csv": csvBuf.Bytes(), "binary": binBuf.Bytes()} {
			t.Run(kind+"/"+name, func(t *testing.T) {
				got, err := capture.Read(bytes.NewReader(compress(t, kind, raw)), capture.FormatAuto, capture.DefaultMapping())
				if err != nil {
					t.Fatalf("Read: %v", err)
				}
				assertSameCapture(t, got, want)
			})
		}
	}
}

func TestOpen_UsesExtension(t *testing.T) {
	t.Parallel()
	want := sampleCapture()
	var buf bytes.Buffer
	if err := capture.WriteBinary(&buf, want); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bus.bin.zst")
	if err := os.WriteFile(path, compress(t, "zstd", buf.Bytes()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := capture.Open(path, capture.FormatAuto, capture.DefaultMapping())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	assertSameCapture(t, got, want)
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := capture.Open(filepath.Join(t.TempDir(), "nope.csv"), capture.FormatAuto, capture.DefaultMapping())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}
