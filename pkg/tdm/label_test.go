package tdm_test

import (
	"testing"

	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

func TestHexWidth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		bits int
		want int
	}{
		{1, 2}, {8, 2}, {9, 4}, {16, 4}, {17, 8}, {24, 8}, {32, 8}, {48, 8},
	}
	for _, tc := range tests {
		if got := tdm.HexWidth(tc.bits); got != tc.want {
			t.Errorf("HexWidth(%d) = %d, want %d", tc.bits, got, tc.want)
		}
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		word tdm.Word
		want [3]string
	}{
		{
			name: "8-bit",
			word: tdm.Word{Channel: 3, Value: 0x0f, Bits: 8},
			want: [3]string{"Channel 3: 0f", "C3: 0f", "3"},
		},
		{
			name: "12-bit padded to 4 digits",
			word: tdm.Word{Channel: 1, Value: 0xabc, Bits: 12},
			want: [3]string{"Channel 1: 0abc", "C1: 0abc", "1"},
		},
		{
			name: "24-bit padded to 8 digits",
			word: tdm.Word{Channel: 12, Value: 0x123456, Bits: 24},
			want: [3]string{"Channel 12: 00123456", "C12: 00123456", "12"},
		},
		{
			name: "wide value is not truncated",
			word: tdm.Word{Channel: 2, Value: 0x1_0000_0001, Bits: 40},
			want: [3]string{"Channel 2: 100000001", "C2: 100000001", "2"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tdm.Labels(tc.word); got != tc.want {
				t.Errorf("Labels = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLabel_Verbosity(t *testing.T) {
	t.Parallel()
	w := tdm.Word{Channel: 4, Value: 0xbeef, Bits: 16}
	tests := []struct {
		v    tdm.Verbosity
		want string
	}{
		{tdm.VerbosityFull, "Channel 4: beef"},
		{tdm.VerbosityShort, "C4: beef"},
		{tdm.VerbosityIndex, "4"},
		{"", "Channel 4: beef"},
	}
	for _, tc := range tests {
		if got := tdm.Label(w, tc.v); got != tc.want {
			t.Errorf("Label(%q) = %q, want %q", tc.v, got, tc.want)
		}
	}
	if tdm.Verbosity("loud").IsValid() {
		t.Error(`Verbosity("loud").IsValid() = true`)
	}
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	if tdm.Metadata.ID != "tdm" {
		t.Errorf("ID = %q, want tdm", tdm.Metadata.ID)
	}
	if len(tdm.Metadata.Channels) != 3 {
		t.Fatalf("channels = %d, want 3", len(tdm.Metadata.Channels))
	}
	ids := []string{"clock", "frame", "data"}
	for i, ch := range tdm.Metadata.Channels {
		if ch.ID != ids[i] {
			t.Errorf("channel %d id = %q, want %q", i, ch.ID, ids[i])
		}
	}
	if n := len(tdm.Metadata.Annotations); n != 10 {
		t.Errorf("annotation classes = %d, want 10", n)
	}

	tests := []struct {
		channel int
		want    string
	}{
		{0, "ch0"}, {1, "ch1"}, {7, "ch7"}, {8, "data"}, {-1, "data"},
	}
	for _, tc := range tests {
		if got := tdm.Metadata.AnnotationClass(tc.channel); got != tc.want {
			t.Errorf("AnnotationClass(%d) = %q, want %q", tc.channel, got, tc.want)
		}
	}
}
