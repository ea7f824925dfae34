package tdm

import (
	"fmt"
	"strconv"
)

// Verbosity selects one of the three renderings produced by [Labels].
type Verbosity string

const (
	VerbosityFull  Verbosity = "full"
	VerbosityShort Verbosity = "short"
	VerbosityIndex Verbosity = "index"
)

// IsValid reports whether v is a recognised verbosity.
func (v Verbosity) IsValid() bool {
	switch v {
	case VerbosityFull, VerbosityShort, VerbosityIndex:
		return true
	}
	return false
}

// HexWidth returns the number of hex digits used to display a word of the
// given width: 2 up to 8 bits, 4 up to 16 bits, 8 beyond that.
func HexWidth(bits int) int {
	switch {
	case bits <= 8:
		return 2
	case bits <= 16:
		return 4
	default:
		return 8
	}
}

// FormatValue renders v as zero-padded lowercase hex sized for the word
// width. Values wider than the padding are printed in full.
func FormatValue(v uint64, bits int) string {
	return fmt.Sprintf("%0*x", HexWidth(bits), v)
}

// Labels renders w at decreasing verbosity: "Channel N: <hex>", "CN: <hex>"
// and "N".
func Labels(w Word) [3]string {
	v := FormatValue(w.Value, w.Bits)
	n := strconv.Itoa(w.Channel)
	return [3]string{
		"Channel " + n + ": " + v,
		"C" + n + ": " + v,
		n,
	}
}

// Label returns the single rendering of w selected by v. Unknown values fall
// back to the full form.
func Label(w Word, v Verbosity) string {
	l := Labels(w)
	switch v {
	case VerbosityShort:
		return l[1]
	case VerbosityIndex:
		return l[2]
	}
	return l[0]
}

// Hex returns the word value formatted for its width.
func (w Word) Hex() string { return FormatValue(w.Value, w.Bits) }

// String returns the full label.
func (w Word) String() string { return Labels(w)[0] }
