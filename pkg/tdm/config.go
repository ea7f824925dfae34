package tdm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidConfig is the sentinel wrapped by every [ConfigurationError].
var ErrInvalidConfig = errors.New("tdm: invalid configuration")

// Edge selects which bit clock transition latches a data bit.
type Edge string

const (
	// EdgeRising samples when the clock goes from low to high.
	EdgeRising Edge = "rising"

	// EdgeFalling samples when the clock goes from high to low.
	EdgeFalling Edge = "falling"
)

// IsValid reports whether e is a recognised clock edge.
func (e Edge) IsValid() bool {
	return e == EdgeRising || e == EdgeFalling
}

// ActiveLevel is the clock level a qualifying sample must have: high for a
// rising edge, low for a falling one.
func (e Edge) ActiveLevel() bool {
	return e == EdgeRising
}

// ParseEdge converts a user supplied edge name into an [Edge]. It accepts the
// long names and the single-letter forms "r" and "f", ignoring case.
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising", "r":
		return EdgeRising, nil
	case "falling", "f":
		return EdgeFalling, nil
	}
	return "", &ConfigurationError{Field: "clock_edge", Value: s, Reason: "must be rising or falling"}
}

// DefaultBitsPerSample is the word width used when none is configured.
const DefaultBitsPerSample = 16

// Config holds the decode parameters. It is fixed for the lifetime of a
// [Decoder].
type Config struct {
	// BitsPerSample is the width of one channel word. Must be at least 1.
	BitsPerSample int

	// ClockEdge selects the bit clock edge on which data is latched.
	ClockEdge Edge
}

// DefaultConfig returns 16-bit words sampled on the rising edge.
func DefaultConfig() Config {
	return Config{BitsPerSample: DefaultBitsPerSample, ClockEdge: EdgeRising}
}

// Validate returns a [ConfigurationError] describing the first invalid field,
// or nil.
func (c Config) Validate() error {
	if c.BitsPerSample <= 0 {
		return &ConfigurationError{
			Field:  "bits_per_sample",
			Value:  strconv.Itoa(c.BitsPerSample),
			Reason: "must be a positive integer",
		}
	}
	if !c.ClockEdge.IsValid() {
		return &ConfigurationError{
			Field:  "clock_edge",
			Value:  string(c.ClockEdge),
			Reason: "must be rising or falling",
		}
	}
	return nil
}

// ConfigurationError reports a decoder setting that prevents decoding from
// starting. It is the only error the decoder produces on its own.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("tdm: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets callers match any configuration failure with
// errors.Is(err, ErrInvalidConfig).
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}
