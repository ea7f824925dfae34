package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Decoder. The tdm.ConfigurationError is kept intact so callers can
	// match it through the joined error.
	if _, err := cfg.DecoderConfig(); err != nil {
		errs = append(errs, fmt.Errorf("decoder: %w", err))
	}

	// Capture
	if cfg.Capture.Format != "" && !cfg.Capture.Format.IsValid() {
		errs = append(errs, fmt.Errorf("capture.format %q is invalid; valid values: auto, csv, binary", cfg.Capture.Format))
	}
	if err := cfg.Mapping().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("capture.channels: %w", err))
	}

	// Output
	if cfg.Output.Format != "" && !slices.Contains(OutputFormats, cfg.Output.Format) {
		slog.Warn("unknown output format; decoding fails unless a sink is registered under this name",
			"format", cfg.Output.Format,
			"known", OutputFormats,
		)
	}
	if cfg.Output.Verbosity != "" && !cfg.Output.Verbosity.IsValid() {
		errs = append(errs, fmt.Errorf("output.verbosity %q is invalid; valid values: full, short, index", cfg.Output.Verbosity))
	}

	// MQTT
	if cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d is out of range [0, 2]", cfg.MQTT.QoS))
	}
	if !cfg.MQTT.Enabled() && (cfg.MQTT.Username != "" || cfg.MQTT.Password != "") {
		slog.Warn("mqtt credentials are set but mqtt.broker is empty; publishing is disabled")
	}

	return errors.Join(errs...)
}
