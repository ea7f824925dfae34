// Package config provides the configuration schema, loader, watcher and
// output sink registry for the tdmdecode tool.
package config

import (
	"github.com/MrWong99/tdmdecode/pkg/capture"
	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Decoder DecoderConfig `yaml:"decoder"`
	Capture CaptureConfig `yaml:"capture"`
	Output  OutputConfig  `yaml:"output"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on in serve mode
	// Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DecoderConfig mirrors [tdm.Config] in its YAML form.
type DecoderConfig struct {
	// BitsPerSample is the width of one channel word. Default: 16.
	BitsPerSample int `yaml:"bits_per_sample"`

	// ClockEdge is "rising" or "falling" ("r" and "f" are accepted).
	// Default: rising.
	ClockEdge string `yaml:"clock_edge"`
}

// CaptureConfig describes how capture files are read.
type CaptureConfig struct {
	// Format is csv, binary or auto. Default: auto.
	Format capture.Format `yaml:"format"`

	// Channels assigns capture columns or bits to the clock, frame and data
	// roles. Default: 0, 1 and 2.
	Channels *capture.Mapping `yaml:"channels"`
}

// OutputConfig selects how decoded words are reported.
type OutputConfig struct {
	// Format names a sink registered in the [Registry] (e.g., "text",
	// "jsonl"). Default: text.
	Format string `yaml:"format"`

	// Verbosity picks the label rendering used by text output.
	Verbosity tdm.Verbosity `yaml:"verbosity"`

	// Summary appends per-channel statistics after each capture.
	Summary bool `yaml:"summary"`
}

// MQTTConfig configures publishing of decoded words to an MQTT broker.
// Publishing is disabled while Broker is empty.
type MQTTConfig struct {
	// Broker is the broker URL (e.g., "tcp://localhost:1883").
	Broker string `yaml:"broker"`

	// TopicPrefix is prepended to the per-channel topic. Default: "tdm".
	TopicPrefix string `yaml:"topic_prefix"`

	// ClientID identifies this client to the broker. A random ID is used
	// when empty.
	ClientID string `yaml:"client_id"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// QoS is the MQTT quality of service level, 0 to 2.
	QoS byte `yaml:"qos"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Default returns a configuration with every default applied. It is used
// when no configuration file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Decoder.BitsPerSample == 0 {
		c.Decoder.BitsPerSample = tdm.DefaultBitsPerSample
	}
	if c.Decoder.ClockEdge == "" {
		c.Decoder.ClockEdge = string(tdm.EdgeRising)
	}
	if c.Capture.Format == "" {
		c.Capture.Format = capture.FormatAuto
	}
	if c.Capture.Channels == nil {
		m := capture.DefaultMapping()
		c.Capture.Channels = &m
	}
	if c.Output.Format == "" {
		c.Output.Format = "text"
	}
	if c.Output.Verbosity == "" {
		c.Output.Verbosity = tdm.VerbosityFull
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "tdm"
	}
}

// DecoderConfig converts the decoder section into a validated [tdm.Config].
// Invalid values are reported as a [*tdm.ConfigurationError].
func (c *Config) DecoderConfig() (tdm.Config, error) {
	edge, err := tdm.ParseEdge(c.Decoder.ClockEdge)
	if err != nil {
		return tdm.Config{}, err
	}
	cfg := tdm.Config{BitsPerSample: c.Decoder.BitsPerSample, ClockEdge: edge}
	if err := cfg.Validate(); err != nil {
		return tdm.Config{}, err
	}
	return cfg, nil
}

// Mapping returns the configured channel roles, or the default mapping.
func (c *Config) Mapping() capture.Mapping {
	if c.Capture.Channels == nil {
		return capture.DefaultMapping()
	}
	return *c.Capture.Channels
}
