package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be applied without restarting are tracked.
type ConfigDiff struct {
	DecoderChanged  bool // bits_per_sample or clock_edge changed
	CaptureChanged  bool // capture format or channel roles changed
	OutputChanged   bool // output format, verbosity or summary changed
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// NeedsRedecode reports whether captures have to be decoded again for the
// new config to take effect.
func (d ConfigDiff) NeedsRedecode() bool {
	return d.DecoderChanged || d.CaptureChanged || d.OutputChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Decoder != new.Decoder {
		d.DecoderChanged = true
	}

	if old.Capture.Format != new.Capture.Format || old.Mapping() != new.Mapping() {
		d.CaptureChanged = true
	}

	if old.Output != new.Output {
		d.OutputChanged = true
	}

	return d
}
