// Command tdmdecode decodes TDM serial audio from logic analyser captures.
//
// Usage:
//
//	tdmdecode [flags] capture...
//	tdmdecode -serve [flags]
//
// Captures are sigrok-style CSV or binary logic exports, optionally gzip or
// zstd compressed. Several captures are decoded concurrently and printed in
// argument order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/tdmdecode/internal/app"
	"github.com/MrWong99/tdmdecode/internal/config"
	"github.com/MrWong99/tdmdecode/internal/observe"
	"github.com/MrWong99/tdmdecode/internal/output"
	"github.com/MrWong99/tdmdecode/internal/server"
	"github.com/MrWong99/tdmdecode/pkg/capture"
	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// logLevel backs the default logger so hot reloads can change it.
var logLevel = new(slog.LevelVar)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// flags holds the parsed command line.
type flags struct {
	configPath string
	bps        int
	edge       string
	format     string
	output     string
	verbosity  string
	summary    bool
	watch      bool
	serve      bool
	captures   []string
	set        map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	fs := flag.NewFlagSet("tdmdecode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &flags{set: make(map[string]bool)}
	fs.StringVar(&f.configPath, "config", "", "path to the YAML configuration file")
	fs.IntVar(&f.bps, "bps", tdm.DefaultBitsPerSample, "bits per channel word")
	fs.StringVar(&f.edge, "edge", "rising", "clock edge to latch data on (rising, falling, r, f)")
	fs.StringVar(&f.format, "format", "auto", "capture format (auto, csv, binary)")
	fs.StringVar(&f.output, "output", "text", "output format (text, jsonl)")
	fs.StringVar(&f.verbosity, "verbosity", "full", "text label verbosity (full, short, index)")
	fs.BoolVar(&f.summary, "summary", false, "print per-channel statistics after each capture")
	fs.BoolVar(&f.watch, "watch", false, "reload -config on change and decode again")
	fs.BoolVar(&f.serve, "serve", false, "serve the HTTP API instead of decoding files")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: tdmdecode [flags] capture...\n       tdmdecode -serve [flags]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	f.captures = fs.Args()

	if !f.serve && len(f.captures) == 0 {
		fs.Usage()
		return nil, errors.New("no capture files given")
	}
	if f.watch && f.configPath == "" {
		return nil, errors.New("-watch requires -config")
	}
	return f, nil
}

// loadConfig loads the config file, if any, and applies explicitly set flags
// on top of it.
func (f *flags) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}
	f.apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies every flag given on the command line into cfg.
func (f *flags) apply(cfg *config.Config) {
	if f.set["bps"] {
		cfg.Decoder.BitsPerSample = f.bps
	}
	if f.set["edge"] {
		cfg.Decoder.ClockEdge = f.edge
	}
	if f.set["format"] {
		cfg.Capture.Format = capture.Format(f.format)
	}
	if f.set["output"] {
		cfg.Output.Format = f.output
	}
	if f.set["verbosity"] {
		cfg.Output.Verbosity = tdm.Verbosity(f.verbosity)
	}
	if f.set["summary"] {
		cfg.Output.Summary = f.summary
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "tdmdecode: %v\n", err)
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := f.loadConfig()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "tdmdecode: config file %q not found\n", f.configPath)
		} else {
			fmt.Fprintf(stderr, "tdmdecode: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel, stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	// Metrics are only exported when there is an endpoint to scrape them.
	if f.serve {
		dc, _ := cfg.DecoderConfig() // validated by loadConfig
		shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceVersion: version,
			Decoder:        dc,
			CaptureFormat:  string(cfg.Capture.Format),
		})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	// reload is signalled when a config change requires decoding again.
	reload := make(chan struct{}, 1)
	if f.watch {
		w, err := config.NewWatcher(f.configPath, func(old, new *config.Config) {
			f.apply(new)
			if err := config.Validate(new); err != nil {
				slog.Warn("config reload rejected after applying flags", "err", err)
				return
			}
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				logLevel.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			application.SetConfig(new)
			if d.NeedsRedecode() {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		})
		if err != nil {
			slog.Error("failed to watch config", "err", err)
			return 1
		}
		defer w.Stop()
	}

	// ── Serve mode ────────────────────────────────────────────────────────────
	if f.serve {
		slog.Info("tdmdecode starting",
			"version", version,
			"listen_addr", cfg.Server.ListenAddr,
			"bits_per_sample", cfg.Decoder.BitsPerSample,
			"clock_edge", cfg.Decoder.ClockEdge,
		)
		srv := server.New(application)
		if err := srv.ListenAndServe(ctx, cfg.Server.ListenAddr, 15*time.Second); err != nil {
			slog.Error("server error", "err", err)
			return 1
		}
		slog.Info("goodbye")
		return 0
	}

	// ── Decode mode ───────────────────────────────────────────────────────────
	if err := decodeAndPrint(ctx, application, f.captures, stdout); err != nil {
		slog.Error("decode failed", "err", err)
		return 1
	}
	if !f.watch {
		return 0
	}

	slog.Info("watching configuration for changes", "path", f.configPath)
	for {
		select {
		case <-ctx.Done():
			return 0
		case <-reload:
			if err := decodeAndPrint(ctx, application, f.captures, stdout); err != nil {
				slog.Error("decode failed", "err", err)
			}
		}
	}
}

// decodeAndPrint decodes every capture concurrently and renders the results
// in argument order with the configured output format.
func decodeAndPrint(ctx context.Context, a *app.App, paths []string, stdout io.Writer) error {
	results, err := a.DecodeFiles(ctx, paths)
	if err != nil {
		return err
	}
	cfg := a.Config()
	for _, res := range results {
		if len(results) > 1 && cfg.Output.Format == "text" {
			fmt.Fprintf(stdout, "== %s ==\n", res.Path)
		}
		sink, err := a.Registry().CreateSink(cfg.Output, stdout)
		if err != nil {
			return err
		}
		for _, w := range res.Words {
			if err := sink.Emit(w); err != nil {
				return err
			}
		}
		if err := output.Close(sink); err != nil {
			return err
		}
		if !res.Stats.Synchronized {
			slog.Warn("no frame start found", "capture", res.Path, "edges", res.Stats.Edges)
		}
		if cfg.Output.Summary {
			if err := output.WriteSummary(stdout, output.Summarize(res.Words)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel, w io.Writer) *slog.Logger {
	logLevel.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
