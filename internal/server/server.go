// Package server exposes the decoder over HTTP.
//
// Routes:
//
//	GET  /healthz          liveness probe
//	GET  /readyz           readiness probe
//	GET  /metrics          Prometheus scrape endpoint
//	GET  /v1/decoder       decoder metadata and active settings
//	GET  /v1/runs          decode runs in flight
//	POST /v1/decode        capture in the body, JSON array of words out
//	GET  /v1/decode/ws     streaming decode over a WebSocket
//
// The decode endpoints accept the query parameters bps, edge and format to
// override the configured decoder and capture settings for one request.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/tdmdecode/internal/app"
	"github.com/MrWong99/tdmdecode/internal/health"
	"github.com/MrWong99/tdmdecode/internal/observe"
	"github.com/MrWong99/tdmdecode/pkg/capture"
	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// DefaultMaxCaptureBytes caps the size of an uploaded capture.
const DefaultMaxCaptureBytes = 64 << 20

// Server serves the decode API for an [app.App].
type Server struct {
	app      *app.App
	metrics  *observe.Metrics
	maxBytes int64
	handler  http.Handler
}

// Option configures a [Server].
type Option func(*Server)

// WithMaxCaptureBytes overrides [DefaultMaxCaptureBytes].
func WithMaxCaptureBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithMetrics sets the metrics used by the request middleware. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds the route table for a.
func New(a *app.App, opts ...Option) *Server {
	s := &Server{app: a, maxBytes: DefaultMaxCaptureBytes}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	checkers := []health.Checker{
		health.DecoderChecker(func() (tdm.Config, error) {
			return a.Config().DecoderConfig()
		}),
	}
	if p := a.Publisher(); p != nil {
		checkers = append(checkers, health.ConnectionChecker("mqtt", p.Connected))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/decoder", s.handleDecoder)
	mux.HandleFunc("GET /v1/runs", s.handleRuns)
	mux.HandleFunc("POST /v1/decode", s.handleDecode)
	mux.HandleFunc("GET /v1/decode/ws", s.handleDecodeWS)

	s.handler = observe.Middleware(s.metrics)(mux)
	return s
}

// Handler returns the root handler, wrapped in the observability middleware.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// ─── Handlers ────────────────────────────────────────────────────────────────

// decoderResponse is the JSON body of GET /v1/decoder.
type decoderResponse struct {
	Info          tdm.DecoderInfo `json:"info"`
	BitsPerSample int             `json:"bits_per_sample"`
	ClockEdge     string          `json:"clock_edge"`
	CaptureFormat capture.Format  `json:"capture_format"`
	Channels      capture.Mapping `json:"channels"`
}

func (s *Server) handleDecoder(w http.ResponseWriter, _ *http.Request) {
	cfg := s.app.Config()
	writeJSON(w, http.StatusOK, decoderResponse{
		Info:          tdm.Metadata,
		BitsPerSample: cfg.Decoder.BitsPerSample,
		ClockEdge:     cfg.Decoder.ClockEdge,
		CaptureFormat: cfg.Capture.Format,
		Channels:      cfg.Mapping(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Runs().List())
}

// overrides parses the bps, edge and format query parameters.
func overrides(r *http.Request) (app.Overrides, error) {
	q := r.URL.Query()
	var o app.Overrides
	if v := q.Get("bps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return o, &tdm.ConfigurationError{Field: "bits_per_sample", Value: v, Reason: "must be an integer"}
		}
		o.BitsPerSample = n
	}
	o.ClockEdge = q.Get("edge")
	if v := q.Get("format"); v != "" {
		f := capture.Format(v)
		if !f.IsValid() {
			return o, fmt.Errorf("capture: unknown format %q", v)
		}
		o.Format = f
	}
	return o, nil
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), RunID: observe.RunID(r.Context())})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
