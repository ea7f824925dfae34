package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/coder/websocket"

	"github.com/MrWong99/tdmdecode/internal/observe"
	"github.com/MrWong99/tdmdecode/internal/output"
	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// handleDecode handles POST /v1/decode. The request body is a capture in any
// supported format, optionally gzip or zstd compressed.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	o, err := overrides(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	dc, err := s.app.DecoderConfig(o)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxBytes)
	c, err := s.app.Read(body, o)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, r, status, err)
		return
	}

	var col output.Collector
	if _, err := s.app.Decode(r.Context(), "http", c, dc, &col); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, col.Records())
}

// handleDecodeWS handles GET /v1/decode/ws. The client sends the capture as
// a single binary message; the server answers with one text message per
// decoded word and then closes the connection normally.
func (s *Server) handleDecodeWS(w http.ResponseWriter, r *http.Request) {
	o, err := overrides(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	dc, err := s.app.DecoderConfig(o)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.maxBytes)

	ctx := r.Context()
	log := observe.Logger(ctx)

	typ, data, err := conn.Read(ctx)
	if err != nil {
		log.Debug("websocket read failed", "err", err)
		return
	}
	if typ != websocket.MessageBinary {
		conn.Close(websocket.StatusUnsupportedData, "capture must be sent as a binary message")
		return
	}

	c, err := s.app.Read(bytes.NewReader(data), o)
	if err != nil {
		conn.Close(websocket.StatusInvalidFramePayloadData, closeReason(err))
		return
	}

	sink := tdm.SinkFunc(func(word tdm.Word) error {
		msg, err := json.Marshal(output.NewRecord(word))
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageText, msg)
	})
	if _, err := s.app.Decode(ctx, "websocket", c, dc, sink); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		conn.Close(websocket.StatusInternalError, closeReason(err))
		return
	}
	conn.Close(websocket.StatusNormalClosure, "decode complete")
}

// closeReason trims err to fit a WebSocket close frame.
func closeReason(err error) string {
	const maxReason = 123
	msg := fmt.Sprint(err)
	if len(msg) <= maxReason {
		return msg
	}
	// Cut on a rune boundary; close reasons must be valid UTF-8.
	n := maxReason
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
