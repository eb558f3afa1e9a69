package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"dealroom/pkg/httpx"
)

const maxCallbackBodyBytes = 1 << 20

// handleClosingCallback is called by the closing service once a closing it
// opened has finished. The body is signed; see webhooks.HMACVerifier.
func (s *Server) handleClosingCallback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteError(w, r, 413, "PAYLOAD_TOO_LARGE", "callback body exceeds 1MB", nil)
			return
		}
		httpx.WriteError(w, r, 400, "BAD_BODY", err.Error(), nil)
		return
	}
	res, err := s.callbacks.Verify(r.Header, raw, s.now())
	if err != nil {
		httpx.WriteError(w, r, 500, "VERIFIER_ERROR", err.Error(), nil)
		return
	}
	if !res.Valid {
		s.log.Warn("closing_callback_rejected", slog.String("event_id", res.EventID), slog.Any("details", res.Details))
		httpx.WriteError(w, r, 401, "INVALID_SIGNATURE", "callback signature did not verify", res.Details)
		return
	}

	var req struct {
		TransactionID string `json:"transaction_id"`
		ClosingID     string `json:"closing_id"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httpx.WriteError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.TransactionID) == "" || strings.TrimSpace(req.ClosingID) == "" {
		httpx.WriteError(w, r, 400, "VALIDATION", "transaction_id and closing_id are required", nil)
		return
	}
	tx, err := s.engine.CompleteClosing(r.Context(), req.TransactionID, req.ClosingID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, envelope(r, "transaction", tx, "event_id", res.EventID))
}
