package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dreamware/flights/internal/metrics"
	"github.com/dreamware/flights/internal/segment"
)

// Error conditions rendered by the handlers. Anything else is internal.
var (
	ErrNotFound         = errors.New("not found")
	ErrBadRequest       = errors.New("bad request")
	ErrTooLarge         = errors.New("request entity too large")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrInternal         = errors.New("internal server error")
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type resultEnvelope struct {
	Result segment.List `json:"result"`
}

// classify maps err to its status code, public message and metric reason
func classify(err error) (int, error, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrNotFound, "not_found"
	case errors.Is(err, ErrBadRequest), errors.Is(err, segment.ErrMalformedInput):
		return http.StatusBadRequest, ErrBadRequest, "bad_request"
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, ErrTooLarge, "too_large"
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, ErrMethodNotAllowed, "method_not_allowed"
	default:
		return http.StatusInternalServerError, ErrInternal, "internal"
	}
}

// writeError renders err as the fixed JSON error envelope.
// Details stay in the log; clients only see the condition's message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, public, reason := classify(err)
	metrics.Rejections.WithLabelValues(reason).Inc()

	logger := s.requestLogger(r)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	} else {
		logger.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}

	writeJSON(w, status, errorEnvelope{Error: apiError{Code: -status, Message: public.Error()}})
}

// writeJSON writes v without HTML escaping or a trailing newline so
// envelopes are byte exact
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	var data []byte
	if err := enc.Encode(v); err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":{"code":-500,"message":"internal server error"}}`)
	} else {
		data = bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
