// Package api implements the HTTP surface of the flights service.
//
// Routes:
//
//	PUT /api/{db}/{key}  consolidate the legs in the body
//	GET /health          store statistics, read through the worker
//	GET /metrics         Prometheus exposition
//
// Every other GET answers 404 and every other method 405, both with the JSON
// error envelope {"error":{"code":-<status>,"message":"..."}}.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dreamware/flights/internal/consolidate"
	"github.com/dreamware/flights/internal/metrics"
	"github.com/dreamware/flights/internal/segment"
	"github.com/dreamware/flights/internal/storage"
	"github.com/dreamware/flights/internal/worker"
)

// RoutingKey is the database/item pair taken from the request path.
// Item is accepted but not interpreted.
type RoutingKey struct {
	Database string
	Item     string
}

// Options tune the PUT handler
type Options struct {
	MaxBodyBytes int64  // Request body limit; 0 means unlimited
	MaxSegments  int    // Legs accepted per request; 0 means unlimited
	StrictTokens bool   // Reject unpaired and unterminated tokens
	Version      string // Reported in the Server header
}

// Server holds the handlers; all shared state lives behind the worker
type Server struct {
	worker    *worker.Worker
	tokenizer *segment.Tokenizer
	maxBody   int64
	version   string
	logger    *zap.Logger
}

// NewServer creates a Server that runs every request's core work on w
func NewServer(w *worker.Worker, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	tok := segment.NewTokenizer(opts.MaxSegments)
	tok.Strict = opts.StrictTokens
	return &Server{
		worker:    w,
		tokenizer: tok,
		maxBody:   opts.MaxBodyBytes,
		version:   opts.Version,
		logger:    logger,
	}
}

// Handler returns the routed handler wrapped in the default middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/{db}/{key}", s.handleItem)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/", s.handleDefault)

	return s.withRequestID(s.withServerHeader(s.withAccessLog(mux)))
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.handleDefault(w, r)
		return
	}
	s.handlePut(w, r)
}

// handleDefault answers unknown routes: 404 for GET, 405 otherwise
func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.writeError(w, r, fmt.Errorf("%w: %s %s", ErrNotFound, r.Method, r.URL.Path))
		return
	}
	s.writeError(w, r, fmt.Errorf("%w: %s %s", ErrMethodNotAllowed, r.Method, r.URL.Path))
}

// handlePut consolidates the legs in the body.
// Validation, tokenizing and consolidation run as one worker job, so no two
// requests ever execute them concurrently.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := RoutingKey{Database: r.PathValue("db"), Item: r.PathValue("key")}

	var reader io.Reader = r.Body
	if s.maxBody > 0 {
		reader = http.MaxBytesReader(w, r.Body, s.maxBody)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, tooLarge.Limit))
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: read body: %v", ErrBadRequest, err))
		return
	}

	var result segment.List
	err = s.worker.Submit(r.Context(), func(st *worker.State) error {
		var err error
		result, err = s.process(st, key, body)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLogger(r).Debug("legs consolidated",
		zap.String("database", key.Database),
		zap.String("item", key.Item),
		zap.Int("segments", len(result)))
	writeJSON(w, http.StatusOK, resultEnvelope{Result: result})
}

// process is the core of one PUT: Received → Validated → Parsed → Consolidated
func (s *Server) process(st *worker.State, key RoutingKey, body []byte) (segment.List, error) {
	if st.Name != key.Database {
		return nil, fmt.Errorf("%w: database %q", ErrNotFound, key.Database)
	}

	legs, err := s.tokenizer.Tokenize(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	merged, stats := consolidate.Consolidate(legs)
	metrics.InputSegments.Observe(float64(stats.Input))
	metrics.Merges.Add(float64(stats.Merges))
	return merged, nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	storage.StoreStats
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var resp healthResponse
	err := s.worker.Submit(r.Context(), func(st *worker.State) error {
		resp.Database = st.Name
		if st.Store == nil {
			return nil
		}
		stats, err := st.Store.Stats()
		resp.StoreStats = stats
		return err
	})
	if err != nil {
		s.writeError(w, r, fmt.Errorf("health: %w", err))
		return
	}
	resp.Status = "ok"
	writeJSON(w, http.StatusOK, resp)
}
