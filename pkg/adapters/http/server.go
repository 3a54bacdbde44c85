package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/dto"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Engine is the part of tendril.Engine the server exposes.
type Engine interface {
	Parse(text string) (domain.Expression, error)
	Format(x domain.Expression) string
	Evaluate(ctx context.Context, text string, vars map[string]any) domain.EvaluationResult
	Validate(tc *domain.TestCase) tendril.ValidationResult
	Run(ctx context.Context, tc *domain.TestCase) (*domain.RunReport, error)
	RunTestCase(ctx context.Context, id string) (*domain.RunReport, error)
}

// Server serves the tendril HTTP API.
type Server struct {
	Engine  Engine
	Reports ports.ReportStore
	Streams *StreamManager

	decoder *dto.Decoder
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithReportStore enables GET /reports and GET /reports/{id}.
func WithReportStore(store ports.ReportStore) Option {
	return func(s *Server) { s.Reports = store }
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithStreams shares a stream manager, typically one whose Hooks feed the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		if sm != nil {
			s.Streams = sm
		}
	}
}

// WithDecoder sets the decoder for test-case bodies.
func WithDecoder(d *dto.Decoder) Option {
	return func(s *Server) {
		if d != nil {
			s.decoder = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server over engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		decoder: dto.NewDecoder(nil),
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates the HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Handler()
}

// Handler returns the routes of s.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Post("/parse", s.Parse)
	r.Post("/evaluate", s.Evaluate)
	r.Post("/validate", s.Validate)
	r.Post("/runs", s.Run)
	r.Get("/reports", s.ListReports)
	r.Get("/reports/{id}", s.GetReport)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ParseRequest is the body of POST /parse.
type ParseRequest struct {
	Expression string `json:"expression"`
}

// ParseResponse is the reply of POST /parse.
type ParseResponse struct {
	Canonical string            `json:"canonical"`
	Kind      string            `json:"kind"`
	Tree      domain.Expression `json:"tree"`
}

// EvaluateRequest is the body of POST /evaluate.
type EvaluateRequest struct {
	Expression string         `json:"expression"`
	Variables  map[string]any `json:"variables,omitempty"`
}

// RunRequest is the body of POST /runs: either a loader id or an inline test case.
type RunRequest struct {
	TestCaseID string          `json:"test_case_id,omitempty"`
	TestCase   json.RawMessage `json:"test_case,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "tendril-http",
		"version": strings.TrimSpace(tendril.Version),
	})
}

// Parse handles POST /parse.
func (s *Server) Parse(w http.ResponseWriter, r *http.Request) {
	var body ParseRequest
	if !s.decode(w, r, &body) {
		return
	}
	x, err := s.Engine.Parse(body.Expression)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ParseResponse{
		Canonical: s.Engine.Format(x),
		Kind:      string(x.Kind()),
		Tree:      x,
	})
}

// Evaluate handles POST /evaluate. Failed evaluations are reported in the
// body with status 200; the result already carries the fallback value.
func (s *Server) Evaluate(w http.ResponseWriter, r *http.Request) {
	var body EvaluateRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Expression) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("expression is required"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.Engine.Evaluate(r.Context(), body.Expression, body.Variables))
}

// Validate handles POST /validate with a test-case document as the body.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	tc, err := s.decoder.DecodeJSON(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res := s.Engine.Validate(tc)
	status := http.StatusOK
	if !res.Valid {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, res)
}

// Run handles POST /runs. The run is synchronous and its report is the reply.
func (s *Server) Run(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if !s.decode(w, r, &body) {
		return
	}

	var (
		report *domain.RunReport
		err    error
	)
	switch {
	case len(body.TestCase) > 0:
		tc, derr := s.decoder.DecodeJSON(body.TestCase)
		if derr != nil {
			s.writeError(w, http.StatusBadRequest, derr)
			return
		}
		report, err = s.Engine.Run(withTopic(r.Context(), tc.ID), tc)
	case body.TestCaseID != "":
		report, err = s.Engine.RunTestCase(withTopic(r.Context(), body.TestCaseID), body.TestCaseID)
	default:
		s.writeError(w, http.StatusBadRequest, errors.New("test_case_id or test_case is required"))
		return
	}

	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrTestCaseNotFound):
			status = http.StatusNotFound
		case report == nil:
			// Invalid test case or missing loader: nothing ran.
			status = http.StatusUnprocessableEntity
		}
		s.logger.Warn("run failed", "test_case_id", body.TestCaseID, "err", err)
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// ListReports handles GET /reports.
func (s *Server) ListReports(w http.ResponseWriter, r *http.Request) {
	if s.Reports == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("no report store configured"))
		return
	}
	ids, err := s.Reports.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetReport handles GET /reports/{id}.
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	if s.Reports == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("no report store configured"))
		return
	}
	report, err := s.Reports.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrReportNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
