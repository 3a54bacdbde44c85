package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/dto"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Engine is the part of tendril.Engine exposed as MCP tools.
type Engine interface {
	Parse(text string) (domain.Expression, error)
	Format(x domain.Expression) string
	Evaluate(ctx context.Context, text string, vars map[string]any) domain.EvaluationResult
	Validate(tc *domain.TestCase) tendril.ValidationResult
	RunTestCase(ctx context.Context, id string) (*domain.RunReport, error)
}

// ParseResponse is the output of parse_condition.
type ParseResponse struct {
	Canonical string `json:"canonical" jsonschema_description:"The condition in canonical grammar"`
	Kind      string `json:"kind" jsonschema_description:"Top-level expression kind: element, text, state, variable or compound"`
}

// RunResponse is the output of run_test_case.
type RunResponse struct {
	RunID    string   `json:"run_id" jsonschema_description:"Identifier of the run"`
	Status   string   `json:"status" jsonschema_description:"passed, failed or stopped"`
	Steps    int      `json:"steps" jsonschema_description:"Number of top-level step results"`
	Duration string   `json:"duration" jsonschema_description:"Wall-clock duration"`
	Errors   []string `json:"errors,omitempty" jsonschema_description:"Errors raised during the run"`
}

// Server exposes a tendril engine over the Model Context Protocol.
type Server struct {
	engine    Engine
	loader    ports.TestCaseLoader
	decoder   *dto.Decoder
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

// WithLoader enables run_test_case and the test case listing resource.
func WithLoader(l ports.TestCaseLoader) Option {
	return func(s *Server) { s.loader = l }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP server.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		decoder:   dto.NewDecoder(nil),
		logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
		mcpServer: server.NewMCPServer("tendril-mcp", strings.TrimSpace(tendril.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("parse_condition",
		mcp.WithDescription("Parse a test condition and return it in canonical grammar."),
		mcp.WithString("expression", mcp.Required(), mcp.Description(`Condition text, e.g. element "#login" is visible and tries < 3`)),
		mcp.WithOutputSchema[ParseResponse](),
	), mcp.NewStructuredToolHandler(s.handleParse))

	s.mcpServer.AddTool(mcp.NewTool("evaluate_condition",
		mcp.WithDescription("Evaluate a condition against the live page and the given variables."),
		mcp.WithString("expression", mcp.Required(), mcp.Description("Condition text")),
		mcp.WithString("variables", mcp.Description("JSON object of variables (optional)")),
		mcp.WithOutputSchema[domain.EvaluationResult](),
	), mcp.NewStructuredToolHandler(s.handleEvaluate))

	s.mcpServer.AddTool(mcp.NewTool("validate_test_case",
		mcp.WithDescription("Validate a test case document (YAML or JSON) without running it."),
		mcp.WithString("document", mcp.Required(), mcp.Description("The test case document")),
		mcp.WithOutputSchema[tendril.ValidationResult](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	if s.loader != nil {
		s.mcpServer.AddTool(mcp.NewTool("run_test_case",
			mcp.WithDescription("Run a stored test case and summarise the report."),
			mcp.WithString("test_case_id", mcp.Required(), mcp.Description("Identifier of the test case")),
			mcp.WithOutputSchema[RunResponse](),
		), mcp.NewStructuredToolHandler(s.handleRun))
	}
}

func (s *Server) handleParse(_ context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (ParseResponse, error) {
	text, _ := args["expression"].(string)
	x, err := s.engine.Parse(text)
	if err != nil {
		return ParseResponse{}, err
	}
	return ParseResponse{Canonical: s.engine.Format(x), Kind: string(x.Kind())}, nil
}

func (s *Server) handleEvaluate(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (domain.EvaluationResult, error) {
	text, _ := args["expression"].(string)
	if strings.TrimSpace(text) == "" {
		return domain.EvaluationResult{}, errors.New("expression is required")
	}
	var vars map[string]any
	if raw, ok := args["variables"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &vars); err != nil {
			return domain.EvaluationResult{}, fmt.Errorf("variables must be a JSON object: %w", err)
		}
	}
	return s.engine.Evaluate(ctx, text, vars), nil
}

func (s *Server) handleValidate(_ context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (tendril.ValidationResult, error) {
	doc, _ := args["document"].(string)
	tc, err := s.decoder.DecodeYAML([]byte(doc))
	if err != nil {
		return tendril.ValidationResult{}, err
	}
	return s.engine.Validate(tc), nil
}

func (s *Server) handleRun(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	id, _ := args["test_case_id"].(string)
	report, err := s.engine.RunTestCase(ctx, id)
	if report == nil {
		return RunResponse{}, fmt.Errorf("run %q: %w", id, err)
	}
	if err != nil {
		s.logger.Error("mcp run: report not saved", "test_case_id", id, "err", err)
	}
	return RunResponse{
		RunID:    report.RunID,
		Status:   string(report.Status),
		Steps:    len(report.Results),
		Duration: report.Duration().String(),
		Errors:   report.Errors,
	}, nil
}

func (s *Server) registerResources() {
	if s.loader == nil {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource("tendril://test-cases", "Available test cases",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text, err := s.testCases(ctx)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "tendril://test-cases",
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	})
}

func (s *Server) testCases(ctx context.Context) (string, error) {
	ids, err := s.loader.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list test cases: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
