// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kadirpekel/contractagent/pkg/a2aserver"
	"github.com/kadirpekel/contractagent/pkg/auth"
	"github.com/kadirpekel/contractagent/pkg/config"
	"github.com/kadirpekel/contractagent/pkg/contracts"
	"github.com/kadirpekel/contractagent/pkg/observability"
	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/tool/doctool"
	"github.com/kadirpekel/contractagent/pkg/tool/sqltool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

// Agent is what the server needs from the contract agent.
type Agent interface {
	ProcessQuery(ctx context.Context, query string) tool.Result
	Definitions(ctx tool.ReadonlyContext) ([]tool.Definition, error)
	Lookup(ctx tool.ReadonlyContext, name string) (tool.Tool, bool)
}

// HTTPServer serves the agent over HTTP.
type HTTPServer struct {
	cfg    *config.ServerConfig
	server *http.Server

	observability *observability.Manager
	documents     tool.Tool
	dialect       warehouse.Dialect
	auth          auth.TokenValidator
	roles         []string
	a2aCard       *a2aserver.CardConfig

	mu    sync.RWMutex
	agent Agent
}

// HTTPServerOption configures the HTTP server.
type HTTPServerOption func(*HTTPServer)

// WithObservability sets the observability manager for tracing and metrics.
func WithObservability(obs *observability.Manager) HTTPServerOption {
	return func(s *HTTPServer) {
		s.observability = obs
	}
}

// WithDocumentTool sets the process_document tool behind POST /v1/documents.
// Without it the endpoint answers 404.
func WithDocumentTool(t tool.Tool) HTTPServerOption {
	return func(s *HTTPServer) {
		s.documents = t
	}
}

// WithAuth requires bearer tokens accepted by v on the /v1 routes. When
// roles are given the token's role claim must be one of them.
func WithAuth(v auth.TokenValidator, roles ...string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.auth = v
		s.roles = roles
	}
}

// WithA2A publishes the agent over A2A at /a2a with its card at the
// well-known path. An empty card URL is derived from the listen address.
func WithA2A(card a2aserver.CardConfig) HTTPServerOption {
	return func(s *HTTPServer) {
		s.a2aCard = &card
	}
}

// WithDialect sets the dialect the dashboard queries are built for.
// Default: PostgreSQL.
func WithDialect(d warehouse.Dialect) HTTPServerOption {
	return func(s *HTTPServer) {
		s.dialect = d
	}
}

// NewHTTPServer creates a server for agent.
func NewHTTPServer(cfg *config.ServerConfig, agent Agent, opts ...HTTPServerOption) *HTTPServer {
	if cfg.Host == "" || cfg.Port == 0 {
		cfg.SetDefaults()
	}

	s := &HTTPServer{
		cfg:           cfg,
		agent:         agent,
		observability: observability.NoopManager(),
		dialect:       warehouse.DialectPostgres,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateAgent swaps the agent serving new requests and returns the
// previous one. In-flight requests finish on the agent they started with.
func (s *HTTPServer) UpdateAgent(agent Agent) Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.agent
	s.agent = agent
	slog.Debug("Agent updated")
	return prev
}

func (s *HTTPServer) currentAgent() Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agent
}

// Handler builds the routed handler with the middleware chain applied.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware order: observability -> logging -> recoverer -> routes
	r.Use(observability.HTTPMiddleware(s.observability.Tracer(), s.observability.Metrics(), routePattern))
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.observability.MetricsEnabled() {
		r.Method(http.MethodGet, observability.DefaultMetricsPath, s.observability.Metrics().Handler())
		slog.Info("Metrics endpoint enabled", "path", observability.DefaultMetricsPath)
	}

	protected := s.authMiddlewares()

	if s.a2aCard != nil {
		if err := s.mountA2A(r, protected); err != nil {
			slog.Error("A2A endpoint disabled", "error", err)
		}
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(protected...)
		r.Get("/tools", s.handleListTools)
		r.Post("/tools/{name}", s.handleRunTool)
		r.Post("/query", s.handleQuery)
		r.Post("/documents", s.handleDocument)
		r.Get("/kpis", s.handleListKPIs)
		r.Get("/kpis/{name}", s.handleKPI)
		r.Get("/contracts/{id}", s.handleContract)
	})

	return r
}

func (s *HTTPServer) authMiddlewares() []func(http.Handler) http.Handler {
	if s.auth == nil {
		return nil
	}
	mws := []func(http.Handler) http.Handler{auth.Middleware(s.auth, s.cfg.Auth.ExcludedPaths)}
	if len(s.roles) > 0 {
		mws = append(mws, auth.RequireRole(s.roles...))
	}
	return mws
}

// mountA2A serves the agent card publicly and the JSON-RPC endpoint
// behind the auth middleware.
func (s *HTTPServer) mountA2A(r chi.Router, protected []func(http.Handler) http.Handler) error {
	cardCfg := *s.a2aCard
	if cardCfg.URL == "" {
		cardCfg.URL = fmt.Sprintf("http://%s%s", s.cfg.Address(), a2aserver.DefaultPath)
	}
	cardCfg.BearerAuth = s.auth != nil

	card, err := a2aserver.NewCard(context.Background(), s.currentAgent(), cardCfg)
	if err != nil {
		return err
	}
	exec := a2aserver.NewExecutor(func() a2aserver.Agent { return s.currentAgent() })
	rpc, cardHandler := a2aserver.Handlers(exec, card)

	r.Method(http.MethodGet, a2asrv.WellKnownAgentCardPath, cardHandler)
	r.With(protected...).Method(http.MethodPost, a2aserver.DefaultPath, rpc)
	slog.Info("A2A endpoint enabled", "path", a2aserver.DefaultPath, "card", a2asrv.WellKnownAgentCardPath)
	return nil
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", s.cfg.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the server within the configured shutdown timeout.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

// Address returns the listen address.
func (s *HTTPServer) Address() string {
	return s.cfg.Address()
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (s *HTTPServer) handleListTools(w http.ResponseWriter, r *http.Request) {
	defs, err := s.currentAgent().Definitions(tool.NewReadonlyContext(r.Context(), "", ""))
	if err != nil {
		writeResult(w, http.StatusInternalServerError, tool.Failure(err.Error()))
		return
	}

	tools := make([]toolInfo, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, toolInfo{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": tools,
		"total": len(tools),
	})
}

func (s *HTTPServer) handleRunTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rc := tool.NewReadonlyContext(r.Context(), uuid.NewString(), "")

	t, ok := s.currentAgent().Lookup(rc, name)
	if !ok {
		writeResult(w, http.StatusNotFound, tool.Failuref("Tool '%s' not found.", name))
		return
	}

	args := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
			writeResult(w, http.StatusBadRequest, tool.Failuref("invalid arguments: %v", err))
			return
		}
	}

	writeResult(w, http.StatusOK, tool.Execute(rc, t, args))
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *HTTPServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusBadRequest, tool.Failuref("invalid request: %v", err))
		return
	}
	if req.Query == "" {
		writeResult(w, http.StatusBadRequest, tool.Failure("query is required."))
		return
	}

	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		slog.Debug("Query received", "subject", claims.Subject)
	}
	writeResult(w, http.StatusOK, s.currentAgent().ProcessQuery(r.Context(), req.Query))
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.documents == nil {
		writeResult(w, http.StatusNotFound, tool.Failuref("Tool '%s' not found.", doctool.ProcessDocument))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeResult(w, http.StatusBadRequest, tool.Failuref("invalid upload: %v", err))
		return
	}
	defer file.Close()

	// The extension selects the document type downstream.
	tmp, err := os.CreateTemp("", "contract-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeResult(w, http.StatusInternalServerError, tool.Failure(err.Error()))
		return
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		writeResult(w, http.StatusInternalServerError, tool.Failuref("failed to store upload: %v", err))
		return
	}

	rc := tool.NewReadonlyContext(r.Context(), uuid.NewString(), "")
	slog.Debug("Processing uploaded document", "filename", header.Filename, "size", header.Size)
	writeResult(w, http.StatusOK, tool.Execute(rc, s.documents, map[string]any{"file_path": tmp.Name()}))
}

func (s *HTTPServer) handleListKPIs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"kpis": contracts.KPINames()})
}

func (s *HTTPServer) handleKPI(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	query, ok := contracts.Queries(s.dialect)[name]
	if !ok {
		writeResult(w, http.StatusNotFound, tool.Failuref("unknown KPI %q", name))
		return
	}
	s.runSQL(w, r, query)
}

func (s *HTTPServer) handleContract(w http.ResponseWriter, r *http.Request) {
	s.runSQL(w, r, contracts.ContractDetailsQuery(chi.URLParam(r, "id")))
}

func (s *HTTPServer) runSQL(w http.ResponseWriter, r *http.Request, query string) {
	rc := tool.NewReadonlyContext(r.Context(), uuid.NewString(), "")
	t, ok := s.currentAgent().Lookup(rc, sqltool.ExecuteSQL)
	if !ok {
		writeResult(w, http.StatusNotFound, tool.Failuref("Tool '%s' not found.", sqltool.ExecuteSQL))
		return
	}
	writeResult(w, http.StatusOK, tool.Execute(rc, t, map[string]any{"query": query}))
}

func writeResult(w http.ResponseWriter, status int, res tool.Result) {
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// routePattern returns the matched chi pattern, falling back to the raw
// path for unrouted requests.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
