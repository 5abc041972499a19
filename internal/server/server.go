// Package server exposes the import engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/importlog"
)

// Options configures a Server.
type Options struct {
	// MaxSourceBytes is the statement size ceiling; request bodies are capped
	// relative to it.
	MaxSourceBytes int64
	CommitTimeout  time.Duration
	// KnowsAccount rejects imports into unconfigured accounts. Nil accepts all.
	KnowsAccount func(string) bool
	// LogDir receives the import log. Empty disables it.
	LogDir string
	Now    func() time.Time
}

// Server is the HTTP server for statement imports.
type Server struct {
	engine *engine.Engine
	opts   Options
	router *chi.Mux
	server *http.Server
}

// New creates a Server around eng.
func New(eng *engine.Engine, opts Options) *Server {
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = 2 * time.Minute
	}
	if opts.KnowsAccount == nil {
		opts.KnowsAccount = func(string) bool { return true }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		engine: eng,
		opts:   opts,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/imports/preview", s.handlePreview)
		r.Post("/imports/commit", s.handleCommit)

		r.Get("/ledger", s.handleLedger)

		r.Get("/batches", s.handleListBatches)
		r.Get("/batches/{id}", s.handleGetBatch)
		r.Delete("/batches/{id}", s.handleDeleteBatch)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until Shutdown is called. It returns
// http.ErrServerClosed after a shutdown, even one that happened first.
func (s *Server) Start(addr string) error {
	s.server.Addr = addr
	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) record(ctx context.Context, e importlog.Entry) {
	if s.opts.LogDir == "" {
		return
	}
	e.Timestamp = s.opts.Now()
	if err := importlog.Append(s.opts.LogDir, []importlog.Entry{e}); err != nil {
		slog.ErrorContext(ctx, "writing import log", "error", err)
	}
}

// bodyLimit caps request bodies. JSON escaping can grow a statement, so the
// cap is a multiple of the source ceiling.
func (s *Server) bodyLimit() int64 {
	if s.opts.MaxSourceBytes <= 0 {
		return 64 << 20
	}
	return s.opts.MaxSourceBytes*6 + 1<<20
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
