// Package httpapi exposes the pipeline orchestrator over HTTP: POST
// /infer_schema and POST /run, mirroring the original's axum router
// (api.rs). Grounded on controlcenter's Server/setupRoutes/writeJSON
// shape, substituting go-chi/cors for the hand-rolled CORS middleware.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/malbeclabs/strata/internal/pipeline"
	"github.com/malbeclabs/strata/internal/snapshot"
	"github.com/malbeclabs/strata/internal/strataerr"
	"github.com/malbeclabs/strata/internal/types"
)

// Server is the HTTP front end for an Orchestrator.
type Server struct {
	router *chi.Mux
	orch   *pipeline.Orchestrator
	logger *slog.Logger
	srv    *http.Server

	// sem bounds how many request bodies run concurrently, mirroring the
	// original's tokio::task::spawn_blocking pool.
	sem chan struct{}
}

// NewServer builds a Server bound to addr, wired to the given orchestrator.
func NewServer(addr string, orch *pipeline.Orchestrator, logger *slog.Logger) *Server {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	s := &Server{
		router: chi.NewRouter(),
		orch:   orch,
		logger: logger,
		sem:    make(chan struct{}, workers),
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	s.router.Post("/infer_schema", s.bounded(s.handleInferSchema))
	s.router.Post("/run", s.bounded(s.handleRun))
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())
}

// bounded wraps a handler so at most GOMAXPROCS request bodies execute
// at once; callers beyond that block on the semaphore, not on a queue
// of goroutines spun up unbounded.
func (s *Server) bounded(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case s.sem <- struct{}{}:
		case <-r.Context().Done():
			s.writeError(w, http.StatusRequestTimeout, "request cancelled while waiting for a worker")
			return
		}
		defer func() { <-s.sem }()
		h(w, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInferSchema(w http.ResponseWriter, r *http.Request) {
	var req types.InferSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request body: %v", err))
		return
	}

	path, err := snapshot.LocalPathFromURI(req.URI)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}

	schema, err := pipeline.InferSchema(r.Context(), path, req.SourceConfig, req.Limit)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, types.InferSchemaResponse{Schema: schema})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req types.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request body: %v", err))
		return
	}

	report, err := s.orch.Run(r.Context(), req)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// Handler exposes the router for use with httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the HTTP server until it is shut down or fails to bind.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode json response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeErrorFromErr maps every request-level failure to 400: this
// system draws no distinction between client mistakes and internal
// faults in its response codes (the kind still travels in the body).
func (s *Server) writeErrorFromErr(w http.ResponseWriter, err error) {
	kind := "Error"
	if se, ok := err.(*strataerr.Error); ok {
		kind = string(se.Kind)
	}
	s.writeJSON(w, http.StatusBadRequest, map[string]string{
		"kind":  kind,
		"error": err.Error(),
	})
}
