package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/course-builder/internal/config"
	"github.com/jonathan/course-builder/internal/db"
	"github.com/jonathan/course-builder/internal/guidance"
	"github.com/jonathan/course-builder/internal/logging"
	"github.com/jonathan/course-builder/internal/pipeline"
	"github.com/jonathan/course-builder/internal/server/middleware"
	"github.com/jonathan/course-builder/internal/server/ratelimit"
	"github.com/jonathan/course-builder/internal/store"
	"github.com/jonathan/course-builder/internal/types"
)

// Pipelines is the orchestrator surface the API drives.
type Pipelines interface {
	Start(ctx context.Context, userID, subject string, survey *types.SurveyResult) (uuid.UUID, error)
	GetProgress(id uuid.UUID) (pipeline.Run, bool)
	List(userID string) []pipeline.Run
	Cancel(id uuid.UUID) bool
	Retry(id uuid.UUID) bool
	Stats() pipeline.Stats
	Subscribe(id uuid.UUID, obs pipeline.Observer) (func(), error)
}

// SurveyGenerator produces assessment surveys on request.
type SurveyGenerator interface {
	Survey(ctx context.Context, subject string, guidance []string) (*types.Survey, error)
}

// RunHistory reads persisted run records. GetRun returns nil when absent.
type RunHistory interface {
	ListRuns(ctx context.Context, userID string, limit int) ([]db.RunRecord, error)
	GetRun(ctx context.Context, id uuid.UUID) (*db.RunRecord, error)
}

// Deps are the collaborators behind the API. Surveys, Artifacts and History are optional.
type Deps struct {
	Pipelines Pipelines
	Surveys   SurveyGenerator
	Guidance  guidance.Lookup
	Artifacts store.Store
	History   RunHistory
	Logger    *logging.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	deps            Deps
	logger          *logging.Logger
	rateLimiter     *ratelimit.Limiter
	jwtService      *JWTService
	allowedOrigins  map[string]bool
	allowAnyOrigin  bool
	shutdownTimeout time.Duration
	// heartbeat is the keep-alive interval of event streams.
	heartbeat time.Duration
}

// New creates a server. Token auth is enabled when auth carries a secret.
func New(cfg config.ServerConfig, auth config.JWTConfig, deps Deps) (*Server, error) {
	if deps.Pipelines == nil {
		return nil, errors.New("pipelines are required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Guidance == nil {
		deps.Guidance = guidance.Static{}
	}

	s := &Server{
		deps:            deps,
		logger:          deps.Logger,
		rateLimiter:     ratelimit.NewLimiter(ratelimit.NewConfig(cfg.RateLimit, cfg.RateBurst)),
		allowedOrigins:  make(map[string]bool),
		shutdownTimeout: cfg.ShutdownTimeout,
		heartbeat:       15 * time.Second,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 30 * time.Second
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			s.allowAnyOrigin = true
		}
		s.allowedOrigins[origin] = true
	}
	if auth.Enabled() {
		s.jwtService = NewJWTService(&auth)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /pipelines", s.protect(s.handleStartPipeline))
	mux.Handle("GET /pipelines", s.protect(s.handleListPipelines))
	mux.Handle("GET /pipelines/stats", s.protect(s.handleStats))
	mux.Handle("GET /pipelines/history", s.protect(s.handleHistory))
	mux.Handle("GET /pipelines/{id}", s.protect(s.handleGetPipeline))
	mux.Handle("POST /pipelines/{id}/cancel", s.protect(s.handleCancelPipeline))
	mux.Handle("POST /pipelines/{id}/retry", s.protect(s.handleRetryPipeline))
	mux.Handle("GET /pipelines/{id}/history", s.protect(s.handleRunHistory))
	mux.Handle("GET /pipelines/{id}/events", s.protect(s.handlePipelineEvents))
	mux.Handle("GET /pipelines/{id}/artifacts/{kind}", s.protect(s.handleGetArtifact))
	mux.Handle("GET /pipelines/{id}/lessons", s.protect(s.handleListLessons))
	mux.Handle("GET /pipelines/{id}/lessons/{lesson_id}", s.protect(s.handleGetLesson))

	mux.Handle("POST /surveys", s.protect(s.handleGenerateSurvey))

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: event streams stay open until the run ends
		IdleTimeout: 60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", listener.Addr().String())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// protect requires a bearer token when auth is enabled.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.jwtService == nil {
		return h
	}
	return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(h)
}

// withCORS adds CORS headers for allowed origins
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case s.allowAnyOrigin:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && s.allowedOrigins[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		}
		if !allowed {
			retryAfter := int(info.RetryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			s.logger.Warn("rate limit exceeded", "client", clientID(r), "path", r.URL.Path)
			s.jsonResponse(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID is the remote IP. Forwarded headers are not trusted.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", "error", err.Error())
	}
}

// errorResponse maps err to a status and writes it. Server-side failures are logged.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err.Error())
	}
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
