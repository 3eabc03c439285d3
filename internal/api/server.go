// Package api exposes the HTTP interface for the mention monitor.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/config"
	"github.com/muniwatch/muniwatch/internal/crawllog"
	"github.com/muniwatch/muniwatch/internal/ingest"
	"github.com/muniwatch/muniwatch/internal/monitor"
	"github.com/muniwatch/muniwatch/internal/repository"
	"github.com/muniwatch/muniwatch/internal/telemetry"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

// Server wires HTTP handlers to the repository, orchestrator and crawl log.
type Server struct {
	router chi.Router
	repo   *repository.Repository
	orch   *ingest.Orchestrator
	log    *crawllog.Log
	clock  monitor.Clock
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	repo *repository.Repository,
	orch *ingest.Orchestrator,
	log *crawllog.Log,
	clock monitor.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		repo:   repo,
		orch:   orch,
		log:    log,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(telemetry.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/stats", s.getStats)
		r.Get("/export", s.exportMentions)
		r.Route("/mentions", func(r chi.Router) {
			r.Get("/", s.listMentions)
			r.Route("/{mention_id}", func(r chi.Router) {
				r.Get("/", s.getMention)
				r.With(s.writeAuth).Patch("/", s.updateMention)
				r.With(s.writeAuth).Delete("/", s.deleteMention)
			})
		})
		r.Route("/crawl", func(r chi.Router) {
			r.With(s.writeAuth).Post("/", s.triggerCrawl)
			r.Get("/log", s.getCrawlLog)
		})
	})
	r.Get("/metrics", telemetry.Handler().ServeHTTP)

	if cfg.Server.StaticDir != "" {
		r.Get("/*", s.serveStatic)
	}
	r.NotFound(s.notFound)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.clock.Now().Format(time.RFC3339),
		"version":   Version,
	})
}

// notFound answers API misses with JSON; anything else falls back to the
// frontend index so client-side routing keeps working.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") || s.cfg.Server.StaticDir == "" {
		s.writeError(w, http.StatusNotFound, "Not found")
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.Server.StaticDir, "index.html"))
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}
	path := filepath.Join(s.cfg.Server.StaticDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		http.ServeFile(w, r, filepath.Join(s.cfg.Server.StaticDir, "index.html"))
		return
	}
	http.ServeFile(w, r, path)
}

// writeAuth enforces the API key on mutating routes when auth is enabled.
// Read endpoints stay open.
func (s *Server) writeAuth(next http.Handler) http.Handler {
	if !s.cfg.Auth.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != s.cfg.Auth.APIKey {
			s.writeError(w, http.StatusForbidden, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
