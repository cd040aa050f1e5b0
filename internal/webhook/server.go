package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mattjoyce/hookgw/internal/hooks"
)

// Server is the hook ingress HTTP server.
type Server struct {
	config     Config
	dispatcher Dispatcher
	logger     *slog.Logger
	server     *http.Server

	// recentPings maps tenant/update keys to the run they started.
	pingMu      sync.Mutex
	recentPings *expirable.LRU[string, string]
}

// New creates a new hook ingress server.
func New(config Config, dispatcher Dispatcher, logger *slog.Logger) *Server {
	if config.BasePath == "" {
		config.BasePath = DefaultBasePath
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = DefaultSignatureHeader
	}
	s := &Server{
		config:     config,
		dispatcher: dispatcher,
		logger:     logger.With("component", "webhook"),
	}
	if config.PingDedupeWindow > 0 {
		s.recentPings = expirable.NewLRU[string, string](recentPingCapacity, nil, config.PingDedupeWindow)
	}
	return s
}

// Start starts the hook HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("hook server starting", "listen", s.config.Listen, "base_path", s.config.BasePath, "signed", s.config.SigningSecret != "")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("hook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("hook server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("hook server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route(s.config.BasePath, func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/wake", s.handleWake)
		r.Post("/agent", s.handleAgent)
		r.Post("/ping", s.handlePing)
	})

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("hook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tokenMatches(presentedToken(r), s.config.Token) {
			s.logger.Warn("hook token rejected", "path", r.URL.Path)
			s.respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func presentedToken(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}

// readBody enforces the size limit and the body signature. It writes the
// error response itself and returns false on rejection.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return nil, false
	}

	if s.config.SigningSecret != "" {
		signature := r.Header.Get(s.config.SignatureHeader)
		if err := verifyHMACSignature(body, signature, s.config.SigningSecret); err != nil {
			s.logger.Warn("hook signature verification failed",
				"path", r.URL.Path,
				"header", s.config.SignatureHeader,
				"present", signature != "",
			)
			s.respondError(w, http.StatusForbidden, "forbidden")
			return nil, false
		}
	}
	return body, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	var ev hooks.WakeEvent
	if !s.decode(w, r, &ev) {
		return
	}
	ev, err := normalizeWake(ev)
	if err != nil {
		s.respondNormalizeError(w, err)
		return
	}

	if err := s.dispatcher.DispatchWake(r.Context(), ev); err != nil {
		s.logger.Error("hook wake dispatch failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to enqueue wake event")
		return
	}

	s.logger.Info("hook wake accepted", "mode", ev.Mode)
	s.respondJSON(w, http.StatusOK, WakeResponse{OK: true, Mode: ev.Mode})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var ev hooks.AgentEvent
	if !s.decode(w, r, &ev) {
		return
	}
	ev, err := s.normalizeAgent(ev)
	if err != nil {
		s.respondNormalizeError(w, err)
		return
	}

	runID := s.dispatcher.DispatchAgent(r.Context(), ev)
	s.logger.Info("hook agent accepted", "run_id", runID, "name", ev.Name, "wake_mode", ev.WakeMode)
	s.respondJSON(w, http.StatusAccepted, RunResponse{OK: true, RunID: runID})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var ev hooks.PingEvent
	if !s.decode(w, r, &ev) {
		return
	}
	ev, err := s.normalizePing(ev)
	if err != nil {
		s.respondNormalizeError(w, err)
		return
	}

	runID, duplicate := s.dispatchPingOnce(r.Context(), ev)
	if duplicate {
		s.logger.Info("hook ping duplicate", "run_id", runID, "update_id", ev.UpdateID, "tenant_id", ev.TenantID)
	} else {
		s.logger.Info("hook ping accepted", "run_id", runID, "update_id", ev.UpdateID, "tenant_id", ev.TenantID)
	}
	s.respondJSON(w, http.StatusAccepted, RunResponse{OK: true, RunID: runID, Duplicate: duplicate})
}

// dispatchPingOnce dispatches ev unless the same tenant update was seen inside
// the dedupe window, in which case the earlier run ID is returned.
func (s *Server) dispatchPingOnce(ctx context.Context, ev hooks.PingEvent) (string, bool) {
	if s.recentPings == nil {
		return s.dispatcher.DispatchPing(ctx, ev), false
	}
	key := ev.TenantID + "\x00" + ev.UpdateID

	s.pingMu.Lock()
	defer s.pingMu.Unlock()
	if runID, ok := s.recentPings.Get(key); ok {
		return runID, true
	}
	runID := s.dispatcher.DispatchPing(ctx, ev)
	s.recentPings.Add(key, runID)
	return runID, false
}

func (s *Server) respondNormalizeError(w http.ResponseWriter, err error) {
	var perr *payloadError
	if errors.As(err, &perr) {
		s.respondError(w, http.StatusBadRequest, perr.msg)
		return
	}
	s.respondError(w, http.StatusInternalServerError, "internal error")
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{OK: false, Error: message})
}
