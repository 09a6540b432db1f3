// Package http exposes the action router over a single JSON endpoint.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"scuola/internal/log"
	"scuola/internal/metrics"
	"scuola/internal/middleware/ratelimit"
	"scuola/internal/middleware/security"
	"scuola/internal/middleware/trace"
	"scuola/internal/router"
	"scuola/internal/sheets"
)

const (
	defaultMaxBodyBytes = 1 << 20
	readyTimeout        = 3 * time.Second
)

// Options configures NewServer. Zero values pick the defaults.
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Health backs /readyz. Nil means always ready.
	Health             sheets.HealthChecker
	RateLimitPerMinute int
	MaxBodyBytes       int64
	TrustedProxies     []string
	// AllowedOrigin enables CORS for a browser front end served elsewhere.
	AllowedOrigin string
}

// Server is an http.Server wired to the action router.
type Server struct {
	http.Server

	router   *router.Router
	health   sheets.HealthChecker
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *log.Logger
	metrics  *metrics.Metrics
	maxBody  int64
	origin   string

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, r *router.Router, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	detector.OnSuspicious(func(*http.Request, string) { opts.Metrics.SecurityEvent("suspicious") })

	s := &Server{
		router:   r,
		health:   opts.Health,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		logger:   logger.WithComponent(log.ComponentHTTP),
		metrics:  opts.Metrics,
		maxBody:  maxBody,
		origin:   opts.AllowedOrigin,
	}

	mux := http.NewServeMux()
	api := s.limiter.Middleware(detector.ExtractClientIP, s.rateLimited)(http.HandlerFunc(s.handleAPI))
	mux.Handle("/api", s.withCORS(api))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics.Handler())
	}

	var h http.Handler = mux
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(logger)(h)
	h = trace.NewMiddleware(logger, detector.ExtractClientIP).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the limiter cleanup and drains the HTTP server. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, router.Response{Message: "Method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		msg := "Invalid request: could not read body"
		if errors.As(err, &tooLarge) {
			msg = fmt.Sprintf("Invalid request: body exceeds %d bytes", tooLarge.Limit)
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Unreadable request body", log.FieldError, err)
		writeJSON(w, http.StatusBadRequest, router.Response{Message: msg})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, router.Response{Message: "Invalid request: body is not valid JSON"})
		return
	}

	writeJSON(w, http.StatusOK, s.router.Dispatch(r.Context(), body))
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.SecurityEvent("rate_limited")
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path,
		"retry_after", w.Header().Get("Retry-After"))
	writeJSON(w, http.StatusTooManyRequests, router.Response{Message: "Rate limit exceeded. Please try again later."})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	if s.origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.origin)
		h.Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			h.Set("Access-Control-Max-Age", strconv.Itoa(int((10 * time.Minute).Seconds())))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
