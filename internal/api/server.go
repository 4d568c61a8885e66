package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/metrics"
	"github.com/JakeFAU/sale-monitor/internal/monitor"
)

// Messages returned by the trigger endpoint.
const (
	MethodNotAllowedMessage = "Method not allowed"
	MissingURLMessage       = "Please add an ?url=https://example.com/ parameter"
)

// CheckSalesPath is the only route served by the public listener.
const CheckSalesPath = "/check-sales"

// Runner executes one monitor request.
type Runner interface {
	Run(ctx context.Context, req monitor.Request) monitor.Outcome
}

// Server wires the trigger endpoint to the pipeline.
type Server struct {
	router chi.Router
	runner Runner
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		runner: runner,
		logger: logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Post(CheckSalesPath, s.checkSales)
	r.NotFound(methodNotAllowed)
	r.MethodNotAllowed(methodNotAllowed)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// checkSales handles POST /check-sales?url=. A missing url yields a plain-text
// hint without running the pipeline. Success returns the screenshot as
// image/jpeg; any fatal failure returns 500 with the JSON status report.
func (s *Server) checkSales(w http.ResponseWriter, r *http.Request) {
	// A blank url cannot render, so it gets the hint rather than a 500.
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeText(w, http.StatusOK, MissingURLMessage)
		return
	}

	out := s.runner.Run(r.Context(), monitor.Request{URL: target, Trigger: monitor.TriggerInteractive})
	if !out.Success() {
		s.logger.Warn("check failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("run_id", out.RunID),
			zap.String("kind", string(out.Err.Kind)),
			zap.Error(out.Err),
		)
		writeJSON(w, http.StatusInternalServerError, out.Report())
		return
	}

	contentType := out.Screenshot.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Screenshot.Data); err != nil {
		s.logger.Error("write screenshot failed", zap.Error(err))
	}
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusMethodNotAllowed, MethodNotAllowedMessage)
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.Stack("stack"))
					writeJSON(w, http.StatusInternalServerError, monitor.StatusReport{
						Success: false,
						Error:   fmt.Sprintf("unexpected failure: %v", rec),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
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

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(msg)); err != nil {
		zap.L().Error("write text failed", zap.Error(err))
	}
}
