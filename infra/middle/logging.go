package middle

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mstgnz/multipay/infra/logger"
	"github.com/mstgnz/multipay/infra/response"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = response.RequestIDHeader

// RequestRecorder collects HTTP request metrics
type RequestRecorder interface {
	ObserveRequest(method, path string, status int, duration time.Duration)
}

// statusWriter captures the response status
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a new one
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
				r.Header.Set(RequestIDHeader, requestID)
			}
			w.Header().Set(RequestIDHeader, requestID)

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestIDFromContext returns the request id set by RequestIDMiddleware
func GetRequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLoggingMiddleware logs every request and, when rec is not nil,
// records it by route pattern
func RequestLoggingMiddleware(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			routePattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				routePattern = rctx.RoutePattern()
			}

			if rec != nil {
				rec.ObserveRequest(r.Method, routePattern, ww.statusCode, duration)
			}

			logCtx := logger.LogContext{
				Provider:  chi.URLParam(r, "driver"),
				RequestID: GetRequestIDFromContext(r.Context()),
				Fields: map[string]any{
					"method":      r.Method,
					"path":        r.URL.Path,
					"route":       routePattern,
					"status":      ww.statusCode,
					"duration_ms": duration.Milliseconds(),
					"client_ip":   GetClientIP(r),
				},
			}
			if ww.statusCode >= http.StatusInternalServerError {
				logger.Warn("HTTP request failed", logCtx)
				return
			}
			logger.Debug("HTTP request", logCtx)
		})
	}
}
