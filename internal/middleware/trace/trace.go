// Package trace assigns request ids and logs completed requests.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	applog "fintrack/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID is read from incoming requests and echoed on responses.
	HeaderRequestID = "X-Request-ID"
)

// Inbound ids are accepted only if they are short and printable.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// ObserveFunc receives every completed request.
type ObserveFunc func(r *http.Request, status int, d time.Duration)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	observe   ObserveFunc
	metrics   Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	AverageResponseTime int64 // in microseconds
}

// NewMiddleware creates a new trace middleware. Both arguments may be nil.
func NewMiddleware(extractIP func(*http.Request) string, observe ObserveFunc) *Middleware {
	return &Middleware{extractIP: extractIP, observe: observe}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		total := atomic.AddInt64(&m.metrics.TotalRequests, 1)
		prev := atomic.LoadInt64(&m.metrics.AverageResponseTime)
		atomic.StoreInt64(&m.metrics.AverageResponseTime, prev+(duration.Microseconds()-prev)/total)

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		logCtx := applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldRequestID, requestID))
		applog.LogHTTPEnd(logCtx, r, rw.statusCode, duration.Milliseconds(), clientIP)

		if m.observe != nil {
			m.observe(r, rw.statusCode, duration)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestID is GetRequestID for callers holding a request.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:       atomic.LoadInt64(&m.metrics.TotalRequests),
		AverageResponseTime: atomic.LoadInt64(&m.metrics.AverageResponseTime),
	}
}
