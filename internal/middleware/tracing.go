package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("drawsync")

type contextKey string

const requestIDKey contextKey = "request_id"

// TracingMiddleware adds a root span and a time-ordered request id to
// every HTTP request, including the socket upgrade requests.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := ksuid.New().String()

		ctx, span := tracer.Start(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.Path),
				attribute.String("http.user_agent", r.Header.Get("User-Agent")),
				attribute.String("request.id", requestID),
			),
		)
		defer span.End()

		ctx = context.WithValue(ctx, requestIDKey, requestID)

		wrapped := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		w.Header().Set("X-Request-ID", requestID)

		startTime := time.Now()
		next.ServeHTTP(wrapped, r.WithContext(ctx))
		duration := time.Since(startTime)

		span.SetAttributes(
			attribute.Int("http.status_code", wrapped.statusCode),
			attribute.Int64("http.response_time_ms", duration.Milliseconds()),
		)
		if wrapped.statusCode >= 400 {
			span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
		}

		log.Printf("[%s] %s %s - %d (%dms)",
			requestID,
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			duration.Milliseconds(),
		)
	})
}

// ErrorRecoveryMiddleware recovers from handler panics. A single
// misbehaving request must never take the process down.
func ErrorRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				span := trace.SpanFromContext(r.Context())
				span.RecordError(fmt.Errorf("panic: %v", err))
				span.SetStatus(codes.Error, "panic recovered")
				span.SetAttributes(
					attribute.String("error.type", "panic"),
					attribute.String("error.stacktrace", string(debug.Stack())),
				)

				requestID, _ := r.Context().Value(requestIDKey).(string)
				log.Printf("[%s] PANIC: %v\n%s", requestID, err, debug.Stack())

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware handles CORS headers
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// StartSpan creates a child span from the given context. Used by the hub
// and repositories to trace work that outlives a single HTTP handler.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddSpanError records an error in the current span
func AddSpanError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
