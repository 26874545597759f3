package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nDmitry/feedsky/internal/app"
)

// quietPaths are probed often and logged at debug level.
var quietPaths = map[string]bool{
	"/healthz": true,
}

// Logger wraps an http.Handler with request/response logging and a
// per-request logger carried in the context
func Logger(next http.Handler) http.Handler {
	base := app.Logger()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")

		if requestID == "" {
			requestID = uuid.NewString()
		}

		logger := base.With("request_id", requestID)
		level := slog.LevelInfo

		if quietPaths[r.URL.Path] {
			level = slog.LevelDebug
		}

		// Create a response wrapper to capture the status code
		lrw := &loggingResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 OK
		}

		lrw.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(lrw, r.WithContext(app.WithLogger(r.Context(), logger)))

		logger.Log(r.Context(), level, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"status", lrw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", lrw.bytesWritten,
		)
	})
}

// loggingResponseWriter is a wrapper for http.ResponseWriter that captures status code and response size
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

// WriteHeader captures the status code
func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size
func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

// Unwrap returns the original ResponseWriter
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}
