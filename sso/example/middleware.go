package main

import (
	"net/http"
	"time"

	"profilenorm/logger"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK, 0}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.responseSize += int64(size)
	return size, err
}

// loggingMiddleware logs one entry per request. The query string is left
// out because it carries authorization codes and state tokens.
func loggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			log.Info(r.Context(), "request handled",
				logger.F("method", r.Method),
				logger.F("path", r.URL.Path),
				logger.F("status", rw.statusCode),
				logger.F("duration", time.Since(start)),
				logger.F("size", rw.responseSize),
				logger.F("ip", r.RemoteAddr),
			)
		})
	}
}
