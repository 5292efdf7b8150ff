package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture status and size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// RequestLog logs each request with request_id, method, path, status, duration and size,
// plus the undo id when the request produced an undo entry.
// Use after RequestID middleware so the ID is available.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrap, r)
		attrs := []any{
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrap.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"size", wrap.size,
		}
		if id := wrap.Header().Get(HeaderUndoID); id != "" {
			attrs = append(attrs, "undo_id", id)
		}
		slog.InfoContext(r.Context(), "request", attrs...)
	})
}
