package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Recoverer recovers from panics, logs the stack with request ID and actor, and
// returns a 500 JSON response. A panic inside an undo-tracked write never
// commits an undo entry: UndoTracking only commits on a 2xx header write.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				actor, _ := GetActor(r.Context())
				slog.ErrorContext(r.Context(), "panic recovered",
					"request_id", chimw.GetReqID(r.Context()),
					"actor_id", actor.ID,
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				jsonError(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
