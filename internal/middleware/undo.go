package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/crucial707/hci-undo/internal/undo"
)

// Response headers describing the undo entry created by a write.
const (
	HeaderUndoID         = "X-Undo-Id"
	HeaderUndoExpiresAt  = "X-Undo-Expires-At"
	HeaderUndoResource   = "X-Undo-Resource"
	HeaderUndoResourceID = "X-Undo-Resource-Id"
)

// UndoTracking runs every POST/PUT/PATCH/DELETE inside an undo mutation:
// the store is captured before the handler runs, and when the handler
// answers 2xx the undo entry is committed and its headers are attached
// before the status line goes out. Other methods pass straight through.
//
// The request body is read in full before the writer lock is taken, so a
// slow client never holds the lock. Install it behind MaxBytes.
func UndoTracking(engine *undo.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method, ok := undo.MethodFromHTTP(r.Method)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if r.Body != nil && r.Body != http.NoBody {
				buf, err := io.ReadAll(r.Body)
				r.Body.Close()
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
						return
					}
					jsonError(w, "cannot read request body", http.StatusBadRequest)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(buf))
			}

			m := engine.Begin(r.Context())
			defer m.Done()

			uw := &undoWriter{ResponseWriter: w, commit: func(status int) {
				if status < 200 || status >= 300 {
					return
				}
				actor, _ := GetActor(r.Context())
				entry := m.Commit(r.Context(), method, r.URL.Path, actor)
				if entry == nil {
					return
				}
				h := w.Header()
				h.Set(HeaderUndoID, entry.ID)
				h.Set(HeaderUndoExpiresAt, entry.ExpiresAt.UTC().Format(time.RFC3339))
				h.Set(HeaderUndoResource, entry.Resource)
				h.Set(HeaderUndoResourceID, entry.ResourceID)
			}}
			next.ServeHTTP(uw, r.WithContext(undo.WithMutation(r.Context(), m)))
			if !uw.wroteHeader {
				uw.WriteHeader(http.StatusOK)
			}
		})
	}
}

type undoWriter struct {
	http.ResponseWriter
	commit      func(status int)
	wroteHeader bool
}

func (w *undoWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.commit(code)
	w.ResponseWriter.WriteHeader(code)
}

func (w *undoWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
