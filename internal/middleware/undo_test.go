package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/crucial707/hci-undo/internal/undo"
)

func newUndoTestEngine() *undo.Engine {
	return undo.NewEngine(docstore.New("clients", "auditLogs"), undo.Options{})
}

// insertHandler inserts an item into resource and answers with status.
func insertHandler(store *docstore.Store, resource, id string, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := store.Insert(resource, docstore.Item{"id": id}); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		undo.Track(r.Context(), resource, id)
		w.WriteHeader(status)
		w.Write([]byte(`{}`))
	})
}

func TestUndoTracking_SetsHeadersOnSuccess(t *testing.T) {
	engine := newUndoTestEngine()
	h := UndoTracking(engine)(insertHandler(engine.Store(), "clients", "c1", http.StatusCreated))

	req := httptest.NewRequest(http.MethodPost, "/clients", nil)
	req = req.WithContext(WithActor(req.Context(), models.Actor{ID: "a1", Role: models.RoleAdmin}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201", rr.Code)
	}
	id := rr.Header().Get(HeaderUndoID)
	if id == "" {
		t.Fatal("expected X-Undo-Id header")
	}
	if got := rr.Header().Get(HeaderUndoResource); got != "clients" {
		t.Errorf("X-Undo-Resource: got %q, want clients", got)
	}
	if got := rr.Header().Get(HeaderUndoResourceID); got != "c1" {
		t.Errorf("X-Undo-Resource-Id: got %q, want c1", got)
	}
	if rr.Header().Get(HeaderUndoExpiresAt) == "" {
		t.Error("expected X-Undo-Expires-At header")
	}
	entry, ok := engine.Log().Find(id)
	if !ok {
		t.Fatalf("entry %s not in log", id)
	}
	if entry.ActorID != "a1" || entry.Method != undo.MethodCreate || entry.Path != "/clients" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestUndoTracking_NoEntryOnFailure(t *testing.T) {
	engine := newUndoTestEngine()
	h := UndoTracking(engine)(insertHandler(engine.Store(), "clients", "c1", http.StatusBadRequest))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clients", nil))

	if rr.Header().Get(HeaderUndoID) != "" {
		t.Error("failed write must not carry X-Undo-Id")
	}
	if engine.Log().Len() != 0 {
		t.Errorf("log length: got %d, want 0", engine.Log().Len())
	}
}

func TestUndoTracking_ExcludedResource(t *testing.T) {
	engine := newUndoTestEngine()
	h := UndoTracking(engine)(insertHandler(engine.Store(), "auditLogs", "l1", http.StatusCreated))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auditLogs", nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201", rr.Code)
	}
	if rr.Header().Get(HeaderUndoID) != "" {
		t.Error("excluded resource must not carry X-Undo-Id")
	}
}

func TestUndoTracking_ImplicitOK(t *testing.T) {
	engine := newUndoTestEngine()
	h := UndoTracking(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		engine.Store().Insert("clients", docstore.Item{"id": "c2"})
		undo.Track(r.Context(), "clients", "c2")
		w.Write([]byte(`{"id":"c2"}`))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clients", nil))
	if rr.Header().Get(HeaderUndoID) == "" {
		t.Error("expected X-Undo-Id header on implicit 200")
	}
}

func TestUndoTracking_ReadsPassThrough(t *testing.T) {
	engine := newUndoTestEngine()
	called := false
	h := UndoTracking(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if undo.MutationFrom(r.Context()) != nil {
			t.Error("GET must not run inside a mutation")
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/clients", nil))
	if !called {
		t.Error("handler not called")
	}
	if engine.Dirty() {
		t.Error("GET must not mark the store dirty")
	}
}

func TestUndoTracking_SlowBodyDoesNotHoldLock(t *testing.T) {
	engine := newUndoTestEngine()
	h := UndoTracking(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		engine.Store().Insert("clients", docstore.Item{"id": "c1"})
		undo.Track(r.Context(), "clients", "c1")
		w.WriteHeader(http.StatusCreated)
	}))

	pr, pw := io.Pipe()
	req := httptest.NewRequest(http.MethodPost, "/clients", pr)
	req = req.WithContext(WithActor(req.Context(), models.Actor{ID: "a1", Role: models.RoleAdmin}))
	rr := httptest.NewRecorder()
	served := make(chan struct{})
	go func() {
		defer close(served)
		h.ServeHTTP(rr, req)
	}()
	pw.Write([]byte(`{"id":`))

	listed := make(chan error, 1)
	go func() {
		_, err := engine.List(models.Actor{ID: "a2", Role: models.RoleAdmin}, 10)
		listed <- err
	}()
	select {
	case err := <-listed:
		if err != nil {
			t.Fatalf("List: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("List blocked behind a write whose body is still arriving")
	}

	pw.Write([]byte(`"c1"}`))
	pw.Close()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("write did not finish after the body completed")
	}
	if rr.Code != http.StatusCreated || rr.Header().Get(HeaderUndoID) == "" {
		t.Errorf("write: got %d, undo id %q", rr.Code, rr.Header().Get(HeaderUndoID))
	}
}

func TestUndoTracking_BodyTooLarge(t *testing.T) {
	engine := newUndoTestEngine()
	called := false
	h := MaxBytes(8)(UndoTracking(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clients", strings.NewReader(`{"name":"far too long"}`)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", rr.Code)
	}
	if called {
		t.Error("handler must not run when the body is rejected")
	}
	if engine.Dirty() {
		t.Error("rejected body must not touch the store")
	}
}
