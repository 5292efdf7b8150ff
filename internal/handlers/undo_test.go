package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/crucial707/hci-undo/internal/repo"
	"github.com/crucial707/hci-undo/internal/undo"
)

func newUndoHandler(t *testing.T) (*UndoHandler, string) {
	t.Helper()
	store := docstore.New("clients", "users", "adminClients", repo.AuditCollection)
	engine := undo.NewEngine(store, undo.Options{})

	m := engine.Begin(context.Background())
	store.Insert("clients", docstore.Item{"id": "c1", "phone": "5550100"})
	m.Track("clients", "c1")
	entry := m.Commit(context.Background(), undo.MethodCreate, "/clients", testAdmin)
	m.Done()
	if entry == nil {
		t.Fatal("expected an undo entry")
	}
	return NewUndoHandler(engine, repo.NewAuditRepo(store)), entry.ID
}

func TestUndoHandler_List(t *testing.T) {
	h, id := newUndoHandler(t)

	rr := httptest.NewRecorder()
	h.ListUndoActions(rr, asActor(httptest.NewRequest("GET", "/undo-actions?limit=5", nil), testAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("List status: got %d, want 200", rr.Code)
	}
	var list []struct {
		ID         string  `json:"id"`
		Resource   string  `json:"resource"`
		ResourceID *string `json:"resourceId"`
		Method     string  `json:"method"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != id || list[0].Method != "CREATE" {
		t.Errorf("unexpected list: %+v", list)
	}

	rr = httptest.NewRecorder()
	other := models.Actor{ID: "admin-2", Role: models.RoleAdmin}
	h.ListUndoActions(rr, asActor(httptest.NewRequest("GET", "/undo-actions", nil), other))
	if rr.Body.String() != "[]\n" {
		t.Errorf("other admin should see nothing, got %s", rr.Body.String())
	}
}

func TestUndoHandler_ListUnauthenticated(t *testing.T) {
	h, _ := newUndoHandler(t)
	rr := httptest.NewRecorder()
	h.ListUndoActions(rr, httptest.NewRequest("GET", "/undo-actions", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("List status: got %d, want 401", rr.Code)
	}
}

func TestUndoHandler_Rollback(t *testing.T) {
	h, id := newUndoHandler(t)

	req := asActor(requestWithChiURLParams("POST", "/undo-actions/"+id+"/rollback", nil, map[string]string{"id": id}), testAdmin)
	rr := httptest.NewRecorder()
	h.Rollback(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Rollback status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	var out struct {
		OK           bool   `json:"ok"`
		RolledBackID string `json:"rolledBackId"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.OK || out.RolledBackID != id {
		t.Errorf("unexpected response: %+v", out)
	}
	if _, err := h.Engine.Store().Get("clients", "c1"); err == nil {
		t.Error("client should be gone after rollback")
	}
	audit, _ := h.AuditRepo.List(context.Background(), 10, 0)
	if len(audit) != 1 || audit[0].Action != "undo.rollback" || audit[0].UndoID != id {
		t.Errorf("unexpected audit: %+v", audit)
	}

	rr = httptest.NewRecorder()
	h.Rollback(rr, asActor(requestWithChiURLParams("POST", "/undo-actions/"+id+"/rollback", nil, map[string]string{"id": id}), testAdmin))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second Rollback status: got %d, want 404", rr.Code)
	}
}

func TestUndoHandler_RollbackForbidden(t *testing.T) {
	h, id := newUndoHandler(t)
	other := models.Actor{ID: "admin-2", Role: models.RoleAdmin}
	rr := httptest.NewRecorder()
	h.Rollback(rr, asActor(requestWithChiURLParams("POST", "/undo-actions/"+id+"/rollback", nil, map[string]string{"id": id}), other))
	if rr.Code != http.StatusForbidden {
		t.Errorf("Rollback status: got %d, want 403", rr.Code)
	}
}

func TestUndoErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{undo.ErrNotAuthenticated, http.StatusUnauthorized},
		{undo.ErrNotFound, http.StatusNotFound},
		{undo.ErrForbidden, http.StatusForbidden},
		{undo.ErrExpired, http.StatusGone},
		{undo.ErrUnreversible, http.StatusUnprocessableEntity},
		{undo.ErrUnsupportedResource, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		if got := undoErrorStatus(tt.err); got != tt.want {
			t.Errorf("undoErrorStatus(%v): got %d, want %d", tt.err, got, tt.want)
		}
	}
}
