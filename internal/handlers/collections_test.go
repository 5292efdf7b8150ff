package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/middleware"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/crucial707/hci-undo/internal/repo"
	"github.com/go-chi/chi/v5"
)

var testAdmin = models.Actor{ID: "admin-1", Role: models.RoleAdmin}

// requestWithChiURLParams returns a request with chi route context and URL params set.
func requestWithChiURLParams(method, path string, body []byte, params map[string]string) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	return r
}

func asActor(r *http.Request, a models.Actor) *http.Request {
	return r.WithContext(middleware.WithActor(r.Context(), a))
}

func newCollectionHandler() *CollectionHandler {
	store := docstore.New("clients", "users", "adminClients", "admins", repo.AuditCollection, "projects")
	return &CollectionHandler{
		Store:     store,
		AuditRepo: repo.NewAuditRepo(store),
		Hooks:     DefaultHooks(),
	}
}

func TestCollectionHandler_CreateClient(t *testing.T) {
	h := newCollectionHandler()
	body, _ := json.Marshal(map[string]string{"id": "c1", "name": "Acme", "phone": "5550100"})
	req := asActor(requestWithChiURLParams("POST", "/clients", body, map[string]string{"resource": "clients"}), testAdmin)
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Create status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	if _, err := h.Store.Get("users", "c1"); err != nil {
		t.Errorf("users record not created: %v", err)
	}
	rows, _ := h.Store.Collection("adminClients")
	if len(rows) != 1 || rows[0]["adminId"] != "admin-1" || rows[0]["clientId"] != "c1" {
		t.Errorf("unexpected adminClients: %+v", rows)
	}
	audit, _ := h.Store.Collection(repo.AuditCollection)
	if len(audit) != 1 || audit[0]["action"] != "create" {
		t.Errorf("unexpected audit log: %+v", audit)
	}
}

func TestCollectionHandler_CreateValidation(t *testing.T) {
	h := newCollectionHandler()
	body, _ := json.Marshal(map[string]string{"name": "Acme", "phone": "abc"})
	req := requestWithChiURLParams("POST", "/clients", body, map[string]string{"resource": "clients"})
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Create status: got %d, want 400", rr.Code)
	}
	var out struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Fields["phone"] == "" {
		t.Errorf("expected phone field error, got %+v", out.Fields)
	}
}

func TestCollectionHandler_CreateDuplicate(t *testing.T) {
	h := newCollectionHandler()
	h.Store.Insert("projects", docstore.Item{"id": "p1"})
	body := []byte(`{"id":"p1"}`)
	rr := httptest.NewRecorder()
	h.Create(rr, requestWithChiURLParams("POST", "/projects", body, map[string]string{"resource": "projects"}))
	if rr.Code != http.StatusConflict {
		t.Errorf("Create status: got %d, want 409", rr.Code)
	}
}

func TestCollectionHandler_UnknownResource(t *testing.T) {
	h := newCollectionHandler()
	rr := httptest.NewRecorder()
	h.List(rr, requestWithChiURLParams("GET", "/widgets", nil, map[string]string{"resource": "widgets"}))
	if rr.Code != http.StatusNotFound {
		t.Errorf("List status: got %d, want 404", rr.Code)
	}
}

func TestCollectionHandler_AuditLogsReadOnly(t *testing.T) {
	h := newCollectionHandler()
	rr := httptest.NewRecorder()
	h.Create(rr, requestWithChiURLParams("POST", "/auditLogs", []byte(`{}`), map[string]string{"resource": repo.AuditCollection}))
	if rr.Code != http.StatusForbidden {
		t.Errorf("Create status: got %d, want 403", rr.Code)
	}
}

func TestCollectionHandler_ListPaging(t *testing.T) {
	h := newCollectionHandler()
	for _, id := range []string{"p1", "p2", "p3"} {
		h.Store.Insert("projects", docstore.Item{"id": id})
	}
	rr := httptest.NewRecorder()
	h.List(rr, requestWithChiURLParams("GET", "/projects?offset=1&limit=1", nil, map[string]string{"resource": "projects"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("List status: got %d, want 200", rr.Code)
	}
	var list []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0]["id"] != "p2" {
		t.Errorf("unexpected page: %+v", list)
	}
}

func TestCollectionHandler_GetAndUpdate(t *testing.T) {
	h := newCollectionHandler()
	h.Store.Insert("clients", docstore.Item{"id": "c1", "name": "Acme", "phone": "5550100"})
	h.Store.Insert("users", docstore.Item{"id": "c1", "phone": "5550100", "role": "client"})

	params := map[string]string{"resource": "clients", "id": "c1"}
	rr := httptest.NewRecorder()
	h.Update(rr, asActor(requestWithChiURLParams("PATCH", "/clients/c1", []byte(`{"phone":"5550199"}`), params), testAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("Update status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.Get(rr, requestWithChiURLParams("GET", "/clients/c1", nil, params))
	var got map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["phone"] != "5550199" || got["name"] != "Acme" {
		t.Errorf("unexpected client: %+v", got)
	}
	user, _ := h.Store.Get("users", "c1")
	if user["phone"] != "5550199" {
		t.Errorf("users record not synced: %+v", user)
	}
}

func TestCollectionHandler_ReplaceMissing(t *testing.T) {
	h := newCollectionHandler()
	rr := httptest.NewRecorder()
	h.Replace(rr, requestWithChiURLParams("PUT", "/projects/nope", []byte(`{"name":"x"}`), map[string]string{"resource": "projects", "id": "nope"}))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Replace status: got %d, want 404", rr.Code)
	}
}

func TestCollectionHandler_DeleteClient(t *testing.T) {
	h := newCollectionHandler()
	h.Store.Insert("clients", docstore.Item{"id": "c1", "phone": "5550100"})
	h.Store.Insert("users", docstore.Item{"id": "c1"})
	h.Store.Insert("adminClients", docstore.Item{"adminId": "admin-1", "clientId": "c1"})
	h.Store.Insert("adminClients", docstore.Item{"adminId": "admin-1", "clientId": "c2"})

	rr := httptest.NewRecorder()
	h.Delete(rr, requestWithChiURLParams("DELETE", "/clients/c1", nil, map[string]string{"resource": "clients", "id": "c1"}))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Delete status: got %d, want 204", rr.Code)
	}
	if _, err := h.Store.Get("users", "c1"); err == nil {
		t.Error("users record should be removed")
	}
	rows, _ := h.Store.Collection("adminClients")
	if len(rows) != 1 || rows[0]["clientId"] != "c2" {
		t.Errorf("unexpected adminClients: %+v", rows)
	}

	rr = httptest.NewRecorder()
	h.Delete(rr, requestWithChiURLParams("DELETE", "/clients/c1", nil, map[string]string{"resource": "clients", "id": "c1"}))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second Delete status: got %d, want 404", rr.Code)
	}
}

func TestCollectionHandler_AdminPasswordHidden(t *testing.T) {
	h := newCollectionHandler()
	body := []byte(`{"username":"ops","password":"correct-horse"}`)
	rr := httptest.NewRecorder()
	h.Create(rr, requestWithChiURLParams("POST", "/admins", body, map[string]string{"resource": "admins"}))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Create status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	var got map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&got)
	if _, ok := got["passwordHash"]; ok {
		t.Error("passwordHash must not be returned")
	}
	if _, ok := got["password"]; ok {
		t.Error("password must not be returned")
	}
	if got["role"] != models.RoleAdmin {
		t.Errorf("role: got %v, want admin", got["role"])
	}
	admin, ok := FindAdmin(h.Store, "ops")
	if !ok || admin.PasswordHash == "" {
		t.Errorf("stored admin missing hash: %+v", admin)
	}
}

func TestCollectionHandler_AdminShortPassword(t *testing.T) {
	h := newCollectionHandler()
	rr := httptest.NewRecorder()
	h.Create(rr, requestWithChiURLParams("POST", "/admins", []byte(`{"username":"ops","password":"short"}`), map[string]string{"resource": "admins"}))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Create status: got %d, want 400", rr.Code)
	}
}
