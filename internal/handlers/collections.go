package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/middleware"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/crucial707/hci-undo/internal/repo"
	"github.com/crucial707/hci-undo/internal/undo"
	"github.com/go-chi/chi/v5"
)

// ==========================
// CollectionHandler
// ==========================

// CollectionHandler serves generic CRUD over every collection of the store.
// Resource-specific behaviour lives in Hooks.
type CollectionHandler struct {
	Store     *docstore.Store
	AuditRepo *repo.AuditRepo
	Hooks     map[string]ResourceHooks
}

func (h *CollectionHandler) hooks(resource string) ResourceHooks {
	if hk, ok := h.Hooks[resource]; ok {
		return hk
	}
	return NoHooks{}
}

// resource resolves the {resource} URL param to an existing collection.
func (h *CollectionHandler) resource(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "resource")
	if name == "" || !h.Store.Has(name) {
		JSONError(w, "unknown resource", http.StatusNotFound)
		return "", false
	}
	return name, true
}

func (h *CollectionHandler) writable(w http.ResponseWriter, resource string) bool {
	if resource == repo.AuditCollection {
		JSONError(w, "read-only resource", http.StatusForbidden)
		return false
	}
	return true
}

// ==========================
// List Items
// ==========================

// List returns a collection. Query: limit and offset (optional).
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	resource, ok := h.resource(w, r)
	if !ok {
		return
	}
	items, _ := h.Store.Collection(resource)

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val < len(items) {
			items = items[:val]
		}
	}

	hk := h.hooks(resource)
	out := make([]docstore.Item, 0, len(items))
	for _, it := range items {
		out = append(out, hk.Present(it))
	}
	writeJSON(w, http.StatusOK, out)
}

// ==========================
// Get Item
// ==========================

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	resource, ok := h.resource(w, r)
	if !ok {
		return
	}
	item, err := h.Store.Get(resource, chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "item not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.hooks(resource).Present(item))
}

// ==========================
// Create Item
// ==========================

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	resource, ok := h.resource(w, r)
	if !ok || !h.writable(w, resource) {
		return
	}
	item, ok := decodeItem(w, r)
	if !ok {
		return
	}
	hk := h.hooks(resource)
	item, fields := hk.Prepare(undo.MethodCreate, item)
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	created, err := h.Store.Insert(resource, item)
	if errors.Is(err, docstore.ErrItemExists) {
		JSONError(w, "item already exists", http.StatusConflict)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "create item", "resource", resource, "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	undo.Track(r.Context(), resource, created.ID())
	actor, _ := middleware.GetActor(r.Context())
	hk.AfterWrite(h.Store, actor, undo.MethodCreate, created)
	h.audit(r, actor, "create", resource, created.ID())

	writeJSON(w, http.StatusCreated, hk.Present(created))
}

// ==========================
// Replace / Update Item
// ==========================

// Replace swaps the whole item (PUT).
func (h *CollectionHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, undo.MethodReplace)
}

// Update merges the given fields into the item (PATCH).
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, undo.MethodUpdate)
}

func (h *CollectionHandler) write(w http.ResponseWriter, r *http.Request, method undo.Method) {
	resource, ok := h.resource(w, r)
	if !ok || !h.writable(w, resource) {
		return
	}
	id := chi.URLParam(r, "id")
	item, ok := decodeItem(w, r)
	if !ok {
		return
	}
	hk := h.hooks(resource)
	item, fields := hk.Prepare(method, item)
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	var saved docstore.Item
	var err error
	if method == undo.MethodReplace {
		saved, err = h.Store.Replace(resource, id, item)
	} else {
		saved, err = h.Store.Patch(resource, id, item)
	}
	if errors.Is(err, docstore.ErrItemNotFound) {
		JSONError(w, "item not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "write item", "resource", resource, "id", id, "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	undo.Track(r.Context(), resource, id)
	actor, _ := middleware.GetActor(r.Context())
	hk.AfterWrite(h.Store, actor, method, saved)
	h.audit(r, actor, strings.ToLower(string(method)), resource, id)

	writeJSON(w, http.StatusOK, hk.Present(saved))
}

// ==========================
// Delete Item
// ==========================

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	resource, ok := h.resource(w, r)
	if !ok || !h.writable(w, resource) {
		return
	}
	id := chi.URLParam(r, "id")

	removed, err := h.Store.Delete(resource, id)
	if err != nil {
		JSONError(w, "item not found", http.StatusNotFound)
		return
	}

	undo.Track(r.Context(), resource, id)
	actor, _ := middleware.GetActor(r.Context())
	h.hooks(resource).AfterWrite(h.Store, actor, undo.MethodDelete, removed)
	h.audit(r, actor, "delete", resource, id)

	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionHandler) audit(r *http.Request, actor models.Actor, action, resource, id string) {
	if h.AuditRepo == nil {
		return
	}
	if _, err := h.AuditRepo.Log(r.Context(), models.AuditEntry{
		ActorID:    actor.ID,
		Action:     action,
		Resource:   resource,
		ResourceID: id,
	}); err != nil {
		slog.WarnContext(r.Context(), "audit log failed", "action", action, "resource", resource, "err", err)
	}
}

func decodeItem(w http.ResponseWriter, r *http.Request) (docstore.Item, bool) {
	var item docstore.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil || item == nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return nil, false
	}
	return item, true
}
