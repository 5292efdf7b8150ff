package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/crucial707/hci-undo/internal/middleware"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/crucial707/hci-undo/internal/repo"
	"github.com/crucial707/hci-undo/internal/undo"
	"github.com/go-chi/chi/v5"
)

// UndoHandler serves the undo-actions endpoints.
type UndoHandler struct {
	Engine    *undo.Engine
	AuditRepo *repo.AuditRepo
}

// NewUndoHandler returns an UndoHandler whose rollbacks are audited inside
// the engine's rollback critical section.
func NewUndoHandler(engine *undo.Engine, auditRepo *repo.AuditRepo) *UndoHandler {
	h := &UndoHandler{Engine: engine, AuditRepo: auditRepo}
	if auditRepo != nil {
		engine.OnRollback(h.auditRollback)
	}
	return h
}

// ListUndoActions returns the caller's undo actions, newest first.
// Query: limit (default 10, max 50). Elevated callers see every actor's actions.
func (h *UndoHandler) ListUndoActions(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		JSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	limit := undo.DefaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	entries, err := h.Engine.List(actor, limit)
	if err != nil {
		JSONError(w, err.Error(), undoErrorStatus(err))
		return
	}
	out := make([]undo.Summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

// Rollback reverses one undo action. The rollback itself is never undoable.
func (h *UndoHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		JSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	entry, err := h.Engine.Rollback(r.Context(), actor, id)
	if err != nil {
		JSONError(w, err.Error(), undoErrorStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"rolledBackId": entry.ID,
	})
}

func (h *UndoHandler) auditRollback(ctx context.Context, actor models.Actor, entry *undo.Entry) {
	if _, err := h.AuditRepo.Log(ctx, models.AuditEntry{
		ActorID:    actor.ID,
		Action:     "undo.rollback",
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		UndoID:     entry.ID,
		Details:    string(entry.Method) + " " + entry.Path,
	}); err != nil {
		slog.WarnContext(ctx, "audit log failed", "undo_id", entry.ID, "err", err)
	}
}
