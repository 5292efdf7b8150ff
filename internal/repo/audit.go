package repo

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/google/uuid"
)

// AuditCollection holds audit records. Writes to it are never undo-tracked.
const AuditCollection = "auditLogs"

// AuditRepo appends audit records to the document store.
type AuditRepo struct {
	store *docstore.Store
	now   func() time.Time
}

// NewAuditRepo returns a new AuditRepo.
func NewAuditRepo(store *docstore.Store) *AuditRepo {
	return &AuditRepo{store: store, now: time.Now}
}

// Log records an audit entry. action is create|replace|update|delete|undo.rollback.
func (r *AuditRepo) Log(ctx context.Context, e models.AuditEntry) (models.AuditEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	item, err := toItem(e)
	if err != nil {
		return models.AuditEntry{}, err
	}
	if _, err := r.store.Insert(AuditCollection, item); err != nil {
		return models.AuditEntry{}, err
	}
	return e, nil
}

// List returns recent audit entries, newest first.
func (r *AuditRepo) List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	items, _ := r.store.Collection(AuditCollection)
	entries := make([]models.AuditEntry, 0, len(items))
	for _, it := range items {
		var e models.AuditEntry
		raw, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if offset >= len(entries) {
		return []models.AuditEntry{}, nil
	}
	entries = entries[offset:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func toItem(v any) (docstore.Item, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var it docstore.Item
	err = json.Unmarshal(raw, &it)
	return it, err
}
