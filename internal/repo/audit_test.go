package repo

import (
	"context"
	"testing"
	"time"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/models"
)

func TestAuditRepo_LogAndList(t *testing.T) {
	store := docstore.New(AuditCollection)
	repo := NewAuditRepo(store)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, action := range []string{"create", "update", "undo.rollback"} {
		_, err := repo.Log(context.Background(), models.AuditEntry{
			ActorID:   "a1",
			Action:    action,
			Resource:  "clients",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := repo.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(entries))
	}
	if entries[0].Action != "undo.rollback" || entries[1].Action != "update" {
		t.Errorf("unexpected order: %+v", entries)
	}
	if entries[0].ID == "" {
		t.Error("expected generated id")
	}

	rest, _ := repo.List(context.Background(), 10, 2)
	if len(rest) != 1 || rest[0].Action != "create" {
		t.Errorf("offset list: %+v", rest)
	}
}
