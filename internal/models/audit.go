package models

import "time"

// AuditEntry represents one record in the "auditLogs" collection.
type AuditEntry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actorId,omitempty"`
	Action     string    `json:"action"`   // create, replace, update, delete, undo.rollback
	Resource   string    `json:"resource"` // collection name
	ResourceID string    `json:"resourceId,omitempty"`
	UndoID     string    `json:"undoId,omitempty"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
