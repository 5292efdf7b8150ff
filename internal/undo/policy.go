package undo

import (
	"github.com/crucial707/hci-undo/internal/models"
)

// UndoCollection is the reserved collection the log is persisted under.
const UndoCollection = "undoActions"

// DefaultExcluded lists resources whose writes are never tracked: reversing
// audit or financial records is not allowed.
var DefaultExcluded = []string{"auditLogs", UndoCollection, "payments", "deposits"}

// Policy decides which writes are tracked and who may see an entry.
type Policy struct {
	ElevatedRole string
	excluded     map[string]bool
}

func NewPolicy(elevatedRole string, excluded []string) Policy {
	if elevatedRole == "" {
		elevatedRole = models.RoleSuperAdmin
	}
	p := Policy{ElevatedRole: elevatedRole, excluded: make(map[string]bool)}
	p.excluded[UndoCollection] = true
	for _, r := range excluded {
		p.excluded[r] = true
	}
	return p
}

// Tracks reports whether writes to resource produce undo entries.
func (p Policy) Tracks(resource string) bool {
	return resource != "" && !p.excluded[resource]
}

// Elevated reports whether the actor sees every actor's entries.
func (p Policy) Elevated(a models.Actor) bool {
	return a.Role != "" && a.Role == p.ElevatedRole
}

// CanSee reports whether the actor may list or roll back e.
func (p Policy) CanSee(a models.Actor, e *Entry) bool {
	if !a.Authenticated() {
		return false
	}
	return p.Elevated(a) || e.ActorID == a.ID
}
