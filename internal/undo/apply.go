package undo

import (
	"github.com/crucial707/hci-undo/internal/docstore"
)

// Applier reverses entries against the current store.
type Applier struct {
	Store    *docstore.Store
	Log      *Log
	Registry *Registry
}

// Apply restores the store to the entry's recorded pre-write state and
// removes the entry from the log. Nothing is mutated when it fails.
func (a *Applier) Apply(e *Entry) error {
	resolved := ResolveLegacy(e, a.Registry)
	if resolved == nil {
		return ErrUnreversible
	}
	if !a.Store.Has(resolved.Resource) {
		return ErrUnsupportedResource
	}

	switch p := resolved.Rollback.(type) {
	case DeletePlan:
		a.Store.Remove(resolved.Resource, p.ID)
	case UpsertPlan:
		a.Store.Upsert(resolved.Resource, p.Item)
	case CreatePlan:
		a.Store.InsertIfAbsent(resolved.Resource, p.Item)
	default:
		return ErrUnreversible
	}

	if resolved.SideEffects != nil {
		resolved.SideEffects.apply(a.Store)
	}
	if a.Log != nil {
		a.Log.Remove(e.ID)
	}
	return nil
}
