package undo

import (
	"sync"

	"github.com/crucial707/hci-undo/internal/docstore"
)

// LinkedRecord is the pre-write state of one secondary item. A nil Item
// means the item did not exist and must be removed on rollback.
type LinkedRecord struct {
	Collection string        `json:"collection"`
	ID         string        `json:"id"`
	Item       docstore.Item `json:"item"`
}

// Association is the pre-write set of rows in Collection whose Field equals
// Value. Rollback resets that set to exactly Rows.
type Association struct {
	Collection string          `json:"collection"`
	Field      string          `json:"field"`
	Value      string          `json:"value"`
	Rows       []docstore.Item `json:"rows"`
}

// SideEffects is the secondary state restored together with a primary item.
type SideEffects struct {
	Resource     string         `json:"resource"`
	Records      []LinkedRecord `json:"records,omitempty"`
	Associations []Association  `json:"associations,omitempty"`
}

func (s *SideEffects) apply(store *docstore.Store) {
	for _, rec := range s.Records {
		if rec.Item == nil {
			store.Remove(rec.Collection, rec.ID)
			continue
		}
		store.EnsureCollection(rec.Collection)
		store.Upsert(rec.Collection, rec.Item)
	}
	for _, a := range s.Associations {
		store.EnsureCollection(a.Collection)
		store.ReplaceWhere(a.Collection, a.Field, a.Value, a.Rows)
	}
}

// SideEffectBuilder captures the denormalized state a resource kind fans out
// into.
type SideEffectBuilder interface {
	Resource() string
	Build(resourceID string, snap docstore.State) *SideEffects
}

// Registry maps resource names to their SideEffectBuilder.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]SideEffectBuilder
}

func NewRegistry(builders ...SideEffectBuilder) *Registry {
	r := &Registry{builders: make(map[string]SideEffectBuilder)}
	for _, b := range builders {
		r.Register(b)
	}
	return r
}

// DefaultRegistry knows about the clients fan-out.
func DefaultRegistry() *Registry {
	return NewRegistry(NewClientSideEffects())
}

// Register adds or replaces the builder for b.Resource().
func (r *Registry) Register(b SideEffectBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[b.Resource()] = b
}

// Build returns the side effects for resource, or nil when none is registered.
func (r *Registry) Build(resource, resourceID string, snap docstore.State) *SideEffects {
	if r == nil || resourceID == "" {
		return nil
	}
	r.mu.RLock()
	b, ok := r.builders[resource]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return b.Build(resourceID, snap)
}

// Collections and field of the clients fan-out. The HTTP hooks that maintain
// it and the builder that reverses it both read these.
const (
	ClientsCollection      = "clients"
	UsersCollection        = "users"
	AdminClientsCollection = "adminClients"
	ClientIDField          = "clientId"
)

// ClientSideEffects covers the "clients" fan-out: every client has a login
// record in Users sharing its id, and rows in Associations linking it to the
// admins that own it.
type ClientSideEffects struct {
	Users        string
	Associations string
	ClientField  string
}

func NewClientSideEffects() ClientSideEffects {
	return ClientSideEffects{
		Users:        UsersCollection,
		Associations: AdminClientsCollection,
		ClientField:  ClientIDField,
	}
}

func (ClientSideEffects) Resource() string { return ClientsCollection }

func (c ClientSideEffects) Build(resourceID string, snap docstore.State) *SideEffects {
	user, _ := snap.Find(c.Users, resourceID)
	rows := []docstore.Item{}
	for _, row := range snap[c.Associations] {
		if v, ok := row[c.ClientField].(string); ok && v == resourceID {
			rows = append(rows, row)
		}
	}
	return &SideEffects{
		Resource: c.Resource(),
		Records: []LinkedRecord{
			{Collection: c.Users, ID: resourceID, Item: user},
		},
		Associations: []Association{
			{Collection: c.Associations, Field: c.ClientField, Value: resourceID, Rows: rows},
		},
	}
}
