package undo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/crucial707/hci-undo/internal/docstore"
)

// Entry is one reversible write.
type Entry struct {
	ID         string
	Resource   string
	ResourceID string // empty for collection-level writes
	Method     Method
	ActorID    string // empty for unauthenticated or system writes
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Path       string

	// Rollback is nil for entries written before plans existed; those carry
	// BeforeState instead and go through ResolveLegacy.
	Rollback    Plan
	SideEffects *SideEffects
	BeforeState docstore.State
}

// Expired reports whether the entry's TTL has lapsed at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Summary is the listing view of an entry.
type Summary struct {
	ID         string    `json:"id"`
	Resource   string    `json:"resource"`
	ResourceID *string   `json:"resourceId"`
	Method     Method    `json:"method"`
	ActorID    *string   `json:"actorId"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Path       string    `json:"path"`
}

func (e *Entry) Summary() Summary {
	return Summary{
		ID:         e.ID,
		Resource:   e.Resource,
		ResourceID: nullable(e.ResourceID),
		Method:     e.Method,
		ActorID:    nullable(e.ActorID),
		CreatedAt:  e.CreatedAt,
		ExpiresAt:  e.ExpiresAt,
		Path:       e.Path,
	}
}

const (
	planDelete = "delete"
	planUpsert = "upsert"
	planCreate = "create"
)

type planJSON struct {
	Type string        `json:"type"`
	ID   string        `json:"id,omitempty"`
	Item docstore.Item `json:"item,omitempty"`
}

type entryJSON struct {
	ID          string         `json:"id"`
	Resource    string         `json:"resource"`
	ResourceID  *string        `json:"resourceId"`
	Method      Method         `json:"method"`
	ActorID     *string        `json:"actorId"`
	CreatedAt   time.Time      `json:"createdAt"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	Path        string         `json:"path,omitempty"`
	Rollback    *planJSON      `json:"rollback,omitempty"`
	SideEffects *SideEffects   `json:"sideEffects,omitempty"`
	BeforeState docstore.State `json:"beforeState,omitempty"`
}

func (e *Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		ID:          e.ID,
		Resource:    e.Resource,
		ResourceID:  nullable(e.ResourceID),
		Method:      e.Method,
		ActorID:     nullable(e.ActorID),
		CreatedAt:   e.CreatedAt,
		ExpiresAt:   e.ExpiresAt,
		Path:        e.Path,
		SideEffects: e.SideEffects,
		BeforeState: e.BeforeState,
	}
	switch p := e.Rollback.(type) {
	case nil:
	case DeletePlan:
		out.Rollback = &planJSON{Type: planDelete, ID: p.ID}
	case UpsertPlan:
		out.Rollback = &planJSON{Type: planUpsert, Item: p.Item}
	case CreatePlan:
		out.Rollback = &planJSON{Type: planCreate, Item: p.Item}
	default:
		return nil, fmt.Errorf("undo: unknown plan %T", p)
	}
	return json.Marshal(out)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Entry{
		ID:          in.ID,
		Resource:    in.Resource,
		ResourceID:  deref(in.ResourceID),
		Method:      in.Method,
		ActorID:     deref(in.ActorID),
		CreatedAt:   in.CreatedAt,
		ExpiresAt:   in.ExpiresAt,
		Path:        in.Path,
		SideEffects: in.SideEffects,
		BeforeState: in.BeforeState,
	}
	if in.Rollback == nil {
		return nil
	}
	switch in.Rollback.Type {
	case planDelete:
		e.Rollback = DeletePlan{ID: in.Rollback.ID}
	case planUpsert:
		e.Rollback = UpsertPlan{Item: in.Rollback.Item}
	case planCreate:
		e.Rollback = CreatePlan{Item: in.Rollback.Item}
	default:
		return fmt.Errorf("undo: unknown plan type %q", in.Rollback.Type)
	}
	return nil
}

// toItem encodes the entry as a document for the undoActions collection.
func (e *Entry) toItem() (docstore.Item, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var it docstore.Item
	if err := json.Unmarshal(b, &it); err != nil {
		return nil, err
	}
	return it, nil
}

func entryFromItem(it docstore.Item) (*Entry, error) {
	b, err := json.Marshal(it)
	if err != nil {
		return nil, err
	}
	e := &Entry{}
	if err := json.Unmarshal(b, e); err != nil {
		return nil, err
	}
	return e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
