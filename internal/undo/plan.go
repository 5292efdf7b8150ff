package undo

import (
	"net/http"

	"github.com/crucial707/hci-undo/internal/docstore"
)

// Method is the kind of write an entry reverses.
type Method string

const (
	MethodCreate  Method = "CREATE"
	MethodReplace Method = "REPLACE"
	MethodUpdate  Method = "UPDATE"
	MethodDelete  Method = "DELETE"
)

// MethodFromHTTP maps POST/PUT/PATCH/DELETE to a Method.
func MethodFromHTTP(m string) (Method, bool) {
	switch m {
	case http.MethodPost:
		return MethodCreate, true
	case http.MethodPut:
		return MethodReplace, true
	case http.MethodPatch:
		return MethodUpdate, true
	case http.MethodDelete:
		return MethodDelete, true
	}
	return "", false
}

// Plan is the inverse of one write on one item. The only implementations are
// DeletePlan, UpsertPlan and CreatePlan.
type Plan interface {
	// TargetID is the id of the item the plan acts on.
	TargetID() string
	plan()
}

// DeletePlan reverses a CREATE.
type DeletePlan struct {
	ID string
}

// UpsertPlan reverses a REPLACE or UPDATE by restoring the pre-write item.
type UpsertPlan struct {
	Item docstore.Item
}

// CreatePlan reverses a DELETE by re-inserting the pre-delete item.
type CreatePlan struct {
	Item docstore.Item
}

func (p DeletePlan) TargetID() string { return p.ID }
func (p UpsertPlan) TargetID() string { return p.Item.ID() }
func (p CreatePlan) TargetID() string { return p.Item.ID() }

func (DeletePlan) plan() {}
func (UpsertPlan) plan() {}
func (CreatePlan) plan() {}

// BuildPlan derives the inverse of method on resource/resourceID from the
// pre-mutation snapshot. It returns nil when the write cannot be reversed.
func BuildPlan(resource, resourceID string, method Method, snap docstore.State) Plan {
	if resource == "" || resourceID == "" {
		return nil
	}
	if _, ok := snap[resource]; !ok {
		return nil
	}

	switch method {
	case MethodCreate:
		return DeletePlan{ID: resourceID}
	case MethodReplace, MethodUpdate:
		before, ok := snap.Find(resource, resourceID)
		if !ok {
			return nil
		}
		return UpsertPlan{Item: before}
	case MethodDelete:
		before, ok := snap.Find(resource, resourceID)
		if !ok {
			return nil
		}
		return CreatePlan{Item: before}
	default:
		return nil
	}
}
