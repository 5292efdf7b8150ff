package handlers

import (
	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/crucial707/hci-undo/internal/undo"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// ResourceHooks customises the generic CRUD handler for one resource.
type ResourceHooks interface {
	// Prepare validates and normalises an incoming item. Non-empty fields
	// reject the request with 400.
	Prepare(method undo.Method, item docstore.Item) (docstore.Item, map[string]string)
	// AfterWrite runs inside the same undo mutation as the write itself.
	AfterWrite(store *docstore.Store, actor models.Actor, method undo.Method, item docstore.Item)
	// Present shapes an item for responses.
	Present(item docstore.Item) docstore.Item
}

// DefaultHooks returns the hooks for the built-in resources.
func DefaultHooks() map[string]ResourceHooks {
	return map[string]ResourceHooks{
		undo.ClientsCollection: NewClientHooks(),
		"admins":  AdminHooks{},
	}
}

// NoHooks accepts any item unchanged.
type NoHooks struct{}

func (NoHooks) Prepare(_ undo.Method, item docstore.Item) (docstore.Item, map[string]string) {
	return item, nil
}
func (NoHooks) AfterWrite(*docstore.Store, models.Actor, undo.Method, docstore.Item) {}
func (NoHooks) Present(item docstore.Item) docstore.Item                            { return item }

// ==========================
// Clients
// ==========================

// ClientHooks keeps the denormalized state of a client in step: a login
// record in Users with the client's id and phone, and a row in Associations
// linking the client to the admin who created it. Its layout is the one
// undo.ClientSideEffects restores on rollback.
type ClientHooks struct {
	NoHooks
	undo.ClientSideEffects
	validate *validator.Validate
}

func NewClientHooks() ClientHooks {
	return ClientHooks{ClientSideEffects: undo.NewClientSideEffects(), validate: validator.New()}
}

func (c ClientHooks) Prepare(method undo.Method, item docstore.Item) (docstore.Item, map[string]string) {
	phone, present := item["phone"]
	if !present && method == undo.MethodUpdate {
		return item, nil
	}
	s, _ := phone.(string)
	if err := c.validate.Var(s, "required,numeric,min=6,max=15"); err != nil {
		return item, map[string]string{"phone": "required, 6-15 digits"}
	}
	return item, nil
}

func (c ClientHooks) AfterWrite(store *docstore.Store, actor models.Actor, method undo.Method, item docstore.Item) {
	id := item.ID()
	switch method {
	case undo.MethodCreate:
		store.EnsureCollection(c.Users)
		store.Upsert(c.Users, docstore.Item{"id": id, "phone": item["phone"], "role": models.RoleClient})
		if actor.Authenticated() {
			store.EnsureCollection(c.Associations)
			_, _ = store.Insert(c.Associations, docstore.Item{"adminId": actor.ID, c.ClientField: id})
		}
	case undo.MethodReplace, undo.MethodUpdate:
		user, err := store.Get(c.Users, id)
		if err != nil {
			user = docstore.Item{"id": id, "role": models.RoleClient}
		}
		user["phone"] = item["phone"]
		store.EnsureCollection(c.Users)
		store.Upsert(c.Users, user)
	case undo.MethodDelete:
		store.Remove(c.Users, id)
		store.ReplaceWhere(c.Associations, c.ClientField, id, nil)
	}
}

// ==========================
// Admins
// ==========================

// AdminHooks hashes plain passwords and never returns the hash.
type AdminHooks struct{}

func (AdminHooks) Prepare(method undo.Method, item docstore.Item) (docstore.Item, map[string]string) {
	fields := map[string]string{}
	if method != undo.MethodUpdate {
		if u, _ := item["username"].(string); u == "" {
			fields["username"] = "required"
		}
	}
	if role, present := item["role"]; present || method != undo.MethodUpdate {
		r, _ := role.(string)
		switch r {
		case "":
			item["role"] = models.RoleAdmin
		case models.RoleAdmin, models.RoleSuperAdmin:
		default:
			fields["role"] = "must be admin or superadmin"
		}
	}
	delete(item, "passwordHash")
	if pw, present := item["password"]; present {
		delete(item, "password")
		s, _ := pw.(string)
		if len(s) < 8 {
			fields["password"] = "at least 8 characters"
		} else if hash, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost); err == nil {
			item["passwordHash"] = string(hash)
		} else {
			fields["password"] = "cannot be hashed"
		}
	} else if method != undo.MethodUpdate {
		fields["password"] = "required"
	}
	return item, fields
}

func (AdminHooks) AfterWrite(*docstore.Store, models.Actor, undo.Method, docstore.Item) {}

func (AdminHooks) Present(item docstore.Item) docstore.Item {
	out := make(docstore.Item, len(item))
	for k, v := range item {
		if k == "passwordHash" {
			continue
		}
		out[k] = v
	}
	return out
}
