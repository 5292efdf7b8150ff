package models

// RoleSuperAdmin is the default elevated role: it sees and rolls back every
// actor's undo actions.
const RoleSuperAdmin = "superadmin"
const RoleAdmin = "admin"
const RoleClient = "client"

// Actor is the authenticated caller of a request.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// Admin is the login account stored in the "admins" collection.
type Admin struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Role         string `json:"role"`
}
