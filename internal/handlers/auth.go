package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AdminsCollection holds the accounts that can log in.
const AdminsCollection = "admins"

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	Store       *docstore.Store
	Secret      []byte
	ExpireHours int
}

var validate = validator.New()

// ==========================
// Login (username and password verified against the admins collection)
// ==========================
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username" validate:"required,max=255"`
		Password string `json:"password" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(input); err != nil {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	admin, ok := FindAdmin(h.Store, input.Username)
	if !ok || admin.PasswordHash == "" {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(input.Password)); err != nil {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	signed, err := IssueToken(h.Secret, models.Actor{ID: admin.ID, Role: admin.Role}, admin.Username, h.expiry())
	if err != nil {
		JSONError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	admin.PasswordHash = ""
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": signed,
		"admin": admin,
	})
}

func (h *AuthHandler) expiry() time.Duration {
	if h.ExpireHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(h.ExpireHours) * time.Hour
}

// IssueToken signs an HS256 token for actor.
func IssueToken(secret []byte, actor models.Actor, username string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":      actor.ID,
		"role":     actor.Role,
		"username": username,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// FindAdmin looks an admin up by username.
func FindAdmin(store *docstore.Store, username string) (models.Admin, bool) {
	items, _ := store.Collection(AdminsCollection)
	for _, it := range items {
		if u, _ := it["username"].(string); u != username {
			continue
		}
		var a models.Admin
		raw, err := json.Marshal(it)
		if err != nil || json.Unmarshal(raw, &a) != nil {
			return models.Admin{}, false
		}
		return a, true
	}
	return models.Admin{}, false
}
