package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func newAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	store := docstore.New(AdminsCollection)
	store.Insert(AdminsCollection, docstore.Item{
		"id": "adm-1", "username": "root", "role": "superadmin", "passwordHash": string(hash),
	})
	return &AuthHandler{Store: store, Secret: []byte("test-secret"), ExpireHours: 1}
}

func TestAuthHandler_Login(t *testing.T) {
	h := newAuthHandler(t)
	body, _ := json.Marshal(map[string]string{"username": "root", "password": "correct-horse"})
	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("Login status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	var out struct {
		Token string                 `json:"token"`
		Admin map[string]interface{} `json:"admin"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := out.Admin["passwordHash"]; ok {
		t.Error("passwordHash must not be returned")
	}

	token, err := jwt.Parse(out.Token, func(*jwt.Token) (interface{}, error) { return h.Secret, nil })
	if err != nil || !token.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["sub"] != "adm-1" || claims["role"] != "superadmin" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestAuthHandler_LoginRejects(t *testing.T) {
	h := newAuthHandler(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing password", `{"username":"root"}`, http.StatusUnauthorized},
		{"wrong password", `{"username":"root","password":"nope-nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"username":"ghost","password":"correct-horse"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Login(rr, httptest.NewRequest("POST", "/auth/login", bytes.NewReader([]byte(tt.body))))
			if rr.Code != tt.want {
				t.Errorf("Login status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
