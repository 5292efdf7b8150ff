package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/crucial707/hci-undo/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

type key string

const ActorKey key = "actor"

// WithActor returns ctx carrying the authenticated actor.
func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

// GetActor returns the actor set by JWTMiddleware.
func GetActor(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(ActorKey).(models.Actor)
	return a, ok && a.Authenticated()
}

// JWTMiddleware rejects requests without a valid HS256 bearer token and puts
// the token's subject and role in the request context.
func JWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				jsonError(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

			if err != nil || !token.Valid {
				jsonError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				jsonError(w, "invalid token claims", http.StatusUnauthorized)
				return
			}
			sub, _ := claims.GetSubject()
			role, _ := claims["role"].(string)
			if sub == "" {
				jsonError(w, "invalid token claims", http.StatusUnauthorized)
				return
			}
			ctx := WithActor(r.Context(), models.Actor{ID: sub, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
