package main

import (
	"net/http"

	"github.com/crucial707/hci-undo/internal/config"
	"github.com/crucial707/hci-undo/internal/handlers"
	"github.com/crucial707/hci-undo/internal/middleware"
	"github.com/crucial707/hci-undo/internal/repo"
	"github.com/crucial707/hci-undo/internal/undo"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter wires every route over the engine's store.
func newRouter(engine *undo.Engine, cfg config.Config) http.Handler {
	store := engine.Store()
	auditRepo := repo.NewAuditRepo(store)

	authHandler := &handlers.AuthHandler{
		Store:       store,
		Secret:      []byte(cfg.JWTSecret),
		ExpireHours: cfg.JWTExpireHours,
	}
	collectionHandler := &handlers.CollectionHandler{
		Store:     store,
		AuditRepo: auditRepo,
		Hooks:     handlers.DefaultHooks(),
	}
	undoHandler := handlers.NewUndoHandler(engine, auditRepo)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(middleware.LoginRateLimiter().Middleware).Post("/auth/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))

		// Rollbacks take the engine lock themselves and must stay outside UndoTracking.
		r.Get("/undo-actions", undoHandler.ListUndoActions)
		r.Post("/undo-actions/{id}/rollback", undoHandler.Rollback)

		r.Get("/{resource}", collectionHandler.List)
		r.Get("/{resource}/{id}", collectionHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.UndoTracking(engine))
			r.Post("/{resource}", collectionHandler.Create)
			r.Put("/{resource}/{id}", collectionHandler.Replace)
			r.Patch("/{resource}/{id}", collectionHandler.Update)
			r.Delete("/{resource}/{id}", collectionHandler.Delete)
		})
	})

	return r
}
