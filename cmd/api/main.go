package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/crucial707/hci-undo/internal/config"
	"github.com/crucial707/hci-undo/internal/db"
	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/handlers"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/crucial707/hci-undo/internal/repo"
	"github.com/crucial707/hci-undo/internal/repo/mongo"
	"github.com/crucial707/hci-undo/internal/scheduler"
	"github.com/crucial707/hci-undo/internal/undo"
	"golang.org/x/crypto/bcrypt"
)

// defaultCollections exist from the first start on, even when empty.
var defaultCollections = []string{
	"clients", "users", handlers.AdminsCollection, "adminClients",
	repo.AuditCollection, "payments", "deposits",
}

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogFormat)

	if cfg.Env == "prod" && (cfg.JWTSecret == "" || cfg.JWTSecret == "supersecretkey") {
		slog.Error("JWT_SECRET must be set to a non-default value when ENV=prod")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persister, closePersister, err := openPersister(ctx, cfg)
	if err != nil {
		slog.Error("store backend unavailable", "backend", cfg.StoreBackend, "err", err)
		os.Exit(1)
	}
	defer closePersister()

	excluded := cfg.UndoExcluded
	if len(excluded) == 0 {
		excluded = undo.DefaultExcluded
	}
	engine := undo.NewEngine(docstore.New(), undo.Options{
		Capacity:     cfg.UndoCapacity,
		TTL:          cfg.UndoTTL,
		ElevatedRole: cfg.UndoElevatedRole,
		Excluded:     excluded,
		Persister:    persister,
		Logger:       slog.Default(),
	})
	if err := engine.Load(ctx); err != nil {
		slog.Error("failed to load store", "err", err)
		os.Exit(1)
	}
	for _, c := range defaultCollections {
		engine.Store().EnsureCollection(c)
	}
	if err := bootstrapAdmin(ctx, engine, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		slog.Error("failed to create initial admin", "err", err)
		os.Exit(1)
	}
	slog.Info("store ready", "backend", cfg.StoreBackend,
		"collections", len(engine.Store().Collections()), "undo_entries", engine.Log().Len())

	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		if err := scheduler.Run(ctx, cfg.FlushSchedule, engine); err != nil {
			slog.Error("flush scheduler", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(engine, cfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			slog.Info("starting server (HTTPS)", "addr", srv.Addr)
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			slog.Info("starting server", "addr", srv.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-flushed
	slog.Info("server stopped")
}

func setupLogger(format string) {
	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		h = slog.NewTextHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(h))
}

// openPersister returns the durable backend selected by STORE_BACKEND, or nil
// for the in-memory one.
func openPersister(ctx context.Context, cfg config.Config) (undo.Persister, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory, "":
		return nil, func() {}, nil
	case config.BackendPostgres:
		database, err := db.Connect(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass,
			cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(db.URL(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass)); err != nil {
			database.Close()
			return nil, nil, err
		}
		slog.Info("connected to postgres", "host", cfg.DBHost, "db", cfg.DBName)
		return repo.NewStateRepo(database), func() { database.Close() }, nil
	case config.BackendMongo:
		m, err := mongo.New(ctx, mongo.Config{URI: cfg.MongoURI, DB: cfg.MongoDB})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to mongo", "db", cfg.MongoDB)
		return m, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.Close(closeCtx)
		}, nil
	default:
		return nil, nil, errors.New("unknown STORE_BACKEND " + cfg.StoreBackend)
	}
}

// bootstrapAdmin creates a superadmin when the admins collection is empty and
// a password is configured. The write marks the store dirty but is not undoable.
func bootstrapAdmin(ctx context.Context, engine *undo.Engine, username, password string) error {
	if password == "" {
		return nil
	}
	if admins, _ := engine.Store().Collection(handlers.AdminsCollection); len(admins) > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	m := engine.Begin(ctx)
	defer m.Done()
	if _, err := engine.Store().Insert(handlers.AdminsCollection, docstore.Item{
		"username":     username,
		"passwordHash": string(hash),
		"role":         models.RoleSuperAdmin,
	}); err != nil {
		return err
	}
	m.Commit(ctx, undo.MethodCreate, "bootstrap", models.Actor{})
	slog.Info("created initial superadmin", "username", username)
	return nil
}
