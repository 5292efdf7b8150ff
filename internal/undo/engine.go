package undo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/crucial707/hci-undo/internal/metrics"
	"github.com/crucial707/hci-undo/internal/models"
	"github.com/google/uuid"
)

// Persister stores the whole document store durably.
type Persister interface {
	Load(ctx context.Context) (docstore.State, error)
	Save(ctx context.Context, state docstore.State) error
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Capacity     int
	TTL          time.Duration
	ElevatedRole string
	Excluded     []string
	Registry     *Registry
	Persister    Persister
	Now          func() time.Time
	Logger       *slog.Logger
}

// RollbackHook runs after a successful rollback while the writer lock is
// still held. It may write to the store but must not call back into the
// engine.
type RollbackHook func(ctx context.Context, actor models.Actor, e *Entry)

// Engine owns one store, its undo log and the writer lock serialising every
// write and rollback against them.
type Engine struct {
	mu sync.Mutex

	store      *docstore.Store
	log        *Log
	registry   *Registry
	policy     Policy
	persister  Persister
	now        func() time.Time
	logger     *slog.Logger
	dirty      atomic.Bool
	onRollback []RollbackHook
}

func NewEngine(store *docstore.Store, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Excluded == nil {
		opts.Excluded = DefaultExcluded
	}
	return &Engine{
		store:     store,
		log:       NewLog(opts.Capacity, opts.TTL, opts.Now),
		registry:  opts.Registry,
		policy:    NewPolicy(opts.ElevatedRole, opts.Excluded),
		persister: opts.Persister,
		now:       opts.Now,
		logger:    opts.Logger,
	}
}

func (e *Engine) Store() *docstore.Store { return e.store }
func (e *Engine) Log() *Log              { return e.log }
func (e *Engine) Policy() Policy         { return e.policy }

// OnRollback registers h to run inside every successful Rollback.
func (e *Engine) OnRollback(h RollbackHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRollback = append(e.onRollback, h)
}

// Capture deep-copies every collection except the undo log's.
func Capture(store *docstore.Store) (docstore.State, error) {
	return store.Snapshot(UndoCollection)
}

// Mutation is one tracked write. It holds the engine's writer lock from
// Begin until Done.
type Mutation struct {
	engine     *Engine
	snapshot   docstore.State
	resource   string
	resourceID string
	tracked    bool
	committed  bool
	released   bool
}

// Begin takes the writer lock and captures the pre-write state. A failed
// capture leaves the mutation untracked; the write itself still proceeds.
func (e *Engine) Begin(ctx context.Context) *Mutation {
	e.mu.Lock()
	m := &Mutation{engine: e}
	snap, err := Capture(e.store)
	if err != nil {
		e.logger.WarnContext(ctx, "undo: capture failed", "err", err)
		return m
	}
	m.snapshot = snap
	return m
}

// Track records the item the write touched. Later calls win.
func (m *Mutation) Track(resource, resourceID string) {
	if m == nil {
		return
	}
	m.resource = resource
	m.resourceID = resourceID
	m.tracked = true
}

// Commit builds the inverse of the tracked write and appends it to the log.
// It returns nil when nothing reversible was tracked. Calling it marks the
// store dirty either way.
func (m *Mutation) Commit(ctx context.Context, method Method, path string, actor models.Actor) *Entry {
	if m == nil || m.committed {
		return nil
	}
	m.committed = true
	e := m.engine
	e.dirty.Store(true)

	if !m.tracked || m.snapshot == nil || !e.policy.Tracks(m.resource) {
		return nil
	}
	plan := BuildPlan(m.resource, m.resourceID, method, m.snapshot)
	if plan == nil {
		return nil
	}
	if plan.TargetID() != m.resourceID {
		e.logger.WarnContext(ctx, "undo: plan id mismatch",
			"resource", m.resource, "resource_id", m.resourceID, "plan_id", plan.TargetID())
		return nil
	}

	now := e.now()
	entry := &Entry{
		ID:          uuid.NewString(),
		Resource:    m.resource,
		ResourceID:  m.resourceID,
		Method:      method,
		ActorID:     actor.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.log.TTL()),
		Path:        path,
		Rollback:    plan,
		SideEffects: e.registry.Build(m.resource, m.resourceID, m.snapshot),
	}
	e.log.Append(entry)
	metrics.IncUndoEntries(m.resource, string(method))
	return entry
}

// Done releases the writer lock. It is safe to call more than once.
func (m *Mutation) Done() {
	if m == nil || m.released {
		return
	}
	m.released = true
	m.snapshot = nil
	m.engine.mu.Unlock()
}

// List returns the entries the actor may see, newest first.
func (e *Engine) List(actor models.Actor, limit int) ([]*Entry, error) {
	if !actor.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.List(func(en *Entry) bool { return e.policy.CanSee(actor, en) }, limit), nil
}

// Rollback reverses the entry with the given id on behalf of actor.
func (e *Engine) Rollback(ctx context.Context, actor models.Actor, id string) (*Entry, error) {
	if !actor.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.log.Find(id)
	if !ok {
		metrics.IncRollbacks("not_found")
		return nil, ErrNotFound
	}
	if !e.policy.CanSee(actor, entry) {
		metrics.IncRollbacks("forbidden")
		return nil, ErrForbidden
	}
	if entry.Expired(e.now()) {
		e.log.Remove(entry.ID)
		e.dirty.Store(true)
		metrics.IncRollbacks("expired")
		return nil, ErrExpired
	}

	applier := &Applier{Store: e.store, Log: e.log, Registry: e.registry}
	if err := applier.Apply(entry); err != nil {
		metrics.IncRollbacks("failed")
		e.logger.InfoContext(ctx, "undo: rollback refused", "undo_id", id, "err", err)
		return nil, err
	}
	for _, h := range e.onRollback {
		h(ctx, actor, entry)
	}
	e.dirty.Store(true)
	metrics.IncRollbacks("ok")
	e.logger.InfoContext(ctx, "undo: rolled back",
		"undo_id", id, "resource", entry.Resource, "resource_id", entry.ResourceID, "actor_id", actor.ID)
	return entry, nil
}

// Dirty reports whether the store changed since the last successful Flush.
func (e *Engine) Dirty() bool { return e.dirty.Load() }

// Flush writes the store and the undo log to the persister. The export
// happens under the writer lock; the save does not.
func (e *Engine) Flush(ctx context.Context) error {
	if e.persister == nil {
		e.dirty.Store(false)
		return nil
	}
	e.mu.Lock()
	state, err := e.store.Snapshot(UndoCollection)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("flush: %w", err)
	}
	entries := e.log.Entries()
	e.dirty.Store(false)
	e.mu.Unlock()

	items := make([]docstore.Item, 0, len(entries))
	for _, en := range entries {
		it, err := en.toItem()
		if err != nil {
			return fmt.Errorf("flush: encode undo entry %s: %w", en.ID, err)
		}
		items = append(items, it)
	}
	state[UndoCollection] = items

	if err := e.persister.Save(ctx, state); err != nil {
		e.dirty.Store(true)
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Load replaces the store and the undo log with what the persister holds.
// Undecodable undo entries are skipped.
func (e *Engine) Load(ctx context.Context) error {
	if e.persister == nil {
		return nil
	}
	state, err := e.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	raw := state[UndoCollection]
	delete(state, UndoCollection)

	entries := make([]*Entry, 0, len(raw))
	for _, it := range raw {
		en, err := entryFromItem(it)
		if err != nil {
			e.logger.WarnContext(ctx, "undo: skipping undecodable entry", "id", it.ID(), "err", err)
			continue
		}
		if en.ExpiresAt.IsZero() {
			en.ExpiresAt = en.CreatedAt.Add(e.log.TTL())
		}
		entries = append(entries, en)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Load(state); err != nil {
		return err
	}
	e.log.Restore(entries)
	e.dirty.Store(false)
	return nil
}
