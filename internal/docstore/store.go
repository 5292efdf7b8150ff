// Package docstore is the in-memory document store: named collections of JSON
// objects, each carrying a string "id". It offers no transactions, diffs or
// versioning; callers that need those build them on top (see internal/undo).
package docstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
)

// IDField is the key every item is identified by.
const IDField = "id"

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrItemExists         = errors.New("item already exists")
)

// Item is one document in a collection.
type Item map[string]any

// ID returns the item's id, or "" when it has none.
func (it Item) ID() string {
	if it == nil {
		return ""
	}
	switch v := it[IDField].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// State is a full copy of the store, keyed by collection name.
type State map[string][]Item

// Find returns the item with the given id in collection name.
func (s State) Find(name, id string) (Item, bool) {
	for _, it := range s[name] {
		if it.ID() == id {
			return it, true
		}
	}
	return nil, false
}

// Store holds every collection in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]Item
}

// New returns a store pre-populated with the given (possibly empty) collections.
func New(names ...string) *Store {
	s := &Store{collections: make(map[string][]Item)}
	for _, n := range names {
		s.collections[n] = []Item{}
	}
	return s
}

// Collections returns the sorted collection names.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for n := range s.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether collection name exists.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok
}

// EnsureCollection creates collection name when it is missing.
func (s *Store) EnsureCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = []Item{}
	}
}

// Collection returns a deep copy of collection name.
func (s *Store) Collection(name string) ([]Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.collections[name]
	if !ok {
		return nil, false
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, cloneItem(it))
	}
	return out, true
}

// Get returns a copy of one item.
func (s *Store) Get(name, id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if i := indexOf(items, id); i >= 0 {
		return cloneItem(items[i]), nil
	}
	return nil, ErrItemNotFound
}

// Insert appends item to collection name, creating the collection if needed.
// An id is generated when the item has none.
func (s *Store) Insert(name string, item Item) (Item, error) {
	item = cloneItem(item)
	if item == nil {
		item = Item{}
	}
	if item.ID() == "" {
		item[IDField] = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collections[name]
	if indexOf(items, item.ID()) >= 0 {
		return nil, ErrItemExists
	}
	s.collections[name] = append(items, item)
	return cloneItem(item), nil
}

// Replace swaps the whole item with the given id. The stored id never changes.
func (s *Store) Replace(name, id string, item Item) (Item, error) {
	item = cloneItem(item)
	if item == nil {
		item = Item{}
	}
	item[IDField] = id
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	i := indexOf(items, id)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	items[i] = item
	return cloneItem(item), nil
}

// Patch merges fields into the item with the given id (shallow merge).
func (s *Store) Patch(name, id string, fields Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	i := indexOf(items, id)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	merged := cloneItem(items[i])
	for k, v := range cloneItem(fields) {
		if k == IDField {
			continue
		}
		merged[k] = v
	}
	items[i] = merged
	return cloneItem(merged), nil
}

// Delete removes the item with the given id and returns what was removed.
func (s *Store) Delete(name, id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	i := indexOf(items, id)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	removed := items[i]
	s.collections[name] = append(items[:i], items[i+1:]...)
	return removed, nil
}

// Remove deletes every item with the given id; a missing item is not an error.
func (s *Store) Remove(name, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.collections[name]
	if !ok {
		return false
	}
	kept := items[:0]
	removed := false
	for _, it := range items {
		if it.ID() == id {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	s.collections[name] = kept
	return removed
}

// Upsert replaces the item with the same id in place, or appends it.
func (s *Store) Upsert(name string, item Item) {
	item = cloneItem(item)
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collections[name]
	if i := indexOf(items, item.ID()); i >= 0 {
		items[i] = item
		return
	}
	s.collections[name] = append(items, item)
}

// InsertIfAbsent appends item unless an item with its id already exists.
func (s *Store) InsertIfAbsent(name string, item Item) bool {
	item = cloneItem(item)
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collections[name]
	if indexOf(items, item.ID()) >= 0 {
		return false
	}
	s.collections[name] = append(items, item)
	return true
}

// ReplaceWhere drops every item whose field equals value and appends rows.
func (s *Store) ReplaceWhere(name, field string, value any, rows []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collections[name]
	kept := make([]Item, 0, len(items)+len(rows))
	for _, it := range items {
		if it[field] == value {
			continue
		}
		kept = append(kept, it)
	}
	for _, r := range rows {
		kept = append(kept, cloneItem(r))
	}
	s.collections[name] = kept
}

// Snapshot deep-copies every collection except the excluded ones.
func (s *Store) Snapshot(exclude ...string) (State, error) {
	skip := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		skip[n] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := make(State, len(s.collections))
	for n, items := range s.collections {
		if skip[n] {
			continue
		}
		src[n] = items
	}
	var out State
	if err := deepcopy.Copy(&out, &src); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if out == nil {
		out = State{}
	}
	return out, nil
}

// Load replaces the whole store content with a copy of state.
func (s *Store) Load(state State) error {
	var cp State
	if err := deepcopy.Copy(&cp, &state); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if cp == nil {
		cp = State{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = cp
	return nil
}

func indexOf(items []Item, id string) int {
	for i, it := range items {
		if it.ID() == id {
			return i
		}
	}
	return -1
}

func cloneItem(it Item) Item {
	if it == nil {
		return nil
	}
	var out Item
	if err := deepcopy.Copy(&out, &it); err != nil {
		// Items originate from JSON; fall back to a shallow copy.
		out = make(Item, len(it))
		for k, v := range it {
			out[k] = v
		}
	}
	return out
}
