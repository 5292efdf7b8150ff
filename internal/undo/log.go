package undo

import (
	"sort"
	"sync"
	"time"

	"github.com/crucial707/hci-undo/internal/metrics"
)

const (
	DefaultCapacity = 300
	DefaultTTL      = 60 * 24 * time.Hour

	DefaultListLimit = 10
	MaxListLimit     = 50
)

// Log is the bounded, newest-first list of undo entries.
type Log struct {
	mu       sync.Mutex
	entries  []*Entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewLog returns an empty log. Zero capacity or ttl select the defaults; a
// nil now uses time.Now.
func NewLog(capacity int, ttl time.Duration, now func() time.Time) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Log{capacity: capacity, ttl: ttl, now: now}
}

// TTL is the lifetime given to new entries.
func (l *Log) TTL() time.Duration { return l.ttl }

// Append prepends e and truncates the log to its capacity.
func (l *Log) Append(e *Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	l.entries = append([]*Entry{e}, l.entries...)
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = l.entries[:l.capacity]
		metrics.AddUndoEvictions("capacity", over)
	}
	metrics.SetUndoLogSize(len(l.entries))
}

// List returns unexpired entries accepted by keep, newest first, capped at
// limit (normalised by NormalizeLimit).
func (l *Log) List(keep func(*Entry) bool, limit int) []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	out := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit = NormalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Find looks an entry up by id without evicting, so callers can tell an
// expired entry from a missing one.
func (l *Log) Find(id string) (*Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Remove deletes the entry with the given id.
func (l *Log) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			metrics.SetUndoLogSize(len(l.entries))
			return true
		}
	}
	return false
}

// Len counts entries physically present, expired or not.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns the unexpired entries in persisted (newest-first) order.
func (l *Log) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Restore replaces the log content, keeping the newest entries up to capacity.
func (l *Log) Restore(entries []*Entry) {
	sorted := make([]*Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(sorted) > l.capacity {
		sorted = sorted[:l.capacity]
	}
	l.entries = sorted
	l.pruneLocked()
	metrics.SetUndoLogSize(len(l.entries))
}

func (l *Log) pruneLocked() {
	now := l.now()
	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.Expired(now) {
			kept = append(kept, e)
		}
	}
	if n := len(l.entries) - len(kept); n > 0 {
		metrics.AddUndoEvictions("ttl", n)
	}
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = nil
	}
	l.entries = kept
}

// NormalizeLimit applies the listing default and hard maximum.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
