// Package memory is an in-process persistent store. A Shared map can hand out
// several Tab handles; each behaves like a browser tab over the same storage.
package memory

import (
	"context"
	"sync"

	"github.com/baghaven/storefront/internal/model"
)

// Shared is the backing map every Tab reads and writes.
type Shared struct {
	mu       sync.RWMutex
	data     map[string]string
	nextTab  int
	watchers map[int][]func(key string)
}

// NewShared creates empty shared storage.
func NewShared() *Shared {
	return &Shared{
		data:     make(map[string]string),
		watchers: make(map[int][]func(key string)),
	}
}

// Tab returns a new handle onto the shared storage.
func (s *Shared) Tab() *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTab++
	return &Tab{shared: s, id: s.nextTab}
}

// New is shorthand for a single Tab over fresh storage.
func New() *Tab {
	return NewShared().Tab()
}

func (s *Shared) notify(writer int, keys []string) {
	s.mu.RLock()
	var fns []func(string)
	for tab, list := range s.watchers {
		if tab == writer {
			continue
		}
		fns = append(fns, list...)
	}
	s.mu.RUnlock()

	for _, key := range keys {
		for _, fn := range fns {
			fn(key)
		}
	}
}

// Tab is one writer's view of Shared.
type Tab struct {
	shared *Shared
	id     int
}

var (
	_ model.Store   = (*Tab)(nil)
	_ model.Watcher = (*Tab)(nil)
)

// Get returns the value for key.
func (t *Tab) Get(_ context.Context, key string) (string, bool, error) {
	t.shared.mu.RLock()
	defer t.shared.mu.RUnlock()
	v, ok := t.shared.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (t *Tab) Set(_ context.Context, key, value string) error {
	t.shared.mu.Lock()
	old, existed := t.shared.data[key]
	t.shared.data[key] = value
	t.shared.mu.Unlock()

	if !existed || old != value {
		t.shared.notify(t.id, []string{key})
	}
	return nil
}

// Delete removes keys; missing keys are ignored.
func (t *Tab) Delete(_ context.Context, keys ...string) error {
	t.shared.mu.Lock()
	var removed []string
	for _, k := range keys {
		if _, ok := t.shared.data[k]; ok {
			delete(t.shared.data, k)
			removed = append(removed, k)
		}
	}
	t.shared.mu.Unlock()

	if len(removed) > 0 {
		t.shared.notify(t.id, removed)
	}
	return nil
}

// Watch calls fn for changes made through other tabs until ctx is done.
func (t *Tab) Watch(ctx context.Context, fn func(key string)) error {
	t.shared.mu.Lock()
	t.shared.watchers[t.id] = append(t.shared.watchers[t.id], fn)
	idx := len(t.shared.watchers[t.id]) - 1
	t.shared.mu.Unlock()

	<-ctx.Done()

	t.shared.mu.Lock()
	list := t.shared.watchers[t.id]
	if idx < len(list) {
		list[idx] = func(string) {}
	}
	t.shared.mu.Unlock()

	return ctx.Err()
}

// Snapshot returns a copy of all stored values.
func (t *Tab) Snapshot() map[string]string {
	t.shared.mu.RLock()
	defer t.shared.mu.RUnlock()
	out := make(map[string]string, len(t.shared.data))
	for k, v := range t.shared.data {
		out[k] = v
	}
	return out
}
