// Package bus is the process-wide signal bus. Listeners learn that "something
// changed" and re-derive their own state; signals carry no payload.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

const (
	// AuthStateChanged is emitted by this process on login, logout and
	// session invalidation.
	AuthStateChanged = "authStateChanged"
	// StorageChanged is emitted when another writer changed the persistent store.
	StorageChanged = "storage"
)

// Handler reacts to a signal.
type Handler func(name string)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches named signals to subscribed handlers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	logger *logger.Logger
}

// New creates an empty Bus.
func New(logger *logger.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// On subscribes handler to name and returns a func that unsubscribes it.
func (b *Bus) On(name string, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.off(name, id) })
	}
}

// OnAny subscribes handler to every name in names.
func (b *Bus) OnAny(handler Handler, names ...string) func() {
	offs := make([]func(), 0, len(names))
	for _, name := range names {
		offs = append(offs, b.On(name, handler))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func (b *Bus) off(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[name]
	for i, s := range subs {
		if s.id == id {
			b.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Emit calls every handler subscribed to name at the time of the call, once,
// in subscription order, on the caller's goroutine.
func (b *Bus) Emit(name string) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[name]...)
	b.mu.RUnlock()

	b.logger.Debug("Signal bus: emit", "signal", name, "listeners", len(subs))

	for _, s := range subs {
		b.dispatch(name, s.handler)
	}
}

func (b *Bus) dispatch(name string, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Signal bus: listener panicked",
				"signal", name,
				"panic", fmt.Sprint(r))
		}
	}()
	handler(name)
}

// Listeners returns the number of handlers subscribed to name.
func (b *Bus) Listeners(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Bridge forwards changes reported by watcher as StorageChanged signals until
// ctx is done. Stores that cannot be watched make Bridge return nil at once.
func (b *Bus) Bridge(ctx context.Context, watcher model.Watcher) error {
	if watcher == nil {
		return nil
	}

	err := watcher.Watch(ctx, func(key string) {
		b.logger.Debug("Signal bus: external store change", "key", key)
		b.Emit(StorageChanged)
	})
	switch {
	case errors.Is(err, model.ErrWatchUnsupported):
		b.logger.Debug("Signal bus: store does not support watching")
		return nil
	case err != nil && ctx.Err() != nil:
		return nil
	case err != nil:
		return fmt.Errorf("failed to watch store: %w", err)
	}
	return nil
}
