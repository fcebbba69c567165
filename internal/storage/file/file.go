// Package file keeps client state in a JSON document on disk. Several
// processes may share one file; each sees the others' writes through Watch.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// Store is a file-backed model.Store.
type Store struct {
	path   string
	logger *logger.Logger

	mu sync.Mutex
	// written holds what this Store wrote per key since the watcher last
	// looked, so its own writes can be told apart from other processes'.
	written map[string]ownWrite
}

type ownWrite struct {
	value   string
	deleted bool
}

// matches reports whether a key reading (v, ok) is still what this Store
// left there.
func (w ownWrite) matches(v string, ok bool) bool {
	if w.deleted {
		return !ok
	}
	return ok && v == w.value
}

var (
	_ model.Store   = (*Store)(nil)
	_ model.Watcher = (*Store)(nil)
)

// New creates a Store at path, creating parent directories as needed.
func New(path string, logger *logger.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	return &Store{path: path, logger: logger, written: make(map[string]ownWrite)}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value for key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	if old, ok := data[key]; ok && old == value {
		return nil
	}
	data[key] = value
	if err := s.write(data); err != nil {
		return err
	}
	s.written[key] = ownWrite{value: value}
	return nil
}

// Delete removes keys.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	var removed []string
	for _, k := range keys {
		if _, ok := data[k]; ok {
			delete(data, k)
			removed = append(removed, k)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := s.write(data); err != nil {
		return err
	}
	for _, k := range removed {
		s.written[k] = ownWrite{deleted: true}
	}
	return nil
}

func (s *Store) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]string{}, nil
	}

	data := map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		// A torn or hand-edited file degrades to empty state instead of
		// locking every reconciler out.
		s.logger.Warn("File store: unreadable state file, treating as empty",
			"path", s.path,
			"error", err.Error())
		return map[string]string{}, nil
	}
	return data, nil
}

func (s *Store) write(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

const debounce = 50 * time.Millisecond

// Watch reports keys changed by other processes until ctx is done. Events
// are debounced; each burst is diffed against the last known snapshot.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			s.logger.Error("File store: failed to close watcher", "error", err)
		}
	}()

	// Writes replace the file by rename, so the directory is watched.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch store dir: %w", err)
	}

	s.mu.Lock()
	known, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("File store: watcher error", "error", err)

		case <-timer.C:
			known = s.dispatch(known, fn)
		}
	}
}

// dispatch reports every key that differs from known, except those still
// holding what this Store itself wrote since the previous dispatch.
func (s *Store) dispatch(known map[string]string, fn func(key string)) map[string]string {
	s.mu.Lock()
	current, err := s.read()
	own := s.written
	if err == nil {
		s.written = make(map[string]ownWrite)
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("File store: failed to reload after change", "error", err)
		return known
	}

	skipped := 0
	for _, key := range diffKeys(known, current) {
		v, ok := current[key]
		if w, mine := own[key]; mine && w.matches(v, ok) {
			skipped++
			continue
		}
		fn(key)
	}
	if skipped > 0 {
		s.logger.Debug("File store: skipping own writes", "keys", skipped)
	}
	return current
}

func diffKeys(before, after map[string]string) []string {
	var keys []string
	for k, v := range after {
		if old, ok := before[k]; !ok || old != v {
			keys = append(keys, k)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
