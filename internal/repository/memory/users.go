// Package memory holds the development API server's data in process memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baghaven/storefront/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

// UserRepository stores accounts keyed by id, with a case-insensitive email index.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]model.StoredUser
	byEmail map[string]string
	now     func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]model.StoredUser),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (model.StoredUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return model.StoredUser{}, model.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (model.StoredUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return model.StoredUser{}, model.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) Create(_ context.Context, user model.StoredUser) (model.StoredUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := emailKey(user.Email)
	if key == "" {
		return model.StoredUser{}, fmt.Errorf("failed to create user: email is empty")
	}
	if _, ok := r.byEmail[key]; ok {
		return model.StoredUser{}, fmt.Errorf("user %s: %w", key, model.ErrAlreadyExists)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	r.byID[user.ID] = user
	r.byEmail[key] = user.ID
	return user, nil
}

func (r *UserRepository) Update(_ context.Context, user model.StoredUser) (model.StoredUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[user.ID]
	if !ok {
		return model.StoredUser{}, model.ErrNotFound
	}
	if emailKey(old.Email) != emailKey(user.Email) {
		if _, taken := r.byEmail[emailKey(user.Email)]; taken {
			return model.StoredUser{}, fmt.Errorf("user %s: %w", user.Email, model.ErrAlreadyExists)
		}
		delete(r.byEmail, emailKey(old.Email))
		r.byEmail[emailKey(user.Email)] = user.ID
	}
	user.CreatedAt = old.CreatedAt
	user.UpdatedAt = r.now().UTC()
	r.byID[user.ID] = user
	return user, nil
}

func (r *UserRepository) List(_ context.Context) ([]model.StoredUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.StoredUser, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b model.StoredUser) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}
