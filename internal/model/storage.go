package model

import "context"

// Persisted client state keys.
const (
	KeyToken       = "token"
	KeyUser        = "user"
	KeyAdminToken  = "adminToken"
	KeyUserOrders  = "user_orders"
	KeyAdminOrders = "admin_orders"
)

// Store is the persistent key-value client state shared by every reconciler.
// Writers are not coordinated: the last write wins.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Watcher reports changes made to a Store by other writers. Watch blocks
// until ctx is done and never reports the watcher's own writes.
type Watcher interface {
	Watch(ctx context.Context, fn func(key string)) error
}
