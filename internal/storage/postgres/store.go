package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// Channel is the LISTEN/NOTIFY channel carrying change events.
const Channel = "client_state_changes"

// querier is the subset of pgxpool.Pool the store uses for reads and writes.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// listener opens a dedicated connection for LISTEN.
type listener interface {
	Listen(ctx context.Context, channel string) (notificationSource, error)
}

type notificationSource interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Release()
}

// changeEvent is the NOTIFY payload.
type changeEvent struct {
	Profile string    `json:"profile"`
	Key     string    `json:"key"`
	Writer  uuid.UUID `json:"writer"`
}

// Store keeps client state rows in the client_state table, partitioned by profile.
type Store struct {
	db       querier
	listener listener
	profile  string
	writer   uuid.UUID
	logger   *logger.Logger
}

var (
	_ model.Store   = (*Store)(nil)
	_ model.Watcher = (*Store)(nil)
)

// NewStore creates a Store for profile on conn.
func NewStore(conn *Connection, profile string, logger *logger.Logger) *Store {
	return newStore(conn, poolListener{conn: conn}, profile, logger)
}

func newStore(db querier, l listener, profile string, logger *logger.Logger) *Store {
	return &Store{
		db:       db,
		listener: l,
		profile:  profile,
		writer:   uuid.New(),
		logger:   logger,
	}
}

// Writer returns the id stamped on this store's writes.
func (s *Store) Writer() uuid.UUID {
	return s.writer
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM client_state WHERE profile = $1 AND key = $2`

	var value string
	err := s.db.QueryRow(ctx, query, s.profile, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get client state: %w", err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	payload, err := s.payload(key)
	if err != nil {
		return err
	}

	// The upsert and the notification travel in one statement so a listener
	// never sees an event for a write that did not commit. Rewriting the same
	// value returns no row and so notifies nobody.
	const query = `
		WITH up AS (
			INSERT INTO client_state (profile, key, value, writer, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (profile, key) DO UPDATE
			SET value = EXCLUDED.value, writer = EXCLUDED.writer, updated_at = NOW()
			WHERE client_state.value IS DISTINCT FROM EXCLUDED.value
			RETURNING key
		)
		SELECT pg_notify($5, $6) FROM up`

	if _, err := s.db.Exec(ctx, query, s.profile, key, value, s.writer, Channel, payload); err != nil {
		return fmt.Errorf("failed to set client state: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		payload, err := s.payload(key)
		if err != nil {
			return err
		}

		const query = `
			WITH del AS (
				DELETE FROM client_state WHERE profile = $1 AND key = $2 RETURNING key
			)
			SELECT pg_notify($3, $4) FROM del`

		if _, err := s.db.Exec(ctx, query, s.profile, key, Channel, payload); err != nil {
			return fmt.Errorf("failed to delete client state: %w", err)
		}
	}
	return nil
}

func (s *Store) payload(key string) (string, error) {
	raw, err := json.Marshal(changeEvent{Profile: s.profile, Key: key, Writer: s.writer})
	if err != nil {
		return "", fmt.Errorf("failed to marshal change event: %w", err)
	}
	return string(raw), nil
}

// Watch listens for change events of this store's profile written by other
// writers until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	src, err := s.listener.Listen(ctx, Channel)
	if err != nil {
		return fmt.Errorf("failed to listen for changes: %w", err)
	}
	defer src.Release()

	for {
		n, err := src.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}

		var ev changeEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			s.logger.Warn("Postgres store: malformed change event",
				"payload", n.Payload,
				"error", err.Error())
			continue
		}
		if ev.Profile != s.profile || ev.Writer == s.writer {
			continue
		}
		fn(ev.Key)
	}
}

type poolListener struct {
	conn *Connection
}

func (l poolListener) Listen(ctx context.Context, channel string) (notificationSource, error) {
	c, err := l.conn.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if _, err := c.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		c.Release()
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return pooledConn{c: c}, nil
}

type pooledConn struct {
	c interface {
		Conn() *pgx.Conn
		Release()
	}
}

func (p pooledConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return p.c.Conn().WaitForNotification(ctx)
}

func (p pooledConn) Release() {
	// The connection goes back to the pool still subscribed; UNLISTEN first.
	_, _ = p.c.Conn().Exec(context.Background(), "UNLISTEN *")
	p.c.Release()
}
