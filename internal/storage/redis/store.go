// Package redis keeps client state in a Redis hash per profile and announces
// changes on a pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// hashAPI is the subset of *goredis.Client the store needs.
type hashAPI interface {
	HGet(ctx context.Context, key, field string) *goredis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd
	HDel(ctx context.Context, key string, fields ...string) *goredis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// subscriber opens a message stream on one channel.
type subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *goredis.Message, func() error, error)
}

type clientSubscriber struct{ c *goredis.Client }

func (s clientSubscriber) Subscribe(ctx context.Context, channel string) (<-chan *goredis.Message, func() error, error) {
	ps := s.c.Subscribe(ctx, channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}
	return ps.Channel(), ps.Close, nil
}

type changeEvent struct {
	Key    string    `json:"key"`
	Writer uuid.UUID `json:"writer"`
}

// Store is a Redis-backed model.Store.
type Store struct {
	api     hashAPI
	sub     subscriber
	hash    string
	channel string
	writer  uuid.UUID
	logger  *logger.Logger
}

var (
	_ model.Store   = (*Store)(nil)
	_ model.Watcher = (*Store)(nil)
)

// NewClient connects to the Redis server at url and checks it responds.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewStore creates a Store over client, scoped to profile.
func NewStore(client *goredis.Client, profile string, logger *logger.Logger) *Store {
	return newStore(client, clientSubscriber{c: client}, profile, logger)
}

func newStore(api hashAPI, sub subscriber, profile string, logger *logger.Logger) *Store {
	return &Store{
		api:     api,
		sub:     sub,
		hash:    "baghaven:state:" + profile,
		channel: "baghaven:changes:" + profile,
		writer:  uuid.New(),
		logger:  logger,
	}
}

// Writer returns the id this Store stamps on its change events.
func (s *Store) Writer() uuid.UUID {
	return s.writer
}

// Get returns the value for key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.api.HGet(ctx, s.hash, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get client state: %w", err)
	}
	return v, true, nil
}

// setScript writes ARGV[2] into field ARGV[1] and publishes ARGV[3], unless
// the field already holds that value. It returns 1 when it wrote.
const setScript = `
if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[2] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('PUBLISH', KEYS[2], ARGV[3])
return 1`

// Set stores value under key and publishes the change. Writing the value
// the key already holds is a no-op and publishes nothing.
func (s *Store) Set(ctx context.Context, key, value string) error {
	payload, err := s.event(key)
	if err != nil {
		return err
	}
	if err := s.api.Eval(ctx, setScript, []string{s.hash, s.channel}, key, value, payload).Err(); err != nil {
		return fmt.Errorf("failed to set client state: %w", err)
	}
	return nil
}

// Delete removes keys, publishing one change per key that existed.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		n, err := s.api.HDel(ctx, s.hash, key).Result()
		if err != nil {
			return fmt.Errorf("failed to delete client state: %w", err)
		}
		if n == 0 {
			continue
		}
		if err := s.publish(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) event(key string) (string, error) {
	payload, err := json.Marshal(changeEvent{Key: key, Writer: s.writer})
	if err != nil {
		return "", fmt.Errorf("failed to marshal change event: %w", err)
	}
	return string(payload), nil
}

func (s *Store) publish(ctx context.Context, key string) error {
	payload, err := s.event(key)
	if err != nil {
		return err
	}
	if err := s.api.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Watch reports keys changed by other writers of the same profile until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	msgs, closeFn, err := s.sub.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to changes: %w", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			s.logger.Error("Redis store: failed to close subscription", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.Warn("Redis store: malformed change event",
					"payload", msg.Payload,
					"error", err.Error())
				continue
			}
			if ev.Writer == s.writer {
				continue
			}
			fn(ev.Key)
		}
	}
}
