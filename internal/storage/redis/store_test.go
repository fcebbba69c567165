package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baghaven/storefront/internal/testutil"
)

type published struct {
	channel string
	payload string
}

type fakeHash struct {
	data      map[string]map[string]string
	published []published
	err       error
}

func newFakeHash() *fakeHash {
	return &fakeHash{data: map[string]map[string]string{}}
}

func (f *fakeHash) HGet(_ context.Context, key, field string) *goredis.StringCmd {
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}
	v, ok := f.data[key][field]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

// Eval runs setScript against the in-memory hash.
func (f *fakeHash) Eval(_ context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd {
	if f.err != nil {
		return goredis.NewCmdResult(nil, f.err)
	}
	if script != setScript {
		return goredis.NewCmdResult(nil, errors.New("unexpected script"))
	}
	hash, field, value := keys[0], args[0].(string), args[1].(string)
	if old, ok := f.data[hash][field]; ok && old == value {
		return goredis.NewCmdResult(int64(0), nil)
	}
	if f.data[hash] == nil {
		f.data[hash] = map[string]string{}
	}
	f.data[hash][field] = value
	f.published = append(f.published, published{channel: keys[1], payload: args[2].(string)})
	return goredis.NewCmdResult(int64(1), nil)
}

func (f *fakeHash) HDel(_ context.Context, key string, fields ...string) *goredis.IntCmd {
	var n int64
	for _, field := range fields {
		if _, ok := f.data[key][field]; ok {
			delete(f.data[key], field)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (f *fakeHash) Publish(_ context.Context, channel string, message interface{}) *goredis.IntCmd {
	f.published = append(f.published, published{channel: channel, payload: message.(string)})
	return goredis.NewIntResult(1, nil)
}

type fakeSubscriber struct {
	msgs   chan *goredis.Message
	closed bool
	err    error
}

func (f *fakeSubscriber) Subscribe(context.Context, string) (<-chan *goredis.Message, func() error, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.msgs, func() error { f.closed = true; return nil }, nil
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	h := newFakeHash()
	s := newStore(h, nil, "p", testutil.MakeNoopLogger())

	_, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "token", "abc"))
	v, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	assert.Equal(t, "abc", h.data["baghaven:state:p"]["token"])

	require.NoError(t, s.Delete(ctx, "token", "missing"))
	_, ok, err = s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	// one publish for Set, one for the key that existed on Delete
	require.Len(t, h.published, 2)
	for _, p := range h.published {
		assert.Equal(t, "baghaven:changes:p", p.channel)
		var ev changeEvent
		require.NoError(t, json.Unmarshal([]byte(p.payload), &ev))
		assert.Equal(t, "token", ev.Key)
		assert.Equal(t, s.Writer(), ev.Writer)
	}
}

func TestStore_SetSameValuePublishesOnce(t *testing.T) {
	ctx := context.Background()
	h := newFakeHash()
	s := newStore(h, nil, "p", testutil.MakeNoopLogger())

	require.NoError(t, s.Set(ctx, "user", `{"id":"u1"}`))
	require.NoError(t, s.Set(ctx, "user", `{"id":"u1"}`))
	assert.Len(t, h.published, 1)

	require.NoError(t, s.Set(ctx, "user", `{"id":"u2"}`))
	assert.Len(t, h.published, 2)
	assert.Equal(t, `{"id":"u2"}`, h.data["baghaven:state:p"]["user"])
}

func TestStore_GetError(t *testing.T) {
	h := newFakeHash()
	h.err = errors.New("connection refused")
	s := newStore(h, nil, "p", testutil.MakeNoopLogger())

	_, _, err := s.Get(context.Background(), "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get client state")

	require.Error(t, s.Set(context.Background(), "token", "x"))
	assert.Empty(t, h.published)
}

func TestStore_WatchSkipsOwnWrites(t *testing.T) {
	sub := &fakeSubscriber{msgs: make(chan *goredis.Message, 4)}
	s := newStore(newFakeHash(), sub, "p", testutil.MakeNoopLogger())

	event := func(key string, writer uuid.UUID) *goredis.Message {
		raw, _ := json.Marshal(changeEvent{Key: key, Writer: writer})
		return &goredis.Message{Payload: string(raw)}
	}
	sub.msgs <- event("own", s.Writer())
	sub.msgs <- &goredis.Message{Payload: "{"}
	sub.msgs <- event("user", uuid.New())
	close(sub.msgs)

	var seen []string
	err := s.Watch(context.Background(), func(key string) { seen = append(seen, key) })
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, seen)
	assert.True(t, sub.closed)
}

func TestStore_WatchSubscribeError(t *testing.T) {
	s := newStore(newFakeHash(), &fakeSubscriber{err: errors.New("down")}, "p", testutil.MakeNoopLogger())
	err := s.Watch(context.Background(), func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to subscribe to changes")
}
