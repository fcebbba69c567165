package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baghaven/storefront/internal/testutil"
)

type execCall struct {
	sql  string
	args []any
}

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

type fakeQuerier struct {
	execs   []execCall
	execErr error
	row     fakeRow
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, q.execErr
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return q.row
}

type fakeSource struct {
	notes    []*pgconn.Notification
	released bool
}

func (f *fakeSource) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	if len(f.notes) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	n := f.notes[0]
	f.notes = f.notes[1:]
	return n, nil
}

func (f *fakeSource) Release() { f.released = true }

type fakeListener struct {
	src *fakeSource
	err error
}

func (l fakeListener) Listen(context.Context, string) (notificationSource, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.src, nil
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()

	q := &fakeQuerier{row: fakeRow{value: "abc"}}
	s := newStore(q, nil, "p", testutil.MakeNoopLogger())
	v, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	q.row = fakeRow{err: pgx.ErrNoRows}
	_, ok, err = s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	q.row = fakeRow{err: errors.New("conn reset")}
	_, _, err = s.Get(ctx, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get client state")
}

func TestStore_SetNotifiesWithWriter(t *testing.T) {
	q := &fakeQuerier{}
	s := newStore(q, nil, "p", testutil.MakeNoopLogger())

	require.NoError(t, s.Set(context.Background(), "token", "abc"))
	require.Len(t, q.execs, 1)

	call := q.execs[0]
	assert.Contains(t, call.sql, "pg_notify")
	assert.Contains(t, call.sql, "IS DISTINCT FROM EXCLUDED.value")
	assert.Equal(t, "p", call.args[0])
	assert.Equal(t, "token", call.args[1])
	assert.Equal(t, "abc", call.args[2])
	assert.Equal(t, s.Writer(), call.args[3])
	assert.Equal(t, Channel, call.args[4])

	var ev changeEvent
	require.NoError(t, json.Unmarshal([]byte(call.args[5].(string)), &ev))
	assert.Equal(t, changeEvent{Profile: "p", Key: "token", Writer: s.Writer()}, ev)
}

func TestStore_DeleteEachKey(t *testing.T) {
	q := &fakeQuerier{}
	s := newStore(q, nil, "p", testutil.MakeNoopLogger())

	require.NoError(t, s.Delete(context.Background(), "token", "adminToken", "user"))
	require.Len(t, q.execs, 3)
	for _, c := range q.execs {
		assert.True(t, strings.Contains(c.sql, "DELETE FROM client_state"))
	}

	q.execErr = errors.New("boom")
	require.Error(t, s.Delete(context.Background(), "token"))
}

func TestStore_WatchFiltersOwnAndForeignProfiles(t *testing.T) {
	other := uuid.New()
	src := &fakeSource{}
	s := newStore(&fakeQuerier{}, fakeListener{src: src}, "p", testutil.MakeNoopLogger())

	payload := func(ev changeEvent) *pgconn.Notification {
		raw, _ := json.Marshal(ev)
		return &pgconn.Notification{Channel: Channel, Payload: string(raw)}
	}
	src.notes = []*pgconn.Notification{
		payload(changeEvent{Profile: "p", Key: "own", Writer: s.Writer()}),
		payload(changeEvent{Profile: "q", Key: "foreign", Writer: other}),
		{Channel: Channel, Payload: "not json"},
		payload(changeEvent{Profile: "p", Key: "token", Writer: other}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	err := s.Watch(ctx, func(key string) {
		seen = append(seen, key)
		cancel()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"token"}, seen)
	assert.True(t, src.released)
}

func TestStore_WatchListenError(t *testing.T) {
	s := newStore(&fakeQuerier{}, fakeListener{err: errors.New("no conn")}, "p", testutil.MakeNoopLogger())
	err := s.Watch(context.Background(), func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen for changes")
}
