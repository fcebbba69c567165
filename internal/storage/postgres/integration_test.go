//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/baghaven/storefront/internal/storage/postgres"
	"github.com/baghaven/storefront/internal/testutil"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "baghaven_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/baghaven_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestStore_CRUDAndWatch(t *testing.T) {
	ctx := context.Background()
	conn, err := postgres.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	tab1 := postgres.NewStore(conn, "profile", testutil.MakeNoopLogger())
	tab2 := postgres.NewStore(conn, "profile", testutil.MakeNoopLogger())
	otherProfile := postgres.NewStore(conn, "elsewhere", testutil.MakeNoopLogger())

	t.Run("get set delete", func(t *testing.T) {
		require.NoError(t, tab1.Set(ctx, "token", "abc"))
		v, ok, err := tab2.Get(ctx, "token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", v)

		_, ok, err = otherProfile.Get(ctx, "token")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, tab2.Delete(ctx, "token"))
		_, ok, err = tab1.Get(ctx, "token")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("watch", func(t *testing.T) {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var mu sync.Mutex
		var seen []string
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = tab1.Watch(wctx, func(key string) {
				mu.Lock()
				seen = append(seen, key)
				mu.Unlock()
			})
		}()
		time.Sleep(200 * time.Millisecond)

		require.NoError(t, tab1.Set(ctx, "own", "1"))
		require.NoError(t, otherProfile.Set(ctx, "foreign", "1"))
		require.NoError(t, tab2.Set(ctx, "user", "{}"))

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(seen) == 1
		}, 5*time.Second, 20*time.Millisecond)

		// same value again: row untouched, nothing announced
		require.NoError(t, tab2.Set(ctx, "user", "{}"))
		require.NoError(t, tab2.Set(ctx, "marker", "1"))
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(seen) == 2
		}, 5*time.Second, 20*time.Millisecond)

		cancel()
		<-done

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"user", "marker"}, seen)
	})
}
