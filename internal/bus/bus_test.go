package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/testutil"
)

func TestBus_EmitCallsEachListenerOnce(t *testing.T) {
	b := New(testutil.MakeNoopLogger())

	var order []string
	b.On(AuthStateChanged, func(string) { order = append(order, "first") })
	b.On(AuthStateChanged, func(string) { order = append(order, "second") })
	b.On(StorageChanged, func(string) { order = append(order, "storage") })

	b.Emit(AuthStateChanged)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(testutil.MakeNoopLogger())

	var calls int
	off := b.On(AuthStateChanged, func(string) { calls++ })
	b.Emit(AuthStateChanged)
	off()
	off()
	b.Emit(AuthStateChanged)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.Listeners(AuthStateChanged))
}

func TestBus_SubscribeDuringEmitIsNotCalled(t *testing.T) {
	b := New(testutil.MakeNoopLogger())

	var late int
	b.On(AuthStateChanged, func(string) {
		b.On(AuthStateChanged, func(string) { late++ })
	})

	b.Emit(AuthStateChanged)
	assert.Equal(t, 0, late)

	b.Emit(AuthStateChanged)
	assert.Equal(t, 1, late)
}

func TestBus_PanickingListenerDoesNotStopOthers(t *testing.T) {
	b := New(testutil.MakeNoopLogger())

	var called bool
	b.On(AuthStateChanged, func(string) { panic("boom") })
	b.On(AuthStateChanged, func(string) { called = true })

	assert.NotPanics(t, func() { b.Emit(AuthStateChanged) })
	assert.True(t, called)
}

func TestBus_OnAny(t *testing.T) {
	b := New(testutil.MakeNoopLogger())

	var got []string
	off := b.OnAny(func(name string) { got = append(got, name) }, AuthStateChanged, StorageChanged)

	b.Emit(AuthStateChanged)
	b.Emit(StorageChanged)
	off()
	b.Emit(StorageChanged)

	assert.Equal(t, []string{AuthStateChanged, StorageChanged}, got)
}

type fakeWatcher struct {
	keys []string
	err  error
}

func (w fakeWatcher) Watch(ctx context.Context, fn func(key string)) error {
	if w.err != nil {
		return w.err
	}
	for _, k := range w.keys {
		fn(k)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestBus_Bridge(t *testing.T) {
	b := New(testutil.MakeNoopLogger())

	var storage atomic.Int32
	b.On(StorageChanged, func(string) { storage.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Bridge(ctx, fakeWatcher{keys: []string{model.KeyToken, model.KeyUser}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), storage.Load())
}

func TestBus_BridgeErrors(t *testing.T) {
	b := New(testutil.MakeNoopLogger())
	ctx := context.Background()

	assert.NoError(t, b.Bridge(ctx, nil))
	assert.NoError(t, b.Bridge(ctx, fakeWatcher{err: model.ErrWatchUnsupported}))

	err := b.Bridge(ctx, fakeWatcher{err: errors.New("listen failed")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch store")
}
