package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/baghaven/storefront/internal/bus"
	"github.com/baghaven/storefront/internal/mocks"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/testutil"
)

var errServer = errors.New("server unavailable")

func item(productID string, qty int) model.Item {
	return model.Item{ProductID: productID, Quantity: qty}
}

func newReconciler(t *testing.T, kind Kind) (*Reconciler, *mocks.CollectionAPI, *bus.Bus) {
	t.Helper()
	api := mocks.NewCollectionAPI(t)
	b := bus.New(testutil.MakeNoopLogger())
	return NewReconciler(kind, api, b, testutil.MakeNoopLogger()), api, b
}

func productIDs(items []model.Item) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

func TestPhase_Transitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseIdle, PhaseOptimistic, true},
		{PhaseOptimistic, PhaseConfirmed, true},
		{PhaseOptimistic, PhaseReconciling, true},
		{PhaseConfirmed, PhaseIdle, true},
		{PhaseReconciling, PhaseIdle, true},
		{PhaseIdle, PhaseConfirmed, false},
		{PhaseIdle, PhaseReconciling, false},
		{PhaseOptimistic, PhaseIdle, false},
		{PhaseConfirmed, PhaseReconciling, false},
		{PhaseReconciling, PhaseConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestReconciler_InvalidTransitionIsIgnored(t *testing.T) {
	r, _, _ := newReconciler(t, KindCart)
	m := &mutation{op: "test", phase: PhaseIdle}
	r.advance(m, PhaseConfirmed)
	assert.Equal(t, PhaseIdle, m.phase)
}

func TestReconciler_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("success deduplicates by product", func(t *testing.T) {
		r, api, _ := newReconciler(t, KindCart)
		assert.Equal(t, LoadIdle, r.Snapshot().Load)

		api.On("List", mock.Anything).Return([]model.Item{item("p1", 1), item("p2", 0), item("p1", 2)}, nil).Once()

		require.NoError(t, r.Refresh(ctx))
		snap := r.Snapshot()
		assert.Equal(t, LoadLoaded, snap.Load)
		assert.Equal(t, []model.Item{item("p1", 3), item("p2", 1)}, snap.Items)
		assert.Equal(t, 4, r.Count())
	})

	t.Run("failure empties the collection", func(t *testing.T) {
		r, api, _ := newReconciler(t, KindWishlist)
		api.On("List", mock.Anything).Return([]model.Item{item("p1", 0)}, nil).Once()
		api.On("List", mock.Anything).Return(nil, model.ErrUnauthorized).Once()

		require.NoError(t, r.Refresh(ctx))
		assert.Equal(t, 1, r.Count())

		err := r.Refresh(ctx)
		require.ErrorIs(t, err, model.ErrUnauthorized)
		assert.Empty(t, r.Items())
		assert.Equal(t, LoadLoaded, r.Snapshot().Load)
	})

	t.Run("stale response is discarded", func(t *testing.T) {
		r, api, _ := newReconciler(t, KindCart)
		started := make(chan struct{})
		release := make(chan struct{})

		api.On("List", mock.Anything).
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return([]model.Item{item("old", 1)}, nil).Once()
		api.On("List", mock.Anything).Return([]model.Item{item("new", 1)}, nil).Once()

		done := make(chan error)
		go func() { done <- r.Refresh(ctx) }()
		<-started

		require.NoError(t, r.Refresh(ctx))
		close(release)
		require.NoError(t, <-done)

		assert.Equal(t, []string{"new"}, productIDs(r.Items()))
	})
}

func TestReconciler_AddIsOptimistic(t *testing.T) {
	ctx := context.Background()
	r, api, _ := newReconciler(t, KindCart)

	var seenDuringCall Snapshot
	api.On("Add", mock.Anything, "p1", 2).
		Run(func(mock.Arguments) { seenDuringCall = r.Snapshot() }).
		Return(nil).Once()

	require.NoError(t, r.Add(ctx, model.Product{ID: "p1", Name: "Tote", Price: 10}, 2))

	assert.Equal(t, PhaseOptimistic, seenDuringCall.Phase)
	assert.Equal(t, 1, seenDuringCall.Pending)
	require.Len(t, seenDuringCall.Items, 1)
	assert.Equal(t, 2, seenDuringCall.Items[0].Quantity)

	snap := r.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Zero(t, snap.Pending)
	assert.True(t, r.Contains("p1"))
	assert.Equal(t, 20.0, snap.Items[0].Subtotal())
}

func TestReconciler_AddIncrementsCartLine(t *testing.T) {
	ctx := context.Background()
	r, api, _ := newReconciler(t, KindCart)
	api.On("List", mock.Anything).Return([]model.Item{item("p1", 1)}, nil).Once()
	api.On("Add", mock.Anything, "p1", 1).Return(nil).Once()

	require.NoError(t, r.Refresh(ctx))
	require.NoError(t, r.Add(ctx, model.Product{ID: "p1"}, 0))

	assert.Equal(t, []model.Item{item("p1", 2)}, r.Items())
}

func TestReconciler_WishlistAddExistingIsNoop(t *testing.T) {
	ctx := context.Background()
	r, api, _ := newReconciler(t, KindWishlist)
	api.On("List", mock.Anything).Return([]model.Item{item("p1", 0)}, nil).Once()

	require.NoError(t, r.Refresh(ctx))
	require.NoError(t, r.Add(ctx, model.Product{ID: "p1"}, 1))

	assert.Equal(t, 1, r.Count())
	api.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

// An optimistic add that the server rejects converges to the server's list.
func TestReconciler_AddFailureRefetches(t *testing.T) {
	ctx := context.Background()
	r, api, _ := newReconciler(t, KindCart)
	server := []model.Item{item("p2", 1)}

	api.On("List", mock.Anything).Return(server, nil).Once()
	api.On("Add", mock.Anything, "p1", 1).Return(errServer).Once()
	api.On("List", mock.Anything).Return(server, nil).Once()

	require.NoError(t, r.Refresh(ctx))

	var phases []Phase
	r.Subscribe(func(s Snapshot) { phases = append(phases, s.Phase) })

	err := r.Add(ctx, model.Product{ID: "p1"}, 1)
	require.ErrorIs(t, err, errServer)

	assert.Equal(t, server, r.Items())
	assert.Equal(t, PhaseIdle, r.Snapshot().Phase)
	assert.Equal(t, []Phase{
		PhaseOptimistic,  // optimistic insert
		PhaseReconciling, // remote failed
		PhaseReconciling, // refetch loading
		PhaseReconciling, // refetch loaded
		PhaseIdle,
	}, phases)
}

// A failed remove leaves the collection as a fresh list would.
func TestReconciler_RemoveFailureConverges(t *testing.T) {
	ctx := context.Background()
	server := []model.Item{item("p1", 1), item("p2", 3)}

	r, api, _ := newReconciler(t, KindCart)
	api.On("List", mock.Anything).Return(server, nil).Times(2)
	api.On("Remove", mock.Anything, "p1").Return(errServer).Once()

	require.NoError(t, r.Refresh(ctx))
	require.ErrorIs(t, r.Remove(ctx, "p1"), errServer)

	fresh, freshAPI, _ := newReconciler(t, KindCart)
	freshAPI.On("List", mock.Anything).Return(server, nil).Once()
	require.NoError(t, fresh.Refresh(ctx))

	assert.Equal(t, fresh.Items(), r.Items())
	assert.Equal(t, LoadLoaded, r.Snapshot().Load)
}

func TestReconciler_RemoveSuccessDoesNotRefetch(t *testing.T) {
	ctx := context.Background()
	r, api, _ := newReconciler(t, KindWishlist)
	api.On("List", mock.Anything).Return([]model.Item{item("p1", 0), item("p2", 0)}, nil).Once()
	api.On("Remove", mock.Anything, "p1").Return(nil).Once()

	require.NoError(t, r.Refresh(ctx))
	require.NoError(t, r.Remove(ctx, "p1"))

	assert.Equal(t, []string{"p2"}, productIDs(r.Items()))
	assert.False(t, r.Contains("p1"))
}

func TestReconciler_UpdateQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("wishlist is rejected", func(t *testing.T) {
		r, _, _ := newReconciler(t, KindWishlist)
		require.ErrorIs(t, r.UpdateQuantity(ctx, "p1", 2), model.ErrQuantityUnsupported)
	})

	t.Run("sets quantity", func(t *testing.T) {
		r, api, _ := newReconciler(t, KindCart)
		api.On("List", mock.Anything).Return([]model.Item{item("p1", 1)}, nil).Once()
		api.On("UpdateQuantity", mock.Anything, "p1", 5).Return(nil).Once()

		require.NoError(t, r.Refresh(ctx))
		require.NoError(t, r.UpdateQuantity(ctx, "p1", 5))
		assert.Equal(t, 5, r.Count())
	})

	t.Run("zero removes", func(t *testing.T) {
		r, api, _ := newReconciler(t, KindCart)
		api.On("List", mock.Anything).Return([]model.Item{item("p1", 1)}, nil).Once()
		api.On("Remove", mock.Anything, "p1").Return(nil).Once()

		require.NoError(t, r.Refresh(ctx))
		require.NoError(t, r.UpdateQuantity(ctx, "p1", 0))
		assert.Zero(t, r.Count())
	})
}

func TestReconciler_AddRejectsEmptyProduct(t *testing.T) {
	r, _, _ := newReconciler(t, KindCart)
	require.Error(t, r.Add(context.Background(), model.Product{}, 1))
}

// After logout the API refuses to list, so every mounted collection reports
// zero items on the next signal.
func TestReconciler_MountEmptiesOnLogout(t *testing.T) {
	ctx := context.Background()
	api := mocks.NewCollectionAPI(t)
	wishAPI := mocks.NewCollectionAPI(t)
	b := bus.New(testutil.MakeNoopLogger())

	cart := NewReconciler(KindCart, api, b, testutil.MakeNoopLogger())
	wishlist := NewReconciler(KindWishlist, wishAPI, b, testutil.MakeNoopLogger())

	api.On("List", mock.Anything).Return([]model.Item{item("p1", 2)}, nil).Once()
	api.On("List", mock.Anything).Return(nil, model.ErrUnauthorized).Once()
	wishAPI.On("List", mock.Anything).Return([]model.Item{item("p9", 0)}, nil).Once()
	wishAPI.On("List", mock.Anything).Return(nil, model.ErrUnauthorized).Once()

	offCart := cart.Mount(ctx)
	defer offCart()
	offWish := wishlist.Mount(ctx)
	defer offWish()

	assert.Equal(t, 2, cart.Count())
	assert.Equal(t, 1, wishlist.Count())

	b.Emit(bus.AuthStateChanged)

	assert.Zero(t, cart.Count())
	assert.Zero(t, wishlist.Count())
}
