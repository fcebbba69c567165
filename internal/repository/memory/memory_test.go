package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baghaven/storefront/internal/model"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()

	created, err := r.Create(ctx, model.StoredUser{User: model.User{Name: "Ana", Email: "Ana@Example.com"}})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := r.GetByEmail(ctx, "  ana@example.COM ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = r.Create(ctx, model.StoredUser{User: model.User{Email: "ana@example.com"}})
	require.ErrorIs(t, err, model.ErrAlreadyExists)

	_, err = r.Create(ctx, model.StoredUser{})
	require.Error(t, err)

	got.Name = "Ana Maria"
	got.Blocked = true
	updated, err := r.Update(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	byID, err := r.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", byID.Name)
	assert.True(t, byID.Blocked)

	_, err = r.GetByID(ctx, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = r.Update(ctx, model.StoredUser{User: model.User{ID: "missing"}})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestUserRepository_UpdateEmail(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()

	a, err := r.Create(ctx, model.StoredUser{User: model.User{Email: "a@example.com"}})
	require.NoError(t, err)
	_, err = r.Create(ctx, model.StoredUser{User: model.User{Email: "b@example.com"}})
	require.NoError(t, err)

	a.Email = "b@example.com"
	_, err = r.Update(ctx, a)
	require.ErrorIs(t, err, model.ErrAlreadyExists)

	a.Email = "c@example.com"
	_, err = r.Update(ctx, a)
	require.NoError(t, err)
	_, err = r.GetByEmail(ctx, "a@example.com")
	require.ErrorIs(t, err, model.ErrNotFound)
	got, err := r.GetByEmail(ctx, "c@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	r := NewProductRepository(DefaultProducts()...)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "bag-tote-001", list[0].ID)

	p, err := r.GetByID(ctx, "bag-duff-004")
	require.NoError(t, err)
	assert.Equal(t, "Weekender Duffel", p.Name)

	_, err = r.Create(ctx, model.Product{ID: "bag-tote-001"})
	require.ErrorIs(t, err, model.ErrAlreadyExists)

	created, err := r.Create(ctx, model.Product{Name: "Clutch"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = r.GetByID(ctx, "nope")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestCollectionRepository(t *testing.T) {
	ctx := context.Background()
	r := NewCollectionRepository()

	require.NoError(t, r.Put(ctx, "u1", model.Item{ProductID: "p1", Quantity: 1}))
	require.NoError(t, r.Put(ctx, "u1", model.Item{ProductID: "p2", Quantity: 2}))
	require.NoError(t, r.Put(ctx, "u1", model.Item{ProductID: "p1", Quantity: 5}))
	require.NoError(t, r.Put(ctx, "u2", model.Item{ProductID: "p1", Quantity: 1}))

	items, err := r.Items(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.NotEmpty(t, items[0].ID)

	require.NoError(t, r.Remove(ctx, "u1", "p1"))
	require.ErrorIs(t, r.Remove(ctx, "u1", "p1"), model.ErrNotFound)

	items, err = r.Items(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "p2", items[0].ProductID)

	require.NoError(t, r.Clear(ctx, "u1"))
	items, err = r.Items(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	other, err := r.Items(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	r := NewOrderRepository()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }

	empty, err := r.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)

	first, err := r.Create(ctx, model.Order{UserID: "u1", Status: model.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, at, first.CreatedAt)
	second, err := r.Create(ctx, model.Order{UserID: "u2", Status: model.StatusPending, Source: model.SourceLocal})
	require.NoError(t, err)
	assert.Empty(t, second.Source)

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, []string{all[0].ID, all[1].ID})

	mine, err := r.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	updated, err := r.UpdateStatus(ctx, first.ID, model.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, updated.Status)

	got, err := r.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, got.Status)

	_, err = r.UpdateStatus(ctx, "missing", model.StatusShipped)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = r.GetByID(ctx, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}
