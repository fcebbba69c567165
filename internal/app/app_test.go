package app

import (
	"context"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baghaven/storefront/internal/api/rest/router"
	"github.com/baghaven/storefront/internal/bus"
	"github.com/baghaven/storefront/internal/collection"
	"github.com/baghaven/storefront/internal/config"
	"github.com/baghaven/storefront/internal/guard"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/notify"
	"github.com/baghaven/storefront/internal/storage"
	"github.com/baghaven/storefront/internal/storage/memory"
	"github.com/baghaven/storefront/internal/testutil"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin123"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Driver = storage.DriverMemory
	cfg.Session.RedirectDelay = 0
	cfg.Session.VerifyTimeout = time.Second
	cfg.Server.AdminEmail = adminEmail
	cfg.Server.AdminPassword = adminPassword
	cfg.JWT.Secret = "test-secret"
	return &cfg
}

// startAPI runs the dev server on an httptest listener and points cfg at it.
func startAPI(t *testing.T, cfg *config.Config) *DevServer {
	t.Helper()
	lg := testutil.MakeNoopLogger()
	dev, err := NewDevServer(context.Background(), cfg, lg)
	require.NoError(t, err)

	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)
	cfg.API.BaseURL = srv.URL + router.APIPrefix
	return dev
}

func newTab(t *testing.T, cfg *config.Config, tab *memory.Tab) *App {
	t.Helper()
	lg := testutil.MakeNoopLogger()
	sink := notify.NewLog(lg)
	a := NewWithBackend(&storage.Backend{Store: tab, Watcher: tab}, cfg, lg, sink, sink)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestApp_ShoppingFlow(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	dev := startAPI(t, cfg)
	tab := memory.New()
	a := newTab(t, cfg, tab)
	a.Mount(ctx, false)

	assert.Equal(t, guard.Redirect, a.Open("/cart").Kind)

	sess, err := a.Session.Register(ctx, model.RegisterParams{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.True(t, sess.IsAuthenticated)
	assert.Equal(t, model.RoleUser, sess.Claims.Role)
	assert.Equal(t, guard.Render, a.Open("/cart").Kind)
	assert.Equal(t, guard.Redirect, a.Open("/admin").Kind)

	products, err := a.Client.Products(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(products), 2)

	require.NoError(t, a.Cart.Add(ctx, products[0], 2))
	require.NoError(t, a.Cart.Add(ctx, products[1], 1))
	require.NoError(t, a.Cart.UpdateQuantity(ctx, products[1].ID, 3))
	require.NoError(t, a.Cart.Refresh(ctx))
	assert.Len(t, a.Cart.Items(), 2)
	assert.Equal(t, 5, a.Cart.Count())
	assert.Equal(t, collection.LoadLoaded, a.Cart.Snapshot().Load)

	require.NoError(t, a.Wishlist.Add(ctx, products[0], 1))
	require.NoError(t, a.Wishlist.Refresh(ctx))
	assert.True(t, a.Wishlist.Contains(products[0].ID))

	order, err := a.Orders.Place(ctx, model.OrderDraft{
		Items:           []model.OrderItem{{ProductID: products[0].ID, Quantity: 2}},
		ShippingAddress: model.ShippingAddress{FullName: "Ana", Street: "1 Main St", City: "Lisbon"},
		PaymentInfo:     model.PaymentInfo{Method: "cod"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SourceRemote, order.Source)

	list, err := a.Orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, order.ID, list[0].ID)
	assert.Equal(t, model.SourceRemote, list[0].Source)

	require.NoError(t, a.Cart.Refresh(ctx))
	assert.Zero(t, a.Cart.Count(), "placing an order empties the server cart")

	stored, err := dev.Shop.AllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, products[0].Price*2, stored[0].Totals.Subtotal)

	require.NoError(t, a.Session.Logout(ctx))
	assert.False(t, a.Session.State().Session.IsAuthenticated)
	snap := tab.Snapshot()
	assert.NotContains(t, snap, model.KeyToken)
	assert.NotContains(t, snap, model.KeyUser)
	assert.Zero(t, a.Wishlist.Count(), "logout empties collections")
}

func TestApp_AdminScope(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	startAPI(t, cfg)
	a := newTab(t, cfg, memory.New())
	a.Load(ctx)

	_, err := a.Session.Register(ctx, model.RegisterParams{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	placed, err := a.Orders.Place(ctx, model.OrderDraft{
		Items:           []model.OrderItem{{ProductID: "bag-tote-001", Quantity: 1}},
		ShippingAddress: model.ShippingAddress{Street: "1 Main St"},
	})
	require.NoError(t, err)

	_, err = a.AdminSession.Login(ctx, "ana@example.com", "secret1")
	require.ErrorIs(t, err, model.ErrForbidden)
	assert.Equal(t, guard.Redirect, a.Open("/admin/orders").Kind)

	sess, err := a.AdminSession.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated)
	assert.Equal(t, guard.Render, a.Open("/admin/orders").Kind)

	all, err := a.AdminOrders.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	updated, err := a.AdminOrders.UpdateStatus(ctx, placed.ID, model.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, updated.Status)

	mine, err := a.Orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, model.StatusShipped, mine[0].Status, "remote status wins over the cached copy")
}

func TestApp_OfflineOrderStaysLocal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.API.BaseURL = "http://127.0.0.1:1/api"
	cfg.API.Timeout = 500 * time.Millisecond
	a := newTab(t, cfg, memory.New())

	order, err := a.Orders.Place(ctx, model.OrderDraft{
		Items: []model.OrderItem{{ProductID: "p1", Name: "Tote", Price: 20, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SourceLocal, order.Source)
	assert.Equal(t, float64(40), order.Totals.Total)

	cancelled, err := a.Orders.UpdateStatus(ctx, order.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
}

func TestApp_SecondTabFollowsLogin(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	startAPI(t, cfg)

	shared := memory.NewShared()
	first := newTab(t, cfg, shared.Tab())
	first.Load(ctx)

	secondTab := shared.Tab()
	second := newTab(t, cfg, secondTab)
	var changes atomic.Int32
	off := second.Bus.On(bus.StorageChanged, func(string) { changes.Add(1) })
	defer off()
	second.Mount(ctx, false)

	// wait for the second tab's watcher to be registered
	probe := shared.Tab()
	i := 0
	require.Eventually(t, func() bool {
		i++
		_ = probe.Set(ctx, "probe", strconv.Itoa(i))
		return changes.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, second.Session.State().Session.IsAuthenticated)

	_, err := first.Session.Register(ctx, model.RegisterParams{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return second.Session.State().Session.IsAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, first.Session.Logout(ctx))
	require.Eventually(t, func() bool {
		return !second.Session.State().Session.IsAuthenticated
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	a := NewWithBackend(&storage.Backend{Store: memory.New()}, cfg, testutil.MakeNoopLogger(), notify.NewLog(testutil.MakeNoopLogger()), notify.NewLog(testutil.MakeNoopLogger()))
	a.Mount(context.Background(), true)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
