// Package app assembles the client core: store, signal bus, API clients and
// the reconcilers of every scope.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/baghaven/storefront/internal/bus"
	"github.com/baghaven/storefront/internal/collection"
	"github.com/baghaven/storefront/internal/config"
	"github.com/baghaven/storefront/internal/guard"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/orders"
	"github.com/baghaven/storefront/internal/remote"
	"github.com/baghaven/storefront/internal/session"
	"github.com/baghaven/storefront/internal/storage"
	"github.com/baghaven/storefront/internal/token"
)

// App is one client instance, the equivalent of a browser tab.
type App struct {
	Backend *storage.Backend
	Bus     *bus.Bus

	Client      *remote.Client
	AdminClient *remote.Client

	Session      *session.Reconciler
	AdminSession *session.Reconciler
	Cart         *collection.Reconciler
	Wishlist     *collection.Reconciler
	Orders       *orders.Reconciler
	AdminOrders  *orders.Reconciler

	Guards *guard.Table

	logger *logger.Logger

	mu       sync.Mutex
	unmounts []func()
	stop     context.CancelFunc
	bridged  chan struct{}
}

// New opens the configured store and builds every reconciler. Nothing talks
// to the API until Load or Mount is called.
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger, notifier model.Notifier, navigator model.Navigator) (*App, error) {
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(backend, cfg, logger, notifier, navigator), nil
}

// NewWithBackend is New over an already opened backend.
func NewWithBackend(backend *storage.Backend, cfg *config.Config, logger *logger.Logger, notifier model.Notifier, navigator model.Navigator) *App {
	signals := bus.New(logger)
	client := remote.NewClient(cfg.API.BaseURL, cfg.API.Timeout, backend.Store, model.KeyToken, logger)
	adminClient := client.WithTokenKey(model.KeyAdminToken)
	decoder := token.NewDecoder()
	opts := session.Options{
		VerifyTimeout:            cfg.Session.VerifyTimeout,
		RedirectDelay:            cfg.Session.RedirectDelay,
		RetainTokenOnCorruptUser: cfg.Session.RetainTokenOnCorruptUser,
	}

	return &App{
		Backend:     backend,
		Bus:         signals,
		Client:      client,
		AdminClient: adminClient,
		Session: session.NewReconciler(model.UserScope, backend.Store, client, decoder,
			signals, notifier, navigator, opts, logger),
		AdminSession: session.NewReconciler(model.AdminScope, backend.Store, adminClient, decoder,
			signals, notifier, navigator, opts, logger),
		Cart:        collection.NewReconciler(collection.KindCart, client.Cart(), signals, logger),
		Wishlist:    collection.NewReconciler(collection.KindWishlist, client.Wishlist(), signals, logger),
		Orders:      orders.NewReconciler(model.UserScope, client.Orders(), backend.Store, signals, logger),
		AdminOrders: orders.NewReconciler(model.AdminScope, adminClient.AdminOrders(), backend.Store, signals, logger),
		Guards:      guard.DefaultTable(),
		logger:      logger,
	}
}

// Load derives both sessions from the store without subscribing to signals.
func (a *App) Load(ctx context.Context) {
	a.Session.Load(ctx)
	a.AdminSession.Load(ctx)
}

// States returns the session state of every scope keyed by scope name.
func (a *App) States() map[string]session.State {
	return map[string]session.State{
		model.UserScope.Name:  a.Session.State(),
		model.AdminScope.Name: a.AdminSession.State(),
	}
}

// Open decides what navigating to path shows for the current sessions.
func (a *App) Open(path string) guard.Decision {
	return a.Guards.Decide(a.States(), path)
}

// Mount subscribes every reconciler to the bus, performs their initial loads
// and forwards changes from other writers until Close. withAdmin also mounts
// the admin order list, which needs an admin token to be useful.
func (a *App) Mount(ctx context.Context, withAdmin bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		return
	}

	bctx, cancel := context.WithCancel(ctx)
	a.stop = cancel
	a.bridged = make(chan struct{})

	a.unmounts = append(a.unmounts,
		a.Session.Mount(bctx),
		a.AdminSession.Mount(bctx),
		a.Cart.Mount(bctx),
		a.Wishlist.Mount(bctx),
		a.Orders.Mount(bctx),
	)
	if withAdmin {
		a.unmounts = append(a.unmounts, a.AdminOrders.Mount(bctx))
	}

	go func() {
		defer close(a.bridged)
		if err := a.Bus.Bridge(bctx, a.Backend.Watcher); err != nil {
			a.logger.Error("App: store watcher stopped", "error", err)
		}
	}()
}

// Close unmounts everything, waits for background work and closes the store.
func (a *App) Close() error {
	a.mu.Lock()
	unmounts := a.unmounts
	a.unmounts = nil
	stop, bridged := a.stop, a.bridged
	a.stop = nil
	a.mu.Unlock()

	for _, off := range unmounts {
		off()
	}
	if stop != nil {
		stop()
		<-bridged
	}
	a.Session.Close()
	a.AdminSession.Close()

	if err := a.Backend.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
