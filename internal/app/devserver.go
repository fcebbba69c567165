package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	restctx "github.com/baghaven/storefront/internal/api/rest/context"
	"github.com/baghaven/storefront/internal/api/rest/handler"
	"github.com/baghaven/storefront/internal/api/rest/router"
	restserver "github.com/baghaven/storefront/internal/api/rest/server"
	"github.com/baghaven/storefront/internal/config"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/payment/paypal"
	"github.com/baghaven/storefront/internal/repository/memory"
	"github.com/baghaven/storefront/internal/server"
	"github.com/baghaven/storefront/internal/service"
	"github.com/baghaven/storefront/internal/token"
)

const shutdownTimeout = 10 * time.Second

// DevServer is the in-memory storefront API used for local development.
type DevServer struct {
	Auth *service.Auth
	Shop *service.Shop

	handler  http.Handler
	server   *restserver.HTTPServer
	security model.SecurityLayer
	logger   *logger.Logger
}

// NewDevServer builds the API with seeded products and an admin account.
// The PayPal endpoints are mounted when credentials are configured.
func NewDevServer(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*DevServer, error) {
	authService := service.NewAuth(memory.NewUserRepository(), token.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL), logger)
	shopService := service.NewShop(
		memory.NewProductRepository(memory.DefaultProducts()...),
		memory.NewCollectionRepository(),
		memory.NewCollectionRepository(),
		memory.NewOrderRepository(),
		logger,
	)

	if cfg.Server.AdminEmail != "" {
		if _, err := authService.EnsureAdmin(ctx, cfg.Server.AdminEmail, cfg.Server.AdminPassword); err != nil {
			return nil, fmt.Errorf("failed to seed admin: %w", err)
		}
	}

	var payments handler.PaymentProvider
	if cfg.PayPal.Enabled() {
		payments = paypal.NewClient(ctx, cfg.PayPal.ClientID, cfg.PayPal.Secret, cfg.PayPal.BaseURL, logger)
	} else {
		logger.Info("Dev server: PayPal credentials not set, payment endpoints disabled")
	}

	h := router.New(authService, shopService, payments, cfg.PayPal.Currency, restctx.NewManager(), logger).Register()

	return &DevServer{
		Auth:     authService,
		Shop:     shopService,
		handler:  h,
		server:   restserver.NewHTTPServer(h, fmt.Sprintf(":%s", cfg.Server.Port)),
		security: server.NewSecurityLayer(cfg.Server),
		logger:   logger,
	}, nil
}

// Handler returns the API handler for mounting elsewhere.
func (d *DevServer) Handler() http.Handler {
	return d.handler
}

// Address returns the listen address.
func (d *DevServer) Address() string {
	return d.server.Address()
}

// Run serves until ctx is done, then shuts down gracefully.
func (d *DevServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		d.logger.Info("Dev server: starting", "address", s.Address())
		errCh <- s.Start(d.security)
	}(d.server)

	var startErr error
	select {
	case <-ctx.Done():
		d.logger.Info("Dev server: received interruption signal, shutting down")
	case startErr = <-errCh:
		if startErr != nil {
			d.logger.Error("Dev server: failed to start", "error", startErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Stop(shutdownCtx); err != nil {
		d.logger.Error("Dev server: error during shutdown", "error", err, "address", d.server.Address())
	}

	wg.Wait()
	d.logger.Info("Dev server: shutdown complete")
	return startErr
}
