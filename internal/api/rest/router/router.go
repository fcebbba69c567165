package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/baghaven/storefront/internal/api/rest/handler"
	"github.com/baghaven/storefront/internal/api/rest/middleware"
	"github.com/baghaven/storefront/internal/api/rest/response"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/service"
)

// APIPrefix is where the storefront API is mounted.
const APIPrefix = "/api"

// Router wires the storefront REST endpoints.
type Router struct {
	authService    *service.Auth
	shopService    *service.Shop
	payments       handler.PaymentProvider
	currency       string
	contextManager model.ContextManager
	logger         *logger.Logger
}

// New creates a Router. payments may be nil, in which case the payment
// endpoints are not mounted.
func New(
	authService *service.Auth,
	shopService *service.Shop,
	payments handler.PaymentProvider,
	currency string,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:    authService,
		shopService:    shopService,
		payments:       payments,
		currency:       currency,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Register builds the HTTP handler with logging, authentication and admin
// middleware applied per route.
func (r *Router) Register() http.Handler {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.authService, r.contextManager, r.logger)

	authed := func(h http.HandlerFunc) http.Handler {
		return authenticate.Handle(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authenticate.Handle(middleware.RequireAdmin(h))
	}

	root := mux.NewRouter()
	root.Use(logging.Handle)
	root.NotFoundHandler = logging.Handle(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusNotFound, response.Message{Message: "route not found"})
	}))
	root.MethodNotAllowedHandler = logging.Handle(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusMethodNotAllowed, response.Message{Message: "method not allowed"})
	}))

	api := root.PathPrefix(APIPrefix).Subrouter()

	authHandler := handler.NewAuth(r.authService, r.contextManager, r.logger)
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.Handle("/users/me", authed(authHandler.Me)).Methods(http.MethodGet)
	api.Handle("/users/profile", authed(authHandler.UpdateProfile)).Methods(http.MethodPut)

	shopHandler := handler.NewShop(r.shopService, r.contextManager, r.logger)
	api.HandleFunc("/products", shopHandler.Products).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", shopHandler.Product).Methods(http.MethodGet)
	api.Handle("/cart", authed(shopHandler.Cart)).Methods(http.MethodGet)
	api.Handle("/cart", authed(shopHandler.AddToCart)).Methods(http.MethodPost)
	api.Handle("/cart/{productId}", authed(shopHandler.UpdateCartItem)).Methods(http.MethodPut)
	api.Handle("/cart/{productId}", authed(shopHandler.RemoveCartItem)).Methods(http.MethodDelete)
	api.Handle("/wishlist", authed(shopHandler.Wishlist)).Methods(http.MethodGet)
	api.Handle("/wishlist", authed(shopHandler.AddToWishlist)).Methods(http.MethodPost)
	api.Handle("/wishlist/{productId}", authed(shopHandler.RemoveWishlistItem)).Methods(http.MethodDelete)
	api.Handle("/orders", authed(shopHandler.CreateOrder)).Methods(http.MethodPost)
	api.Handle("/orders/my", authed(shopHandler.MyOrders)).Methods(http.MethodGet)

	adminHandler := handler.NewAdmin(r.shopService, r.authService, r.logger)
	api.Handle("/admin/orders", admin(adminHandler.Orders)).Methods(http.MethodGet)
	api.Handle("/admin/orders/{id}/status", admin(adminHandler.UpdateOrderStatus)).Methods(http.MethodPut)
	api.Handle("/admin/users", admin(adminHandler.Users)).Methods(http.MethodGet)
	api.Handle("/admin/users/{id}/block", admin(adminHandler.BlockUser)).Methods(http.MethodPut)

	if r.payments != nil {
		paymentHandler := handler.NewPayment(r.payments, r.currency, r.logger)
		api.Handle("/payments/paypal/create", authed(paymentHandler.Create)).Methods(http.MethodPost)
		api.Handle("/payments/paypal/capture/{id}", authed(paymentHandler.Capture)).Methods(http.MethodPost)
	}

	return root
}
