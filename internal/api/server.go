package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaidashi/storefront-orders/internal/config"
	"github.com/vaidashi/storefront-orders/internal/service"
	"github.com/vaidashi/storefront-orders/pkg/circuitbreaker"
	"github.com/vaidashi/storefront-orders/pkg/logger"
	"github.com/vaidashi/storefront-orders/pkg/middleware"
)

// HealthCheck pings one backing service
type HealthCheck func(ctx context.Context) error

// OutboxAdmin is the operator side of the order event outbox
type OutboxAdmin interface {
	RequeueFailed(ctx context.Context) (int64, error)
}

// Dependencies are the services the HTTP layer exposes
type Dependencies struct {
	Orders  *service.OrderService
	Carts   *service.CartService
	Auth    *service.AuthService
	Catalog *service.CatalogService

	// DocStoreBreaker guards the document store client
	DocStoreBreaker *circuitbreaker.CircuitBreaker
	// Outbox is nil when order events are not persisted
	Outbox       OutboxAdmin
	HealthChecks map[string]HealthCheck
}

type Server struct {
	config              *config.Config
	logger              logger.Logger
	router              *mux.Router
	httpServer          *http.Server
	orders              *service.OrderService
	carts               *service.CartService
	auth                *service.AuthService
	catalog             *service.CatalogService
	breaker             *circuitbreaker.CircuitBreaker
	outbox              OutboxAdmin
	healthChecks        map[string]HealthCheck
	rateLimiter         *middleware.RateLimiterMiddleware
	endpointRateLimiter *middleware.EndpointRateLimiterMiddleware
	degradation         *middleware.GracefulDegradation
}

// NewServer creates the API server over deps
func NewServer(cfg *config.Config, deps Dependencies, logger logger.Logger) *Server {
	r := mux.NewRouter()

	s := &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:       logger,
		config:       cfg,
		orders:       deps.Orders,
		carts:        deps.Carts,
		auth:         deps.Auth,
		catalog:      deps.Catalog,
		breaker:      deps.DocStoreBreaker,
		outbox:       deps.Outbox,
		healthChecks: deps.HealthChecks,
		rateLimiter: middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
			GlobalMaxTokens:   cfg.RateLimit.GlobalMaxTokens,
			GlobalRefillRate:  cfg.RateLimit.GlobalRate,
			IPMaxTokens:       cfg.RateLimit.IPMaxTokens,
			IPRefillRate:      cfg.RateLimit.IPRate,
			TrustForwardedFor: cfg.RateLimit.TrustForwarded,
		}, logger),
		endpointRateLimiter: middleware.NewEndpointRateLimiterMiddleware(
			cfg.RateLimit.AuthMaxTokens,
			cfg.RateLimit.AuthRate,
			cfg.RateLimit.TrustForwarded,
			logger,
		),
	}

	// Logout only touches the session store, so it stays up with the store circuit open
	if deps.DocStoreBreaker != nil {
		s.degradation = middleware.NewGracefulDegradation(deps.DocStoreBreaker,
			[]string{"/api/v1/health", "/api/v1/admin", "/api/v1/auth/logout"}, logger)
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the limiters
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.rateLimiter.Stop()
	s.endpointRateLimiter.Stop()
	return err
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Metrics)

	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimiter.Middleware)
	if s.degradation != nil {
		api.Use(s.degradation.Middleware)
	}

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Auth attempts get their own stricter per-client limit
	authRoutes := api.PathPrefix("/auth").Subrouter()
	authRoutes.Handle("/register", s.endpointRateLimiter.Middleware(http.HandlerFunc(s.registerHandler))).Methods(http.MethodPost)
	authRoutes.Handle("/login", s.endpointRateLimiter.Middleware(http.HandlerFunc(s.loginHandler))).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", s.logoutHandler).Methods(http.MethodPost)

	api.HandleFunc("/products", s.listProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.getProductHandler).Methods(http.MethodGet)

	user := api.PathPrefix("/users/{userId}").Subrouter()
	user.Use(s.requireSession)

	user.HandleFunc("/cart", s.getCartHandler).Methods(http.MethodGet)
	user.HandleFunc("/cart", s.addToCartHandler).Methods(http.MethodPost)
	user.HandleFunc("/cart", s.clearCartHandler).Methods(http.MethodDelete)
	user.HandleFunc("/cart/{productId}", s.updateCartLineHandler).Methods(http.MethodPatch)
	user.HandleFunc("/cart/{productId}", s.removeCartLineHandler).Methods(http.MethodDelete)

	user.HandleFunc("/profile", s.updateProfileHandler).Methods(http.MethodPut)

	user.HandleFunc("/orders", s.getOrdersHandler).Methods(http.MethodGet)
	user.HandleFunc("/orders", s.placeOrderHandler).Methods(http.MethodPost)
	user.HandleFunc("/orders/direct", s.placeDirectOrderHandler).Methods(http.MethodPost)
	user.HandleFunc("/orders/{orderId}/cancel", s.cancelOrderHandler).Methods(http.MethodPost)

	// Admin API for monitoring and management
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatusHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/outbox/requeue", s.requeueOutboxHandler).Methods(http.MethodPost)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
