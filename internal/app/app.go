// Package app wires the storefront client together: durable state, identity,
// the API client behind a circuit breaker, the cart store and facade, the
// checkout orchestrator and the order tracker.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/laenvidiadelsur/storefront/pkg/httpclient"

	"github.com/laenvidiadelsur/storefront/internal/api"
	"github.com/laenvidiadelsur/storefront/internal/cart"
	"github.com/laenvidiadelsur/storefront/internal/checkout"
	"github.com/laenvidiadelsur/storefront/internal/config"
	"github.com/laenvidiadelsur/storefront/internal/facade"
	"github.com/laenvidiadelsur/storefront/internal/identity"
	"github.com/laenvidiadelsur/storefront/internal/tracker"
)

// App holds the wired storefront components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	rdb    *redis.Client

	identity      *identity.Provider
	cartStore     *cart.Store
	cartFacade    *facade.Facade
	orchestrator  *checkout.Orchestrator
	orderTracker  *tracker.Tracker
	metricsServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Durable client state lives in Redis.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	provider := identity.NewProvider(identity.NewRedisStore(rdb), logger)

	// One HTTP client behind a circuit breaker for the commerce API, a plain
	// one for the payment processor (its failures must surface verbatim, not
	// trip into fallbacks).
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.APITimeout(),
		MaxConnsPerHost: 100,
	})
	breakerClient := httpclient.NewCircuitBreakerClient(
		baseClient,
		httpclient.DefaultCircuitBreakerConfig("commerce-api"),
		logger,
	)

	apiClient := api.NewClient(cfg.APIBaseURL, breakerClient, provider, logger)

	cartStore := cart.NewStore(apiClient, provider, logger)
	notices := facade.NewNotificationQueue(facade.DefaultNotificationTTL)
	cartFacade := facade.New(cartStore, notices, facade.Pricing{
		FreeShippingThreshold: cfg.FreeShippingThresholdCents,
		FlatShippingFee:       cfg.FlatShippingFeeCents,
		TaxRateBps:            cfg.TaxRateBps,
	}, logger)

	gateway := checkout.NewProcessorGateway(cfg.PaymentProcessorURL, baseClient)
	orchestrator := checkout.NewOrchestrator(apiClient, gateway, cartStore, provider, logger)

	orderTracker := tracker.New(apiClient, cfg.OrderPollInterval(), logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:      metricsMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return &App{
		cfg:           cfg,
		logger:        logger,
		rdb:           rdb,
		identity:      provider,
		cartStore:     cartStore,
		cartFacade:    cartFacade,
		orchestrator:  orchestrator,
		orderTracker:  orderTracker,
		metricsServer: metricsServer,
	}, nil
}

// Identity returns the identity provider.
func (a *App) Identity() *identity.Provider { return a.identity }

// CartStore returns the cart store.
func (a *App) CartStore() *cart.Store { return a.cartStore }

// Cart returns the UI-level cart facade.
func (a *App) Cart() *facade.Facade { return a.cartFacade }

// Checkout returns the checkout orchestrator.
func (a *App) Checkout() *checkout.Orchestrator { return a.orchestrator }

// Tracker returns the order tracker.
func (a *App) Tracker() *tracker.Tracker { return a.orderTracker }

// Run starts the metrics endpoint, loads the cart, resumes tracking of a
// previously placed order if one is persisted, and blocks until the context
// is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting metrics endpoint",
			slog.String("addr", a.metricsServer.Addr),
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	a.cartStore.Load(ctx)

	lastOrderID, err := a.identity.LastOrderID(ctx)
	if err != nil {
		a.logger.Error("failed to read last order id", slog.String("error", err.Error()))
	} else if lastOrderID != "" {
		a.logger.Info("resuming order tracking", slog.String("order_id", lastOrderID))
		a.orderTracker.Start(ctx, lastOrderID)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	a.orderTracker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("metrics server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
