// Package app wires the storefront together: configuration, database pool,
// repositories, domain services, provider clients and the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ironankr/storefront/internal/domain/cart"
	"github.com/ironankr/storefront/internal/domain/checkout"
	"github.com/ironankr/storefront/internal/domain/fulfillment"
	"github.com/ironankr/storefront/internal/domain/order"
	"github.com/ironankr/storefront/internal/httpapi"
	"github.com/ironankr/storefront/internal/repository"
	"github.com/ironankr/storefront/internal/shippo"
	"github.com/ironankr/storefront/internal/stripe"
	"github.com/ironankr/storefront/pkg/health"
	"github.com/ironankr/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Provider clients.
	stripeClient, err := stripe.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.BaseURL)
	if err != nil {
		return errors.Wrap(err, "create stripe client")
	}
	shippoClient, err := shippo.NewClient(cfg.Shippo.APIToken, cfg.Shippo.BaseURL)
	if err != nil {
		return errors.Wrap(err, "create shippo client")
	}

	// Domain services.
	cartService := cart.NewService(cartRepo, productRepo, cfg.Cart.TTL)
	checkoutService := checkout.NewService(cartRepo, stripeClient, checkout.Config{
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
	})
	materializer := order.NewMaterializer(cartRepo, orderRepo)
	fulfillmentService := fulfillment.NewService(orderRepo, productRepo, shippoClient, fulfillment.Address{
		Name:    cfg.ShipFrom.Name,
		Street1: cfg.ShipFrom.Street1,
		City:    cfg.ShipFrom.City,
		State:   cfg.ShipFrom.State,
		Zip:     cfg.ShipFrom.Zip,
		Country: cfg.ShipFrom.Country,
	})

	// HTTP handlers.
	h := httpapi.NewHandler(httpapi.Deps{
		Products:     productRepo,
		Carts:        cartService,
		Checkout:     checkoutService,
		Orders:       orderRepo,
		Materializer: materializer,
		Fulfillment:  fulfillmentService,
		Webhooks:     stripe.NewWebhookVerifier(cfg.Stripe.WebhookSecret, stripe.DefaultTolerance),
		APIKeys:      apikeyRepo,
		APIKeyPepper: cfg.APIKeyPepper,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpapi.APIKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
