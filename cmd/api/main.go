package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/omnisouq/gateway/internal/bootstrap"
	"github.com/omnisouq/gateway/internal/controller"
	"github.com/omnisouq/gateway/internal/idempotency"
	"github.com/omnisouq/gateway/internal/infrastructure/orders"
	infraRedis "github.com/omnisouq/gateway/internal/infrastructure/redis"
	"github.com/omnisouq/gateway/internal/providers"
	"github.com/omnisouq/gateway/internal/repository/postgres"
	"github.com/omnisouq/gateway/internal/service"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "gateway-api", "gateway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	intentRepo := postgres.NewIntentRepository(app.Pool)
	shipmentRepo := postgres.NewShipmentRepository(app.Pool)
	webhookRepo := postgres.NewWebhookRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Routing ---
	registry := bootstrap.NewRegionRegistry(app.Config)
	factory := bootstrap.NewProviderFactory(app.Config, app.Logger)
	router := providers.NewRouter(registry, factory)
	if err := router.CheckStartup(); err != nil {
		app.Logger.Fatal().Err(err).Msg("Region to provider binding check failed")
	}

	// --- Services ---
	var notifier service.OrderNotifier
	if app.Config.Orders.BaseURL != "" {
		notifier = orders.NewHTTPNotifier(app.Config.Orders, app.Logger)
	} else {
		app.Logger.Warn().Msg("orders.base_url not set, order callbacks are log-only")
		notifier = orders.NewLogNotifier(app.Logger)
	}

	locker := infraRedis.NewKeyLocker(
		app.Redis,
		app.Config.Payment.LockTTL,
		app.Config.Payment.LockRetries,
		app.Config.Payment.LockRetryDelay,
	)
	guard := idempotency.NewGuard(intentRepo, locker)
	lifecycle := service.NewLifecycle(intentRepo, shipmentRepo, txManager, notifier, app.Logger)

	paymentService := service.NewPaymentService(
		intentRepo, router, guard, lifecycle, app.Metrics,
		app.Config.Payment.CallbackBaseURL, app.Logger,
	)
	shippingService := service.NewShippingService(
		shipmentRepo, router, lifecycle, app.Metrics, app.Logger,
	)
	resolver := service.NewWebhookResolver(intentRepo, shipmentRepo, lifecycle)
	webhookService := service.NewWebhookService(
		webhookRepo, router, resolver, app.Metrics,
		app.Config.Webhook.MaxAttempts, app.Logger,
	)

	// --- Build router ---
	mux := controller.NewRouter(controller.RouterDeps{
		Pool:             app.Pool,
		RedisClient:      app.Redis,
		PaymentService:   paymentService,
		ShippingService:  shippingService,
		WebhookService:   webhookService,
		Metrics:          app.Metrics,
		CORSConfig:       app.Config.Server.CORS,
		WebhookRateLimit: app.Config.Webhook.RateLimit,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
