package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omnisouq/gateway/internal/bootstrap"
	"github.com/omnisouq/gateway/internal/idempotency"
	"github.com/omnisouq/gateway/internal/infrastructure/orders"
	infraRedis "github.com/omnisouq/gateway/internal/infrastructure/redis"
	"github.com/omnisouq/gateway/internal/providers"
	"github.com/omnisouq/gateway/internal/repository/postgres"
	"github.com/omnisouq/gateway/internal/service"
)

// The worker runs the two background loops: the reconciler that settles stuck
// payments and shipments against the providers, and the webhook sweep that
// retries events whose first processing attempt failed.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "gateway-worker", "gateway_worker")
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
	reconciler := service.NewReconciler(
		intentRepo, shipmentRepo, paymentService, shippingService, app.Metrics,
		app.Config.Reconciler.GraceWindow, app.Config.Reconciler.BatchSize, app.Logger,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Reconciler loop.
	g.Go(func() error {
		return reconciler.Run(gCtx, app.Config.Reconciler.Interval)
	})

	// 2. Webhook sweep loop.
	g.Go(func() error {
		return runWebhookSweep(gCtx, app, webhookService)
	})

	// 3. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func runWebhookSweep(ctx context.Context, app *bootstrap.App, webhookService *service.WebhookService) error {
	interval := app.Config.Webhook.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		settled, err := webhookService.SweepUnprocessed(ctx, app.Config.Webhook.SweepBatch)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Webhook sweep error")
			continue
		}
		if settled > 0 {
			app.Logger.Info().Int("settled", settled).Msg("Webhook sweep completed")
		}
	}
}
