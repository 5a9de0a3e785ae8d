// Package bootstrap wires shared infrastructure for the gateway binaries.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/omnisouq/gateway/internal/domain/region"
	"github.com/omnisouq/gateway/internal/infrastructure/config"
	"github.com/omnisouq/gateway/internal/infrastructure/observability"
	infraRedis "github.com/omnisouq/gateway/internal/infrastructure/redis"
	"github.com/omnisouq/gateway/internal/providers"
	"github.com/omnisouq/gateway/internal/repository/postgres"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info().Str("service", serviceName).Msg("Starting")

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			go func() {
				<-ctx.Done()
				observability.Shutdown(context.Background(), tp)
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	metrics := observability.NewMetrics(metricsNamespace, nil)
	logger.Info().Msg("Metrics initialized")

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
	}, nil
}

func (a *App) Close() {
	a.Redis.Close()
	a.Pool.Close()
}

// NewRegionRegistry builds the immutable region table from configuration.
func NewRegionRegistry(cfg *config.Config) *region.Registry {
	configs := make([]region.Config, 0, len(cfg.Regions))
	for _, r := range cfg.Regions {
		configs = append(configs, region.Config{
			Code:             r.Code,
			Currency:         r.Currency,
			PaymentProvider:  r.PaymentProvider,
			ShippingProvider: r.ShippingProvider,
			IsActive:         r.Active,
		})
	}
	return region.NewRegistry(configs)
}

// NewProviderFactory registers every adapter whose credentials are configured.
// Adapters without credentials stay unregistered so the startup check catches
// a region bound to a provider this deployment cannot reach.
func NewProviderFactory(cfg *config.Config, logger zerolog.Logger) *providers.Factory {
	factory := providers.NewFactory()
	p := cfg.Providers

	if p.Razorpay.KeyID != "" {
		factory.RegisterPayment(providers.NewRazorpayProvider(providers.RazorpayConfig{
			BaseURL:       p.Razorpay.BaseURL,
			KeyID:         p.Razorpay.KeyID,
			KeySecret:     p.Razorpay.KeySecret,
			WebhookSecret: p.Razorpay.WebhookSecret,
			Timeout:       p.Razorpay.Timeout,
		}))
	}
	if p.Dibsy.SecretKey != "" {
		factory.RegisterPayment(providers.NewDibsyProvider(providers.DibsyConfig{
			BaseURL:       p.Dibsy.BaseURL,
			SecretKey:     p.Dibsy.SecretKey,
			WebhookSecret: p.Dibsy.WebhookSecret,
			Timeout:       p.Dibsy.Timeout,
		}))
	}
	if p.Telr.StoreID != "" {
		factory.RegisterPayment(providers.NewTelrProvider(providers.TelrConfig{
			BaseURL:       p.Telr.BaseURL,
			StoreID:       p.Telr.StoreID,
			AuthKey:       p.Telr.AuthKey,
			WebhookSecret: p.Telr.WebhookSecret,
			Timeout:       p.Telr.Timeout,
		}))
	}
	if p.Moyasar.SecretKey != "" {
		factory.RegisterPayment(providers.NewMoyasarProvider(providers.MoyasarConfig{
			BaseURL:       p.Moyasar.BaseURL,
			SecretKey:     p.Moyasar.SecretKey,
			WebhookSecret: p.Moyasar.WebhookSecret,
			Timeout:       p.Moyasar.Timeout,
		}))
	}
	if p.OmanNet.MerchantID != "" {
		factory.RegisterPayment(providers.NewOmanNetProvider(providers.OmanNetConfig{
			BaseURL:       p.OmanNet.BaseURL,
			MerchantID:    p.OmanNet.MerchantID,
			TerminalID:    p.OmanNet.TerminalID,
			SecureKey:     p.OmanNet.SecureKey,
			WebhookSecret: p.OmanNet.WebhookSecret,
			Timeout:       p.OmanNet.Timeout,
		}))
	}
	if p.Aramex.AccountNumber != "" {
		factory.RegisterShipping(providers.NewAramexProvider(providers.AramexConfig{
			BaseURL:       p.Aramex.BaseURL,
			AccountNumber: p.Aramex.AccountNumber,
			AccountPin:    p.Aramex.AccountPin,
			Username:      p.Aramex.Username,
			Password:      p.Aramex.Password,
			WebhookSecret: p.Aramex.WebhookSecret,
			Timeout:       p.Aramex.Timeout,
		}))
	}

	logger.Info().
		Strs("payment_providers", factory.PaymentNames()).
		Strs("shipping_providers", factory.ShippingNames()).
		Msg("Provider adapters registered")

	return factory
}
