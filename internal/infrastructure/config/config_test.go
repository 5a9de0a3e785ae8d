package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORS.AllowedOrigins)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)

	require.Len(t, cfg.Regions, 5)
	codes := make([]string, 0, 5)
	for _, r := range cfg.Regions {
		codes = append(codes, r.Code)
	}
	assert.ElementsMatch(t, []string{"IN", "QA", "AE", "SA", "OM"}, codes)

	assert.Equal(t, 30*time.Second, cfg.Payment.LockTTL)
	assert.Equal(t, 5, cfg.Webhook.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Reconciler.GraceWindow)
	assert.Equal(t, 10*time.Second, cfg.Orders.Timeout)
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_SERVER_PORT", "9090")
	t.Setenv("GATEWAY_DATABASE_HOST", "db.internal")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Host: "localhost", Port: 5432},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Regions: []RegionConfig{
			{Code: "QA", Currency: "QAR", PaymentProvider: "dibsy", ShippingProvider: "aramex", Active: true},
		},
		Payment:    PaymentConfig{LockTTL: 30 * time.Second},
		Webhook:    WebhookConfig{MaxAttempts: 5},
		Reconciler: ReconcilerConfig{GraceWindow: 10 * time.Minute},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"no regions", func(c *Config) { c.Regions = nil }, "at least one region"},
		{"bad region code", func(c *Config) { c.Regions[0].Code = "QAT" }, "2-letter code"},
		{"bad currency", func(c *Config) { c.Regions[0].Currency = "RIYAL" }, "3-letter ISO code"},
		{
			"duplicate region code",
			func(c *Config) { c.Regions = append(c.Regions, c.Regions[0]) },
			"duplicated",
		},
		{
			"active region without providers",
			func(c *Config) { c.Regions[0].PaymentProvider = "" },
			"unbound providers",
		},
		{"zero webhook attempts", func(c *Config) { c.Webhook.MaxAttempts = 0 }, "webhook.max_attempts"},
		{"zero grace window", func(c *Config) { c.Reconciler.GraceWindow = 0 }, "reconciler.grace_window"},
		{"zero lock ttl", func(c *Config) { c.Payment.LockTTL = 0 }, "payment.lock_ttl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// An inactive region may stay partially configured; only active regions must
// bind both providers.
func TestValidateAllowsInactiveRegionWithoutProviders(t *testing.T) {
	cfg := validConfig()
	cfg.Regions = append(cfg.Regions, RegionConfig{Code: "OM", Currency: "OMR"})
	assert.NoError(t, cfg.Validate())
}

func TestValidateProductionRequirements(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg := validConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.password")
	assert.Contains(t, err.Error(), "payment.callback_base_url")
	assert.Contains(t, err.Error(), "orders.base_url")
	assert.Contains(t, err.Error(), "providers.dibsy.webhook_secret")

	cfg.Database.Password = "secret"
	cfg.Payment.CallbackBaseURL = "https://gateway.omnisouq.com"
	cfg.Orders.BaseURL = "https://orders.internal"
	cfg.Providers.Dibsy.WebhookSecret = "whsec"
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "db", Port: 5432, User: "gw", Password: "pw", Database: "gateway", SSLMode: "require",
	}
	assert.Equal(t, "host=db port=5432 user=gw password=pw dbname=gateway sslmode=require", db.DSN())
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", r.Addr())
}
