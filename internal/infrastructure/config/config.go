package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Regions       []RegionConfig      `mapstructure:"regions"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Orders        OrdersConfig        `mapstructure:"orders"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Reconciler    ReconcilerConfig    `mapstructure:"reconciler"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// RegionConfig binds a storefront region to its payment provider and carrier.
type RegionConfig struct {
	Code             string `mapstructure:"code"`
	Currency         string `mapstructure:"currency"`
	PaymentProvider  string `mapstructure:"payment_provider"`
	ShippingProvider string `mapstructure:"shipping_provider"`
	Active           bool   `mapstructure:"active"`
}

// ProvidersConfig carries credentials for every adapter. An empty credential
// block leaves that adapter unregistered; routing to it then fails at startup.
type ProvidersConfig struct {
	Razorpay RazorpayConfig `mapstructure:"razorpay"`
	Dibsy    DibsyConfig    `mapstructure:"dibsy"`
	Telr     TelrConfig     `mapstructure:"telr"`
	Moyasar  MoyasarConfig  `mapstructure:"moyasar"`
	OmanNet  OmanNetConfig  `mapstructure:"oman_net"`
	Aramex   AramexConfig   `mapstructure:"aramex"`
}

type RazorpayConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	KeyID         string        `mapstructure:"key_id"`
	KeySecret     string        `mapstructure:"key_secret"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type DibsyConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type TelrConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	StoreID       string        `mapstructure:"store_id"`
	AuthKey       string        `mapstructure:"auth_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type MoyasarConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type OmanNetConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	MerchantID    string        `mapstructure:"merchant_id"`
	TerminalID    string        `mapstructure:"terminal_id"`
	SecureKey     string        `mapstructure:"secure_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type AramexConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	AccountNumber string        `mapstructure:"account_number"`
	AccountPin    string        `mapstructure:"account_pin"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type PaymentConfig struct {
	CallbackBaseURL string        `mapstructure:"callback_base_url"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	LockRetries     int           `mapstructure:"lock_retries"`
	LockRetryDelay  time.Duration `mapstructure:"lock_retry_delay"`
}

// OrdersConfig points at the order service that receives payment outcome
// callbacks. An empty base URL downgrades callbacks to log entries, which is
// only acceptable outside production.
type OrdersConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WebhookConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
	RateLimit     int           `mapstructure:"rate_limit"`
}

type ReconcilerConfig struct {
	GraceWindow time.Duration `mapstructure:"grace_window"`
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/gateway")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Payment.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("payment.lock_ttl must be positive"))
	}
	if c.Webhook.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("webhook.max_attempts must be positive"))
	}
	if c.Reconciler.GraceWindow <= 0 {
		errs = append(errs, fmt.Errorf("reconciler.grace_window must be positive"))
	}
	if len(c.Regions) == 0 {
		errs = append(errs, fmt.Errorf("at least one region must be configured"))
	}

	seen := map[string]bool{}
	for i, r := range c.Regions {
		if len(r.Code) != 2 {
			errs = append(errs, fmt.Errorf("regions[%d].code must be a 2-letter code, got %q", i, r.Code))
		}
		if seen[r.Code] {
			errs = append(errs, fmt.Errorf("regions[%d].code %q is duplicated", i, r.Code))
		}
		seen[r.Code] = true
		if len(r.Currency) != 3 {
			errs = append(errs, fmt.Errorf("regions[%d].currency must be a 3-letter ISO code", i))
		}
		if r.Active && (r.PaymentProvider == "" || r.ShippingProvider == "") {
			errs = append(errs, fmt.Errorf("regions[%d] is active but has unbound providers", i))
		}
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Payment.CallbackBaseURL == "" {
			errs = append(errs, fmt.Errorf("payment.callback_base_url required in production"))
		}
		if c.Orders.BaseURL == "" {
			errs = append(errs, fmt.Errorf("orders.base_url required in production"))
		}
		for _, r := range c.Regions {
			if r.Active && c.webhookSecretFor(r.PaymentProvider) == "" {
				errs = append(errs, fmt.Errorf("providers.%s.webhook_secret required in production for active region %s", r.PaymentProvider, r.Code))
			}
		}
	}

	return errors.Join(errs...)
}

func (c *Config) webhookSecretFor(provider string) string {
	switch provider {
	case "razorpay":
		return c.Providers.Razorpay.WebhookSecret
	case "dibsy":
		return c.Providers.Dibsy.WebhookSecret
	case "telr":
		return c.Providers.Telr.WebhookSecret
	case "moyasar":
		return c.Providers.Moyasar.WebhookSecret
	case "oman_net":
		return c.Providers.OmanNet.WebhookSecret
	default:
		return ""
	}
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gateway")
	v.SetDefault("database.database", "gateway")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Region defaults cover the five storefronts; deployments override per
	// environment.
	v.SetDefault("regions", []map[string]any{
		{"code": "IN", "currency": "INR", "payment_provider": "razorpay", "shipping_provider": "aramex", "active": true},
		{"code": "QA", "currency": "QAR", "payment_provider": "dibsy", "shipping_provider": "aramex", "active": true},
		{"code": "AE", "currency": "AED", "payment_provider": "telr", "shipping_provider": "aramex", "active": true},
		{"code": "SA", "currency": "SAR", "payment_provider": "moyasar", "shipping_provider": "aramex", "active": true},
		{"code": "OM", "currency": "OMR", "payment_provider": "oman_net", "shipping_provider": "aramex", "active": true},
	})

	// Provider defaults
	v.SetDefault("providers.razorpay.timeout", "15s")
	v.SetDefault("providers.dibsy.timeout", "15s")
	v.SetDefault("providers.telr.timeout", "15s")
	v.SetDefault("providers.moyasar.timeout", "15s")
	v.SetDefault("providers.oman_net.timeout", "15s")
	v.SetDefault("providers.aramex.timeout", "20s")

	// Payment defaults
	v.SetDefault("payment.callback_base_url", "http://localhost:8080")
	v.SetDefault("payment.lock_ttl", "30s")
	v.SetDefault("payment.lock_retries", 20)
	v.SetDefault("payment.lock_retry_delay", "250ms")

	// Orders defaults
	v.SetDefault("orders.timeout", "10s")

	// Webhook defaults
	v.SetDefault("webhook.max_attempts", 5)
	v.SetDefault("webhook.sweep_interval", "30s")
	v.SetDefault("webhook.sweep_batch", 100)
	v.SetDefault("webhook.rate_limit", 100)

	// Reconciler defaults
	v.SetDefault("reconciler.grace_window", "10m")
	v.SetDefault("reconciler.interval", "1m")
	v.SetDefault("reconciler.batch_size", 50)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "gateway-1")
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
