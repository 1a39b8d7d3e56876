package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	HTTP           HTTPConfig
	Gateway        GatewayConfig
	Identity       IdentityConfig
	Telephony      TelephonyConfig
	Payments       PaymentsConfig
	Reconciliation ReconciliationConfig
	Recovery       RecoveryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// GatewayConfig holds payment gateway settings
type GatewayConfig struct {
	// DefaultFamily is the rail new authorizations route to: CARD or WALLET.
	DefaultFamily string

	// Card rail (Stripe)
	StripeAPIKey            string
	StripePlatformAccountID string

	// Wallet rail (signed HTTP)
	WalletEndpoint   string
	WalletMerchantID string
	WalletAPISecret  string

	// Circuit breaker parameters applied to every gateway call
	BreakerFailureThreshold int
	BreakerResetTimeout     time.Duration
	BreakerPerCallTimeout   time.Duration
}

// IdentityConfig holds the identity/verification collaborator settings
type IdentityConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// TelephonyConfig holds the call establishment collaborator settings,
// used only to probe session liveness before orphan sweeps.
type TelephonyConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// PaymentsConfig holds payment orchestration settings
type PaymentsConfig struct {
	// Per-currency authorization bounds, minor units
	MinAmounts map[string]int64
	MaxAmounts map[string]int64

	LockValidity time.Duration

	// Sliding-window per-client authorization rate limit
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// ReconciliationConfig holds reconciliation sweep settings
type ReconciliationConfig struct {
	Enabled  bool
	Interval time.Duration
	// MinBillableDuration is the minimum completed-session duration that
	// qualifies a payment for auto-capture.
	MinBillableDuration time.Duration
	// RefundAge is how old an uncaptured authorization must be before it
	// is auto-cancelled.
	RefundAge time.Duration
	// OrphanAge is how long a session may sit in a non-terminal,
	// non-live state before the orphan sweep considers it.
	OrphanAge time.Duration
}

// RecoveryConfig holds stuck-transfer recovery settings
type RecoveryConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with CONSULTPAY_ prefix
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CONSULTPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Gateway: GatewayConfig{
			DefaultFamily:           v.GetString("gateway.default_family"),
			StripeAPIKey:            v.GetString("gateway.stripe_api_key"),
			StripePlatformAccountID: v.GetString("gateway.stripe_platform_account_id"),
			WalletEndpoint:          v.GetString("gateway.wallet_endpoint"),
			WalletMerchantID:        v.GetString("gateway.wallet_merchant_id"),
			WalletAPISecret:         v.GetString("gateway.wallet_api_secret"),
			BreakerFailureThreshold: v.GetInt("gateway.breaker_failure_threshold"),
			BreakerResetTimeout:     v.GetDuration("gateway.breaker_reset_timeout"),
			BreakerPerCallTimeout:   v.GetDuration("gateway.breaker_per_call_timeout"),
		},
		Identity: IdentityConfig{
			BaseURL:  v.GetString("identity.base_url"),
			APIToken: v.GetString("identity.api_token"),
			Timeout:  v.GetDuration("identity.timeout"),
		},
		Telephony: TelephonyConfig{
			BaseURL:  v.GetString("telephony.base_url"),
			APIToken: v.GetString("telephony.api_token"),
			Timeout:  v.GetDuration("telephony.timeout"),
		},
		Payments: PaymentsConfig{
			MinAmounts:        toMinorUnitMap(v.GetStringMapString("payments.min_amounts")),
			MaxAmounts:        toMinorUnitMap(v.GetStringMapString("payments.max_amounts")),
			LockValidity:      v.GetDuration("payments.lock_validity"),
			RateLimitRequests: v.GetInt("payments.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("payments.rate_limit_window"),
		},
		Reconciliation: ReconciliationConfig{
			Enabled:             v.GetBool("reconciliation.enabled"),
			Interval:            v.GetDuration("reconciliation.interval"),
			MinBillableDuration: v.GetDuration("reconciliation.min_billable_duration"),
			RefundAge:           v.GetDuration("reconciliation.refund_age"),
			OrphanAge:           v.GetDuration("reconciliation.orphan_age"),
		},
		Recovery: RecoveryConfig{
			Enabled:  v.GetBool("recovery.enabled"),
			Interval: v.GetDuration("recovery.interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// toMinorUnitMap parses per-currency amounts from config strings.
func toMinorUnitMap(in map[string]string) map[string]int64 {
	out := make(map[string]int64, len(in))
	for currency, raw := range in {
		var minor int64
		if _, err := fmt.Sscan(raw, &minor); err == nil {
			out[strings.ToUpper(currency)] = minor
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "consultpay-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "consultpay"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Gateway.DefaultFamily == "" {
		cfg.Gateway.DefaultFamily = "CARD"
	}
	if cfg.Gateway.BreakerFailureThreshold == 0 {
		cfg.Gateway.BreakerFailureThreshold = 5
	}
	if cfg.Gateway.BreakerResetTimeout == 0 {
		cfg.Gateway.BreakerResetTimeout = 30 * time.Second
	}
	if cfg.Gateway.BreakerPerCallTimeout == 0 {
		cfg.Gateway.BreakerPerCallTimeout = 15 * time.Second
	}
	if cfg.Identity.BaseURL == "" {
		cfg.Identity.BaseURL = "http://localhost:8081"
	}
	if cfg.Identity.Timeout == 0 {
		cfg.Identity.Timeout = 10 * time.Second
	}
	if cfg.Telephony.BaseURL == "" {
		cfg.Telephony.BaseURL = "http://localhost:8082"
	}
	if cfg.Telephony.Timeout == 0 {
		cfg.Telephony.Timeout = 10 * time.Second
	}
	if len(cfg.Payments.MinAmounts) == 0 {
		cfg.Payments.MinAmounts = map[string]int64{"USD": 500, "EUR": 500}
	}
	if len(cfg.Payments.MaxAmounts) == 0 {
		cfg.Payments.MaxAmounts = map[string]int64{"USD": 50000, "EUR": 50000}
	}
	if cfg.Payments.LockValidity == 0 {
		cfg.Payments.LockValidity = 10 * time.Minute
	}
	if cfg.Payments.RateLimitRequests == 0 {
		cfg.Payments.RateLimitRequests = 10
	}
	if cfg.Payments.RateLimitWindow == 0 {
		cfg.Payments.RateLimitWindow = time.Minute
	}
	if cfg.Reconciliation.Interval == 0 {
		cfg.Reconciliation.Interval = 5 * time.Minute
	}
	if cfg.Reconciliation.MinBillableDuration == 0 {
		cfg.Reconciliation.MinBillableDuration = 60 * time.Second
	}
	if cfg.Reconciliation.RefundAge == 0 {
		cfg.Reconciliation.RefundAge = 24 * time.Hour
	}
	if cfg.Reconciliation.OrphanAge == 0 {
		cfg.Reconciliation.OrphanAge = 2 * time.Hour
	}
	if cfg.Recovery.Interval == 0 {
		cfg.Recovery.Interval = 15 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Gateway.DefaultFamily != "CARD" && c.Gateway.DefaultFamily != "WALLET" {
		return fmt.Errorf("gateway.default_family must be CARD or WALLET, got %q", c.Gateway.DefaultFamily)
	}
	for currency, minAmount := range c.Payments.MinAmounts {
		if maxAmount, ok := c.Payments.MaxAmounts[currency]; ok && minAmount > maxAmount {
			return fmt.Errorf("payments: min amount exceeds max amount for %s", currency)
		}
	}

	if c.App.Env == "production" {
		if c.Gateway.StripeAPIKey == "" && c.Gateway.WalletAPISecret == "" {
			return fmt.Errorf("at least one gateway must be configured in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
