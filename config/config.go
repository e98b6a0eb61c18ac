package config

import (
	"fmt"
	"strings"
	"time"
	// zone database for orders.default_time_zone and sales report time zones
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config application-wide configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Referral ReferralConfig `mapstructure:"referral"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Orders   OrdersConfig   `mapstructure:"orders"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port           int        `mapstructure:"port"`
	BaseURL        string     `mapstructure:"base_url"`
	BodyLimitBytes int64      `mapstructure:"body_limit_bytes"`
	CORS           CORSConfig `mapstructure:"cors"`
}

// CORSConfig cross-origin settings
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL settings
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// DSN builds the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig cache settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig bearer token settings. Tokens are issued by the storefront's
// auth service; this service only verifies them (and mints them for rxctl).
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReferralConfig referral code and lead pipeline settings
type ReferralConfig struct {
	CodeMaxAttempts       int           `mapstructure:"code_max_attempts"`
	EnforceTransitions    bool          `mapstructure:"enforce_transitions"`
	ContactFormRateLimit  int           `mapstructure:"contact_form_rate_limit"`
	ContactFormRateWindow time.Duration `mapstructure:"contact_form_rate_window"`
	DashboardStaleAfter   time.Duration `mapstructure:"dashboard_stale_after"`
}

// LedgerConfig credit ledger settings
type LedgerConfig struct {
	DefaultCurrency string        `mapstructure:"default_currency"`
	SummaryCacheTTL time.Duration `mapstructure:"summary_cache_ttl"`
	SnowflakeNode   int64         `mapstructure:"snowflake_node"`
}

// OrdersConfig order intake settings
type OrdersConfig struct {
	TaxRate          float64       `mapstructure:"tax_rate"`
	TotalTolerance   float64       `mapstructure:"total_tolerance"`
	DefaultTimeZone  string        `mapstructure:"default_time_zone"`
	CreateRateLimit  int           `mapstructure:"create_rate_limit"`
	CreateRateWindow time.Duration `mapstructure:"create_rate_window"`
	// storefront order history collaborator; empty URL disables the merge
	ExternalURL      string        `mapstructure:"external_url"`
	ExternalAPIKey   string        `mapstructure:"external_api_key"`
	ExternalTimeout  time.Duration `mapstructure:"external_timeout"`
}

// Load reads configuration from file and environment.
// Priority: environment > config file > defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── defaults ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.body_limit_bytes", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "rx_storefront")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// no usable default; registered so RX_AUTH_JWT_SECRET alone is enough
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "rx-storefront")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("referral.code_max_attempts", 10)
	v.SetDefault("referral.enforce_transitions", false)
	v.SetDefault("referral.contact_form_rate_limit", 5)
	v.SetDefault("referral.contact_form_rate_window", "10m")
	v.SetDefault("referral.dashboard_stale_after", "30s")

	v.SetDefault("ledger.default_currency", "USD")
	v.SetDefault("ledger.summary_cache_ttl", "30s")
	v.SetDefault("ledger.snowflake_node", 1)

	v.SetDefault("orders.tax_rate", 0.0)
	v.SetDefault("orders.total_tolerance", 0.01)
	v.SetDefault("orders.default_time_zone", "America/Los_Angeles")
	v.SetDefault("orders.create_rate_limit", 20)
	v.SetDefault("orders.create_rate_window", "1m")
	v.SetDefault("orders.external_url", "")
	v.SetDefault("orders.external_api_key", "")
	v.SetDefault("orders.external_timeout", "5s")

	// ── config file ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── environment ──
	v.SetEnvPrefix("RX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// no config file: defaults and environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings the service cannot run without
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("invalid config: auth.jwt_secret must not be empty")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("invalid config: auth.jwt_secret must be at least 16 characters")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535")
	}
	if _, err := time.LoadLocation(c.Orders.DefaultTimeZone); err != nil {
		return fmt.Errorf("invalid config: orders.default_time_zone %q: %w", c.Orders.DefaultTimeZone, err)
	}
	if c.Orders.TaxRate < 0 {
		return fmt.Errorf("invalid config: orders.tax_rate must not be negative")
	}
	if c.Ledger.SnowflakeNode < 0 || c.Ledger.SnowflakeNode > 1023 {
		return fmt.Errorf("invalid config: ledger.snowflake_node must be between 0 and 1023")
	}
	return nil
}
