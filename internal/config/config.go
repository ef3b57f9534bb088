package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"p2p-exchange-client/internal/logging"
	"p2p-exchange-client/internal/throttle"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	API         APIConfig         `mapstructure:"api"`
	Throttle    ThrottleConfig    `mapstructure:"throttle"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig selects the relational cache backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// PreferencesConfig locates the key-value preference file.
type PreferencesConfig struct {
	Path        string        `mapstructure:"path"`
	Passphrase  string        `mapstructure:"passphrase"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// APIConfig captures marketplace API connectivity.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	PerPage           int           `mapstructure:"per_page"`
	MaxPages          int           `mapstructure:"max_pages"`
}

// ThrottleConfig sets the default guard policy and per-operation overrides.
type ThrottleConfig struct {
	DefaultInterval time.Duration              `mapstructure:"default_interval"`
	Operations      map[string]throttle.Config `mapstructure:"operations"`
}

// AlertsConfig drives the background alert job.
type AlertsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	RequireNetwork bool          `mapstructure:"require_network"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	// LogNotifications delivers alerts to the log when Telegram is off.
	LogNotifications bool `mapstructure:"log_notifications"`
}

// ChannelConfigured reports whether any alert delivery channel is set up.
func (c AlertingConfig) ChannelConfigured() bool {
	return c.Telegram.Enabled || c.LogNotifications
}

// TelegramConfig describes Telegram notification parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig exposes the prometheus endpoint while `run` is active.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	// a missing .env is the common case
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("P2PCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "p2pclient")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/p2p.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("preferences.path", "data/preferences.db")
	v.SetDefault("preferences.open_timeout", "2s")

	v.SetDefault("api.base_url", "https://api.example-exchange.com/api")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.requests_per_second", 5.0)
	v.SetDefault("api.burst", 5)
	v.SetDefault("api.per_page", 50)
	v.SetDefault("api.max_pages", 10)

	v.SetDefault("throttle.default_interval", "1s")

	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.interval", "15m")
	v.SetDefault("alerts.backoff_initial", "30s")
	v.SetDefault("alerts.backoff_max", "15m")
	v.SetDefault("alerts.require_network", true)

	v.SetDefault("alerting.log_notifications", true)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9464")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path must be set for sqlite")
		}
	case "postgres", "postgresql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for postgres")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Preferences.Path == "" {
		return fmt.Errorf("preferences.path must be set")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be greater than zero")
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second cannot be negative")
	}
	if c.API.PerPage < 0 || c.API.MaxPages < 0 {
		return fmt.Errorf("api.per_page and api.max_pages cannot be negative")
	}
	if c.Throttle.DefaultInterval < 0 {
		return fmt.Errorf("throttle.default_interval cannot be negative")
	}
	if c.Alerts.BackoffInitial <= 0 {
		return fmt.Errorf("alerts.backoff_initial must be greater than zero")
	}
	if c.Alerts.BackoffMax < c.Alerts.BackoffInitial {
		return fmt.Errorf("alerts.backoff_max must not be below alerts.backoff_initial")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen must be set when metrics are enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// GuardConfig resolves the default throttle policy.
func (c *Config) GuardConfig() throttle.Config {
	cfg := throttle.DefaultConfig()
	if c.Throttle.DefaultInterval > 0 {
		cfg.Interval = c.Throttle.DefaultInterval
	}
	return cfg
}
