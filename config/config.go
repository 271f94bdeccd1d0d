package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BrowserModeRod    = "rod"
	BrowserModeStatic = "static"

	// FallbackPostalCode is used when neither the settings store nor the
	// environment provide one.
	FallbackPostalCode = "30301"
)

// Config is the full runtime configuration of the price updater.
type Config struct {
	Environment string          `json:"environment"`
	Database    DatabaseConfig  `json:"database"`
	HTTP        HTTPConfig      `json:"http"`
	Browser     BrowserConfig   `json:"browser"`
	Batch       BatchConfig     `json:"batch"`
	Timings     TimingsConfig   `json:"timings"`
	Redis       RedisConfig     `json:"redis"`
	Location    LocationConfig  `json:"location"`
	Vendors     []NamedStrategy `json:"vendors"`
}

type DatabaseConfig struct {
	// URL is a postgres:// DSN or a SQLite file path.
	URL string `json:"url"`
}

type HTTPConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	APIKey         string   `json:"api_key"`
	RequireAPIKey  bool     `json:"require_api_key"`
	// RateLimit is requests per second per client, 0 disables limiting.
	RateLimit      float64  `json:"rate_limit"`
	RequestTimeout Duration `json:"request_timeout"`
}

// Addr returns host:port for the HTTP listener.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type BrowserConfig struct {
	Mode      string `json:"mode"`
	ChromeBin string `json:"chrome_bin"`
	Headless  bool   `json:"headless"`
	UserAgent string `json:"user_agent"`
	// Static driver page cache.
	CacheSize int      `json:"cache_size"`
	CacheTTL  Duration `json:"cache_ttl"`
}

type BatchConfig struct {
	Concurrency       int    `json:"concurrency"`
	DefaultPostalCode string `json:"default_postal_code"`
	Currency          string `json:"currency"`
	// Schedule is an optional cron spec (with seconds) for serve mode.
	Schedule   string `json:"schedule"`
	NodePolicy string `json:"node_policy"`
}

// TimingsConfig mirrors scraper.Timings so it can be set from file or env.
type TimingsConfig struct {
	BaseNavigation     Duration `json:"base_navigation"`
	ProductNavigation  Duration `json:"product_navigation"`
	NamedNavigation    Duration `json:"named_navigation"`
	SteeringStep       Duration `json:"steering_step"`
	TriggerWait        Duration `json:"trigger_wait"`
	PostalInputWait    Duration `json:"postal_input_wait"`
	StoreButtonWait    Duration `json:"store_button_wait"`
	SteeringSettle     Duration `json:"steering_settle"`
	SelectorWait       Duration `json:"selector_wait"`
	ConfigSettle       Duration `json:"config_settle"`
	UniversalSettle    Duration `json:"universal_settle"`
	GenericSettle      Duration `json:"generic_settle"`
	GenericFieldSettle Duration `json:"generic_field_settle"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Stream   string `json:"stream"`
	MaxLen   int64  `json:"max_len"`
}

// LocationConfig holds the generic store/postal-code selectors used when a
// vendor has no config of its own.
type LocationConfig struct {
	Triggers     []string `json:"triggers"`
	PostalInputs []string `json:"postal_inputs"`
	StoreButtons []string `json:"store_buttons"`
}

// NamedStrategy declares a vendor matched by name or base URL pattern.
type NamedStrategy struct {
	Name           string   `json:"name"`
	NamePattern    string   `json:"name_pattern"`
	URLPattern     string   `json:"url_pattern"`
	PriceSelectors []string `json:"price_selectors"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			URL: "buildbank.db",
		},
		HTTP: HTTPConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
			RateLimit:      5,
			RequestTimeout: Duration(30 * time.Second),
		},
		Browser: BrowserConfig{
			Mode:      BrowserModeRod,
			Headless:  true,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			CacheSize: 128,
			CacheTTL:  Duration(10 * time.Minute),
		},
		Batch: BatchConfig{
			Concurrency:       1,
			DefaultPostalCode: FallbackPostalCode,
			Currency:          "USD",
			NodePolicy:        "min",
		},
		Timings: TimingsConfig{
			BaseNavigation:     Duration(20 * time.Second),
			ProductNavigation:  Duration(45 * time.Second),
			NamedNavigation:    Duration(30 * time.Second),
			SteeringStep:       Duration(8 * time.Second),
			TriggerWait:        Duration(3 * time.Second),
			PostalInputWait:    Duration(3 * time.Second),
			StoreButtonWait:    Duration(5 * time.Second),
			SteeringSettle:     Duration(2 * time.Second),
			SelectorWait:       Duration(8 * time.Second),
			ConfigSettle:       Duration(1500 * time.Millisecond),
			UniversalSettle:    Duration(time.Second),
			GenericSettle:      Duration(1200 * time.Millisecond),
			GenericFieldSettle: Duration(800 * time.Millisecond),
		},
		Redis: RedisConfig{
			Stream: "buildbank:runs",
			MaxLen: 1000,
		},
		Location: LocationConfig{
			Triggers: []string{
				`[data-automation-id*="store"]`,
				`[data-testid*="store"]`,
				`[aria-label*="store"]`,
				`[aria-label*="location"]`,
				`button:has-text('Store')`,
				`button:has-text('Location')`,
				`button:has-text('Pickup')`,
				`a:has-text('Store')`,
			},
			PostalInputs: []string{
				`input[name*="zip"]`,
				`input[placeholder*="Zip"]`,
				`input[aria-label*="Zip"]`,
				`input[type="search"]`,
				`input[type="text"]`,
			},
			StoreButtons: []string{
				`button:has-text("Select")`,
				`[data-automation-id*="store"] button`,
				`[data-testid*="store"] button`,
			},
		},
		Vendors: []NamedStrategy{
			{
				Name:        "homedepot",
				NamePattern: `(?i)home\s*depot`,
				URLPattern:  `(?i)homedepot\.com`,
				PriceSelectors: []string{
					`[data-automation-id="price"]`,
					`.price__dollars`,
					`.price__wrapper`,
					`.price-format__large`,
				},
			},
		},
	}
}

// Load builds the configuration: built-in defaults, then the optional JSON5
// file named by BUILDBANK_CONFIG (plus its .local override), then the
// environment.
func Load() (*Config, error) {
	// a missing .env is fine, the process environment still applies
	_ = godotenv.Load()

	cfg := Default()

	path := getEnv("BUILDBANK_CONFIG", "buildbank.json5")
	fileCfg, err := ReadConfig[Config](path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := cfg.merge(fileCfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("BUILDBANK_ENVIRONMENT", c.Environment)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)

	c.HTTP.Host = getEnv("HOST", c.HTTP.Host)
	c.HTTP.Port = getEnvInt("PORT", c.HTTP.Port)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.HTTP.AllowedOrigins = splitList(origins)
	}
	c.HTTP.APIKey = getEnv("API_KEY", c.HTTP.APIKey)
	c.HTTP.RequireAPIKey = getEnvBool("API_REQUIRE_KEY", c.HTTP.RequireAPIKey || c.HTTP.APIKey != "")
	c.HTTP.RateLimit = getEnvFloat("API_RATE_LIMIT", c.HTTP.RateLimit)
	c.HTTP.RequestTimeout = Duration(getEnvDuration("API_REQUEST_TIMEOUT", c.HTTP.RequestTimeout.Std()))

	c.Browser.Mode = getEnv("BROWSER_MODE", c.Browser.Mode)
	c.Browser.ChromeBin = getEnv("CHROME_BIN", c.Browser.ChromeBin)
	c.Browser.Headless = getEnvBool("BROWSER_HEADLESS", c.Browser.Headless)
	c.Browser.UserAgent = getEnv("BROWSER_USER_AGENT", c.Browser.UserAgent)

	c.Batch.Concurrency = getEnvInt("BATCH_CONCURRENCY", c.Batch.Concurrency)
	c.Batch.DefaultPostalCode = getEnv("DEFAULT_POSTAL_CODE", c.Batch.DefaultPostalCode)
	c.Batch.Currency = getEnv("PRICE_CURRENCY", c.Batch.Currency)
	c.Batch.Schedule = getEnv("BUILDBANK_SCHEDULE", c.Batch.Schedule)
	c.Batch.NodePolicy = getEnv("PRICE_NODE_POLICY", c.Batch.NodePolicy)

	c.Timings.ProductNavigation = Duration(getEnvDuration("PRODUCT_NAVIGATION_TIMEOUT", c.Timings.ProductNavigation.Std()))
	c.Timings.SelectorWait = Duration(getEnvDuration("SELECTOR_TIMEOUT", c.Timings.SelectorWait.Std()))

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.Stream = getEnv("REDIS_STREAM", c.Redis.Stream)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database url is required")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1, got %d", c.Batch.Concurrency)
	}
	switch c.Browser.Mode {
	case BrowserModeRod, BrowserModeStatic:
	default:
		return fmt.Errorf("unknown browser mode %q", c.Browser.Mode)
	}
	switch c.Batch.NodePolicy {
	case "min", "first":
	default:
		return fmt.Errorf("unknown price node policy %q", c.Batch.NodePolicy)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.HTTP.RateLimit < 0 {
		return errors.New("rate limit cannot be negative")
	}
	for _, v := range c.Vendors {
		if v.NamePattern == "" && v.URLPattern == "" {
			return fmt.Errorf("vendor strategy %q needs a name or url pattern", v.Name)
		}
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
