package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" validate:"omitempty,oneof=development production"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Encryption  EncryptionConfig `toml:"encryption"`
	OAuth       OAuthConfig     `toml:"oauth"`
	Providers   ProvidersConfig `toml:"providers"`
	Webhook     WebhookConfig   `toml:"webhook"`
	Notify      NotifyConfig    `toml:"notify"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// EncryptionConfig holds the key used to seal credential material at rest.
type EncryptionConfig struct {
	Key string `toml:"key" validate:"omitempty,len=64,hexadecimal"` // hex-encoded 32-byte key
}

// OAuthConfig is the app-level OAuth client for the tracker's token endpoint.
type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url"`
}

// ProvidersConfig tunes the tenant provider cache and outbound HTTP calls.
// The OAuth TTL is shorter than the static-token TTL because OAuth tokens can
// be invalidated server-side between requests while static tokens cannot.
type ProvidersConfig struct {
	OAuthCacheTTL    string `toml:"oauth_cache_ttl"`     // e.g. "4m"
	APITokenCacheTTL string `toml:"api_token_cache_ttl"` // e.g. "5m"
	HTTPTimeout      string `toml:"http_timeout"`        // e.g. "15s"
}

type WebhookConfig struct {
	DefaultSecret   string `toml:"default_secret"`   // environment-level secret for the "main" tenant
	FreshnessWindow string `toml:"freshness_window"` // e.g. "2m"
}

// NotifyConfig configures the outbound Discord DM client.
type NotifyConfig struct {
	Enabled    bool   `toml:"enabled"`
	BotToken   string `toml:"bot_token"`
	APIBaseURL string `toml:"api_base_url"`
}

// SchedulerConfig controls the background token refresh sweep.
type SchedulerConfig struct {
	Enabled        bool   `toml:"enabled"`
	Schedule       string `toml:"schedule"`        // cron expression
	RefreshHorizon string `toml:"refresh_horizon"` // refresh tokens expiring within this window
}

// NewDefaultConfig returns the built-in defaults, overridden by files and env.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/tessera",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Providers: ProvidersConfig{
			OAuthCacheTTL:    "4m",
			APITokenCacheTTL: "5m",
			HTTPTimeout:      "15s",
		},
		Webhook: WebhookConfig{
			FreshnessWindow: "2m",
		},
		Notify: NotifyConfig{
			APIBaseURL: "https://discord.com/api/v10",
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			Schedule:       "*/5 * * * *",
			RefreshHorizon: "10m",
		},
	}
}

// LoadFromFile loads configuration from a single TOML file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from defaults, then merges each config
// file in order (later files override earlier ones), then applies environment
// overrides, then validates.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides overrides config values from TESSERA_* environment
// variables. Environment wins over every file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TESSERA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("TESSERA_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("TESSERA_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("TESSERA_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("TESSERA_ENCRYPTION_KEY"); v != "" {
		config.Encryption.Key = v
	}
	if v := os.Getenv("TESSERA_OAUTH_CLIENT_ID"); v != "" {
		config.OAuth.ClientID = v
	}
	if v := os.Getenv("TESSERA_OAUTH_CLIENT_SECRET"); v != "" {
		config.OAuth.ClientSecret = v
	}
	if v := os.Getenv("TESSERA_OAUTH_TOKEN_URL"); v != "" {
		config.OAuth.TokenURL = v
	}
	if v := os.Getenv("TESSERA_WEBHOOK_SECRET"); v != "" {
		config.Webhook.DefaultSecret = v
	}
	if v := os.Getenv("TESSERA_DISCORD_BOT_TOKEN"); v != "" {
		config.Notify.BotToken = v
	}
}

// ApplyFlagOverrides applies command-line flag values. CLI wins over env.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the assembled configuration, including that every duration
// field parses.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"providers.oauth_cache_ttl":     c.Providers.OAuthCacheTTL,
		"providers.api_token_cache_ttl": c.Providers.APITokenCacheTTL,
		"providers.http_timeout":        c.Providers.HTTPTimeout,
		"webhook.freshness_window":      c.Webhook.FreshnessWindow,
		"scheduler.refresh_horizon":     c.Scheduler.RefreshHorizon,
	}
	for field, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", field, err)
		}
	}

	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// parseDuration returns the parsed duration or the fallback when the value is
// empty or malformed. Config validation already rejects malformed values; the
// fallback covers zero-value configs built directly in tests.
func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// OAuthCacheTTL returns the provider cache TTL for OAuth tenants.
func (c *ProvidersConfig) OAuthTTL() time.Duration {
	return parseDuration(c.OAuthCacheTTL, 4*time.Minute)
}

// APITokenTTL returns the provider cache TTL for static-token tenants.
func (c *ProvidersConfig) APITokenTTL() time.Duration {
	return parseDuration(c.APITokenCacheTTL, 5*time.Minute)
}

// Timeout returns the outbound HTTP timeout for provider calls.
func (c *ProvidersConfig) Timeout() time.Duration {
	return parseDuration(c.HTTPTimeout, 15*time.Second)
}

// Freshness returns the webhook comment freshness window.
func (c *WebhookConfig) Freshness() time.Duration {
	return parseDuration(c.FreshnessWindow, 2*time.Minute)
}

// Horizon returns the scheduler token refresh horizon.
func (c *SchedulerConfig) Horizon() time.Duration {
	return parseDuration(c.RefreshHorizon, 10*time.Minute)
}
