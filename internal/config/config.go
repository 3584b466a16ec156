// Package config defines the top-level configuration for swapmarket and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/notify"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SWAPMARKET_* environment variables.
type Config struct {
	ICON     ICONConfig     `toml:"icon"`
	Market   MarketConfig   `toml:"market"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ICONConfig points at the JSON-RPC node and the exchange SCORE.
type ICONConfig struct {
	Endpoint string   `toml:"endpoint"`
	Exchange string   `toml:"exchange"`
	PageSize int      `toml:"page_size"`
	Timeout  duration `toml:"timeout"`
}

// MarketConfig selects the initial pair and the history window.
type MarketConfig struct {
	Base         string `toml:"base"`
	Quote        string `toml:"quote"`
	HistoryFetch int    `toml:"history_fetch"`
	HistoryKeep  int    `toml:"history_keep"`
}

// Pair returns the configured pair.
func (m MarketConfig) Pair() domain.Pair {
	return domain.Pair{
		Base:  domain.AssetID(strings.TrimSpace(m.Base)),
		Quote: domain.AssetID(strings.TrimSpace(m.Quote)),
	}
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	KeyPrefix   string   `toml:"key_prefix"`
	AssetTTL    duration `toml:"asset_ttl"`
	SnapshotTTL duration `toml:"snapshot_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters. Persistence of
// filled swaps is skipped in server and monitor modes when Enabled is false.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PipelineConfig controls the background refresh loop and archival.
type PipelineConfig struct {
	PollInterval       duration `toml:"poll_interval"`
	ArchiveCron        string   `toml:"archive_cron"`
	RetentionDays      int      `toml:"retention_days"`
	DeleteAfterArchive bool     `toml:"delete_after_archive"`
	LockTTL            duration `toml:"lock_ttl"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Addr        string   `toml:"addr"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is requests per RateWindow per client; 0 disables it.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds operator alert channels. With no channel configured
// alerts are dropped.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Cooldown          duration `toml:"cooldown"`
	// StaleAfter is the number of failed refreshes in a row that raise
	// market_stale.
	StaleAfter int `toml:"stale_after"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults for every field.
func Defaults() Config {
	return Config{
		ICON: ICONConfig{
			Endpoint: "https://ctz.solidwallet.io/api/v3",
			PageSize: 100,
			Timeout:  duration{30 * time.Second},
		},
		Market: MarketConfig{
			HistoryFetch: 600,
			HistoryKeep:  250,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    10,
			MaxRetries:  3,
			KeyPrefix:   "swapmarket:",
			AssetTTL:    duration{24 * time.Hour},
			SnapshotTTL: duration{10 * time.Minute},
		},
		Postgres: PostgresConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "swapmarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "swapmarket-archive",
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			PollInterval:  duration{10 * time.Second},
			ArchiveCron:   "0 3 * * *",
			RetentionDays: 30,
			LockTTL:       duration{30 * time.Minute},
		},
		Server: ServerConfig{
			Addr:       ":8080",
			RateWindow: duration{time.Second},
		},
		Notify: NotifyConfig{
			Cooldown:   duration{15 * time.Minute},
			StaleAfter: 3,
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"monitor": true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsPostgres reports whether mode cannot run without a database.
func NeedsPostgres(mode string) bool {
	switch strings.ToLower(mode) {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// NeedsS3 reports whether mode uploads to object storage.
func NeedsS3(mode string) bool {
	return NeedsPostgres(mode)
}

// RunsSession reports whether mode tracks a market.
func RunsSession(mode string) bool {
	return strings.ToLower(mode) != "archive"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, monitor, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// ICON and market are only needed when a session runs.
	if RunsSession(mode) {
		if u, err := url.Parse(c.ICON.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("icon: endpoint %q is not an absolute URL", c.ICON.Endpoint))
		}
		if strings.TrimSpace(c.ICON.Exchange) == "" {
			errs = append(errs, "icon: exchange must not be empty")
		}
		if c.ICON.PageSize < 1 || c.ICON.PageSize > 100 {
			errs = append(errs, fmt.Sprintf("icon: page_size must be 1-100, got %d", c.ICON.PageSize))
		}
		if c.ICON.Timeout.Duration <= 0 {
			errs = append(errs, "icon: timeout must be positive")
		}
		if err := c.Market.Pair().Validate(); err != nil {
			errs = append(errs, "market: "+err.Error())
		}
		if c.Market.HistoryFetch < 1 {
			errs = append(errs, "market: history_fetch must be >= 1")
		}
		if c.Market.HistoryKeep < 1 || c.Market.HistoryKeep > 250 {
			errs = append(errs, fmt.Sprintf("market: history_keep must be 1-250, got %d", c.Market.HistoryKeep))
		}
		if c.Pipeline.PollInterval.Duration <= 0 {
			errs = append(errs, "pipeline: poll_interval must be positive")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if NeedsPostgres(mode) && !c.Postgres.Enabled {
		errs = append(errs, "postgres: must be enabled for mode "+mode)
	}
	if c.Postgres.Enabled || NeedsPostgres(mode) {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3 and archival
	if NeedsS3(mode) {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if strings.TrimSpace(c.Pipeline.ArchiveCron) == "" {
			errs = append(errs, "pipeline: archive_cron must not be empty")
		}
		if c.Pipeline.RetentionDays < 0 {
			errs = append(errs, "pipeline: retention_days must be >= 0")
		}
	}

	// Server
	if mode == "server" || mode == "full" {
		if c.Server.Addr == "" {
			errs = append(errs, "server: addr must not be empty")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.DiscordWebhookURL != "" {
		if u, err := url.Parse(c.Notify.DiscordWebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "notify: discord_webhook_url is not an absolute URL")
		}
	}
	for _, e := range c.Notify.Events {
		if !slices.Contains(notify.KnownEvents, strings.TrimSpace(e)) {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q (valid: %s)", e, strings.Join(notify.KnownEvents, ", ")))
		}
	}
	if c.Notify.StaleAfter < 1 {
		errs = append(errs, "notify: stale_after must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
