package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SWAPMARKET_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SWAPMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── ICON ──
	setStr(&cfg.ICON.Endpoint, "SWAPMARKET_ICON_ENDPOINT")
	setStr(&cfg.ICON.Exchange, "SWAPMARKET_ICON_EXCHANGE")
	setInt(&cfg.ICON.PageSize, "SWAPMARKET_ICON_PAGE_SIZE")
	setDuration(&cfg.ICON.Timeout, "SWAPMARKET_ICON_TIMEOUT")

	// ── Market ──
	setStr(&cfg.Market.Base, "SWAPMARKET_MARKET_BASE")
	setStr(&cfg.Market.Quote, "SWAPMARKET_MARKET_QUOTE")
	setInt(&cfg.Market.HistoryFetch, "SWAPMARKET_MARKET_HISTORY_FETCH")
	setInt(&cfg.Market.HistoryKeep, "SWAPMARKET_MARKET_HISTORY_KEEP")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SWAPMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SWAPMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SWAPMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SWAPMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SWAPMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SWAPMARKET_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "SWAPMARKET_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SWAPMARKET_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SWAPMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // platform alias
	setStr(&cfg.Postgres.Host, "SWAPMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SWAPMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SWAPMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SWAPMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SWAPMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SWAPMARKET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SWAPMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SWAPMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SWAPMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SWAPMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SWAPMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "SWAPMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SWAPMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SWAPMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SWAPMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SWAPMARKET_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.PollInterval, "SWAPMARKET_PIPELINE_POLL_INTERVAL")
	setStr(&cfg.Pipeline.ArchiveCron, "SWAPMARKET_PIPELINE_ARCHIVE_CRON")
	setInt(&cfg.Pipeline.RetentionDays, "SWAPMARKET_PIPELINE_RETENTION_DAYS")
	setBool(&cfg.Pipeline.DeleteAfterArchive, "SWAPMARKET_PIPELINE_DELETE_AFTER_ARCHIVE")

	// ── Server ──
	setStr(&cfg.Server.Addr, "SWAPMARKET_SERVER_ADDR")
	setStr(&cfg.Server.APIKey, "SWAPMARKET_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "SWAPMARKET_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "SWAPMARKET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SWAPMARKET_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SWAPMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SWAPMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SWAPMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SWAPMARKET_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Cooldown, "SWAPMARKET_NOTIFY_COOLDOWN")
	setInt(&cfg.Notify.StaleAfter, "SWAPMARKET_NOTIFY_STALE_AFTER")

	// ── Top-level ──
	setStr(&cfg.Mode, "SWAPMARKET_MODE")
	setStr(&cfg.LogLevel, "SWAPMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
