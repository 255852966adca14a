package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRIARB_* environment variable overrides, and
// returns the final Config. An empty path runs on defaults plus environment.
// The returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRIARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Log ──
	setStr(&cfg.Log.File, "TRIARB_LOG_FILE")
	setInt(&cfg.Log.MaxSizeMB, "TRIARB_LOG_MAX_SIZE_MB")
	setInt(&cfg.Log.MaxBackups, "TRIARB_LOG_MAX_BACKUPS")
	setInt(&cfg.Log.MaxAgeDays, "TRIARB_LOG_MAX_AGE_DAYS")
	setBool(&cfg.Log.Compress, "TRIARB_LOG_COMPRESS")

	// ── Triangle ──
	setStr(&cfg.Triangle.Name, "TRIARB_TRIANGLE_NAME")
	setPair(&cfg.Triangle.Pair1, "TRIARB_TRIANGLE_PAIR1")
	setPair(&cfg.Triangle.Pair2, "TRIARB_TRIANGLE_PAIR2")
	setPair(&cfg.Triangle.Pair3, "TRIARB_TRIANGLE_PAIR3")
	setFloat64(&cfg.Triangle.FeeRatePerLeg, "TRIARB_TRIANGLE_FEE_RATE_PER_LEG")
	setFloat64(&cfg.Triangle.MinProfitBps, "TRIARB_TRIANGLE_MIN_PROFIT_BPS")
	setFloat64(&cfg.Triangle.StartingCapital, "TRIARB_TRIANGLE_STARTING_CAPITAL")
	setStr(&cfg.Triangle.CrossDirection, "TRIARB_TRIANGLE_CROSS_DIRECTION")

	// ── Feed ──
	setStr(&cfg.Feed.WSURL, "TRIARB_FEED_WS_URL")
	setStr(&cfg.Feed.Channel, "TRIARB_FEED_CHANNEL")
	setDuration(&cfg.Feed.ReconnectMin, "TRIARB_FEED_RECONNECT_MIN")
	setDuration(&cfg.Feed.ReconnectMax, "TRIARB_FEED_RECONNECT_MAX")
	setDuration(&cfg.Feed.HeartbeatTimeout, "TRIARB_FEED_HEARTBEAT_TIMEOUT")
	setDuration(&cfg.Feed.HandshakeTimeout, "TRIARB_FEED_HANDSHAKE_TIMEOUT")

	// ── Engine ──
	setDuration(&cfg.Engine.DetectInterval, "TRIARB_ENGINE_DETECT_INTERVAL")
	setDuration(&cfg.Engine.ViewInterval, "TRIARB_ENGINE_VIEW_INTERVAL")
	setInt(&cfg.Engine.ViewDepth, "TRIARB_ENGINE_VIEW_DEPTH")
	setInt(&cfg.Engine.RecentSize, "TRIARB_ENGINE_RECENT_SIZE")
	setDuration(&cfg.Engine.NotifyCooldown, "TRIARB_ENGINE_NOTIFY_COOLDOWN")
	setFloat64(&cfg.Engine.NotifyPerMin, "TRIARB_ENGINE_NOTIFY_PER_MIN")
	setInt(&cfg.Engine.NotifyBurst, "TRIARB_ENGINE_NOTIFY_BURST")

	// ── Replay ──
	setStr(&cfg.Replay.Pair1File, "TRIARB_REPLAY_PAIR1_FILE")
	setStr(&cfg.Replay.Pair2File, "TRIARB_REPLAY_PAIR2_FILE")
	setStr(&cfg.Replay.Pair3File, "TRIARB_REPLAY_PAIR3_FILE")
	setStr(&cfg.Replay.ReportDir, "TRIARB_REPLAY_REPORT_DIR")
	setBool(&cfg.Replay.UploadReport, "TRIARB_REPLAY_UPLOAD_REPORT")
	setStr(&cfg.Replay.ReportPrefix, "TRIARB_REPLAY_REPORT_PREFIX")

	// ── Bench ──
	setInt(&cfg.Bench.Iterations, "TRIARB_BENCH_ITERATIONS")
	setInt(&cfg.Bench.Warmup, "TRIARB_BENCH_WARMUP")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRIARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRIARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRIARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRIARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRIARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRIARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRIARB_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.StreamMaxLen, "TRIARB_REDIS_STREAM_MAX_LEN")
	setDuration(&cfg.Redis.TopTTL, "TRIARB_REDIS_TOP_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRIARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRIARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "TRIARB_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "TRIARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRIARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRIARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRIARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRIARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRIARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRIARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRIARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRIARB_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRIARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRIARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRIARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRIARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRIARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRIARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRIARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRIARB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRIARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRIARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRIARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRIARB_SERVER_API_KEY")
	setFloat64(&cfg.Server.RatePerSec, "TRIARB_SERVER_RATE_PER_SEC")
	setInt(&cfg.Server.RateBurst, "TRIARB_SERVER_RATE_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRIARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRIARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRIARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRIARB_NOTIFY_EVENTS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "TRIARB_METRICS_ENABLED")
	setStr(&cfg.Metrics.Namespace, "TRIARB_METRICS_NAMESPACE")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRIARB_MODE")
	setStr(&cfg.LogLevel, "TRIARB_LOG_LEVEL")
}

// setPair applies the per-pair overrides that share a prefix, e.g.
// TRIARB_TRIANGLE_PAIR1_SYMBOL.
func setPair(dst *PairConfig, prefix string) {
	setStr(&dst.Symbol, prefix+"_SYMBOL")
	setInt64(&dst.ScaleFactor, prefix+"_SCALE_FACTOR")
	setInt64(&dst.MinPrice, prefix+"_MIN_PRICE")
	setInt64(&dst.MaxPrice, prefix+"_MAX_PRICE")
	setInt64(&dst.LotFactor, prefix+"_LOT_FACTOR")
	setInt64(&dst.MaxQuantity, prefix+"_MAX_QUANTITY")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
