// Package config defines the top-level configuration for the triangular
// arbitrage service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/scale"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRIARB_* environment variables.
type Config struct {
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	Log      LogConfig      `toml:"log"`
	Triangle TriangleConfig `toml:"triangle"`
	Feed     FeedConfig     `toml:"feed"`
	Engine   EngineConfig   `toml:"engine"`
	Replay   ReplayConfig   `toml:"replay"`
	Bench    BenchConfig    `toml:"bench"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Server   ServerConfig   `toml:"server"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// LogConfig controls the optional rotating log file. Stdout logging is
// always on.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// PairConfig is the fixed-point definition of one pair. Prices are already
// multiplied by ScaleFactor.
type PairConfig struct {
	Symbol      string `toml:"symbol"`
	ScaleFactor int64  `toml:"scale_factor"`
	MinPrice    int64  `toml:"min_price"`
	MaxPrice    int64  `toml:"max_price"`
	LotFactor   int64  `toml:"lot_factor"`
	MaxQuantity int64  `toml:"max_quantity"`
}

// Scale converts the config into the runtime pair definition.
func (p PairConfig) Scale() scale.Pair {
	return scale.Pair{
		Symbol:      p.Symbol,
		Factor:      p.ScaleFactor,
		MinPrice:    domain.Price(p.MinPrice),
		MaxPrice:    domain.Price(p.MaxPrice),
		LotFactor:   p.LotFactor,
		MaxQuantity: domain.Quantity(p.MaxQuantity),
	}
}

// TriangleConfig defines the three pairs and the profit model.
// Pair1 is A/quote, Pair2 is B/quote and Pair3 is the A/B cross.
type TriangleConfig struct {
	Name            string     `toml:"name"`
	Pair1           PairConfig `toml:"pair1"`
	Pair2           PairConfig `toml:"pair2"`
	Pair3           PairConfig `toml:"pair3"`
	FeeRatePerLeg   float64    `toml:"fee_rate_per_leg"`
	MinProfitBps    float64    `toml:"min_profit_bps"`
	StartingCapital float64    `toml:"starting_capital"`
	// CrossDirection is "base_a" when pair3 prices A in B, "base_b" otherwise.
	CrossDirection string `toml:"cross_direction"`
}

// Pairs returns the three pair configs in leg order.
func (t TriangleConfig) Pairs() [3]PairConfig {
	return [3]PairConfig{t.Pair1, t.Pair2, t.Pair3}
}

// FeedConfig holds the market-data websocket parameters.
type FeedConfig struct {
	WSURL            string   `toml:"ws_url"`
	Channel          string   `toml:"channel"`
	ReconnectMin     duration `toml:"reconnect_min"`
	ReconnectMax     duration `toml:"reconnect_max"`
	HeartbeatTimeout duration `toml:"heartbeat_timeout"`
	HandshakeTimeout duration `toml:"handshake_timeout"`
}

// EngineConfig tunes the detection loop and its consumers.
type EngineConfig struct {
	// DetectInterval is the fallback cadence when no update wakes the loop.
	DetectInterval duration `toml:"detect_interval"`
	ViewInterval   duration `toml:"view_interval"`
	ViewDepth      int      `toml:"view_depth"`
	RecentSize     int      `toml:"recent_size"`
	NotifyCooldown duration `toml:"notify_cooldown"`
	NotifyPerMin   float64  `toml:"notify_per_min"`
	NotifyBurst    int      `toml:"notify_burst"`
}

// ReplayConfig points at one CSV file per pair.
type ReplayConfig struct {
	Pair1File    string `toml:"pair1_file"`
	Pair2File    string `toml:"pair2_file"`
	Pair3File    string `toml:"pair3_file"`
	ReportDir    string `toml:"report_dir"`
	UploadReport bool   `toml:"upload_report"`
	ReportPrefix string `toml:"report_prefix"`
}

// Files returns the replay inputs in leg order.
func (r ReplayConfig) Files() [3]string {
	return [3]string{r.Pair1File, r.Pair2File, r.Pair3File}
}

// BenchConfig sizes the latency harness.
type BenchConfig struct {
	Iterations int `toml:"iterations"`
	Warmup     int `toml:"warmup"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	StreamMaxLen int      `toml:"stream_max_len"`
	TopTTL       duration `toml:"top_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
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

// ServerConfig holds HTTP monitoring server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RatePerSec  float64  `toml:"rate_per_sec"`
	RateBurst   int      `toml:"rate_burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig controls the Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Defaults returns a Config populated with reasonable default values: the
// ETH-USD / BTC-USD / ETH-BTC triangle on Coinbase.
func Defaults() Config {
	return Config{
		Mode:     "live",
		LogLevel: "info",
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Triangle: TriangleConfig{
			Pair1: PairConfig{
				Symbol:      "ETH-USD",
				ScaleFactor: 10_000,
				MinPrice:    20_000_000,
				MaxPrice:    50_000_000,
				LotFactor:   100_000_000,
				MaxQuantity: 1_000_000 * 100_000_000,
			},
			Pair2: PairConfig{
				Symbol:      "BTC-USD",
				ScaleFactor: 10_000,
				MinPrice:    700_000_000,
				MaxPrice:    1_200_000_000,
				LotFactor:   100_000_000,
				MaxQuantity: 100_000 * 100_000_000,
			},
			Pair3: PairConfig{
				Symbol:      "ETH-BTC",
				ScaleFactor: 100_000_000,
				MinPrice:    2_000_000,
				MaxPrice:    6_000_000,
				LotFactor:   100_000_000,
				MaxQuantity: 1_000_000 * 100_000_000,
			},
			FeeRatePerLeg:   0.001,
			MinProfitBps:    2,
			StartingCapital: 1_000,
			CrossDirection:  "base_a",
		},
		Feed: FeedConfig{
			WSURL:            "wss://ws-feed.exchange.coinbase.com",
			Channel:          "level2_batch",
			ReconnectMin:     duration{500 * time.Millisecond},
			ReconnectMax:     duration{60 * time.Second},
			HeartbeatTimeout: duration{10 * time.Second},
			HandshakeTimeout: duration{15 * time.Second},
		},
		Engine: EngineConfig{
			DetectInterval: duration{100 * time.Millisecond},
			ViewInterval:   duration{500 * time.Millisecond},
			ViewDepth:      10,
			RecentSize:     200,
			NotifyCooldown: duration{30 * time.Second},
			NotifyPerMin:   6,
			NotifyBurst:    3,
		},
		Replay: ReplayConfig{
			ReportDir:    "reports",
			ReportPrefix: "replay",
		},
		Bench: BenchConfig{
			Iterations: 1_000_000,
			Warmup:     10_000,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10_000,
			TopTTL:       duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "triarb-reports",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"arb_detected", "feed_resync", "error"},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RatePerSec:  20,
			RateBurst:   40,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "triarb",
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"live":   true,
	"replay": true,
	"bench":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: live, replay, bench)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Triangle
	symbols := map[string]bool{}
	for i, p := range c.Triangle.Pairs() {
		if err := p.Scale().Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("triangle.pair%d: %v", i+1, err))
		}
		if symbols[p.Symbol] {
			errs = append(errs, fmt.Sprintf("triangle.pair%d: duplicate symbol %q", i+1, p.Symbol))
		}
		symbols[p.Symbol] = true
	}
	if c.Triangle.FeeRatePerLeg < 0 || c.Triangle.FeeRatePerLeg >= 1 {
		errs = append(errs, fmt.Sprintf("triangle: fee_rate_per_leg must be in [0,1), got %v", c.Triangle.FeeRatePerLeg))
	}
	if c.Triangle.StartingCapital <= 0 {
		errs = append(errs, "triangle: starting_capital must be > 0")
	}
	switch strings.ToLower(c.Triangle.CrossDirection) {
	case "", "base_a", "base_b":
	default:
		errs = append(errs, fmt.Sprintf("triangle: cross_direction must be base_a or base_b, got %q", c.Triangle.CrossDirection))
	}

	// Feed
	if mode == "live" {
		if c.Feed.WSURL == "" {
			errs = append(errs, "feed: ws_url must not be empty in live mode")
		}
		if c.Feed.ReconnectMin.Duration <= 0 || c.Feed.ReconnectMax.Duration < c.Feed.ReconnectMin.Duration {
			errs = append(errs, "feed: reconnect_min must be > 0 and <= reconnect_max")
		}
	}

	// Engine
	if c.Engine.DetectInterval.Duration <= 0 {
		errs = append(errs, "engine: detect_interval must be > 0")
	}
	if c.Engine.ViewDepth < 1 {
		errs = append(errs, "engine: view_depth must be >= 1")
	}
	if c.Engine.RecentSize < 1 {
		errs = append(errs, "engine: recent_size must be >= 1")
	}

	// Replay
	if mode == "replay" {
		for i, f := range c.Replay.Files() {
			if strings.TrimSpace(f) == "" {
				errs = append(errs, fmt.Sprintf("replay: pair%d_file must be set in replay mode", i+1))
			}
			if strings.HasPrefix(f, "s3://") && !c.S3.Enabled {
				errs = append(errs, fmt.Sprintf("replay: pair%d_file %s requires s3.enabled", i+1, f))
			}
		}
		if c.Replay.UploadReport && !c.S3.Enabled {
			errs = append(errs, "replay: upload_report requires s3.enabled")
		}
	}

	// Bench
	if mode == "bench" && c.Bench.Iterations < 1 {
		errs = append(errs, "bench: iterations must be >= 1")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
