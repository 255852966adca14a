package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "paper"
	cfg.Triangle.FeeRatePerLeg = 1
	cfg.Triangle.Pair2.Symbol = cfg.Triangle.Pair1.Symbol
	cfg.Triangle.Pair3.MinPrice = cfg.Triangle.Pair3.MaxPrice + 1
	cfg.Engine.ViewDepth = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		`unknown mode "paper"`,
		"fee_rate_per_leg",
		"duplicate symbol",
		"triangle.pair3",
		"view_depth",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidateModeSpecific(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"replay needs files", func(c *Config) { c.Mode = "replay" }, "pair1_file"},
		{"upload needs s3", func(c *Config) {
			c.Mode = "replay"
			c.Replay = ReplayConfig{Pair1File: "a", Pair2File: "b", Pair3File: "c", UploadReport: true}
		}, "upload_report"},
		{"bucket input needs s3", func(c *Config) {
			c.Mode = "replay"
			c.Replay = ReplayConfig{Pair1File: "s3://in/eth.csv", Pair2File: "b", Pair3File: "c"}
		}, "pair1_file s3://in/eth.csv requires s3.enabled"},
		{"bench iterations", func(c *Config) {
			c.Mode = "bench"
			c.Bench.Iterations = 0
		}, "iterations"},
		{"live ws url", func(c *Config) { c.Feed.WSURL = "" }, "ws_url"},
		{"backoff order", func(c *Config) { c.Feed.ReconnectMax = duration{time.Millisecond} }, "reconnect_min"},
		{"cross direction", func(c *Config) { c.Triangle.CrossDirection = "sideways" }, "cross_direction"},
		{"postgres pool", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.PoolMinConns = 20
		}, "pool_min_conns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestReplayModeValidWithFiles(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.Feed.WSURL = ""
	cfg.Replay.Pair1File = "eth_usd.csv"
	cfg.Replay.Pair2File = "btc_usd.csv"
	cfg.Replay.Pair3File = "eth_btc.csv"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("replay config should validate: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triarb.toml")
	body := `
mode = "bench"

[triangle]
min_profit_bps = 5.5

[triangle.pair1]
symbol = "SOL-USD"

[engine]
detect_interval = "250ms"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "bench" {
		t.Errorf("Mode = %q, want bench", cfg.Mode)
	}
	if cfg.Triangle.MinProfitBps != 5.5 {
		t.Errorf("MinProfitBps = %v, want 5.5", cfg.Triangle.MinProfitBps)
	}
	if cfg.Triangle.Pair1.Symbol != "SOL-USD" {
		t.Errorf("Pair1.Symbol = %q", cfg.Triangle.Pair1.Symbol)
	}
	if cfg.Triangle.Pair1.ScaleFactor != 10_000 {
		t.Errorf("Pair1.ScaleFactor = %d, default should survive", cfg.Triangle.Pair1.ScaleFactor)
	}
	if cfg.Engine.DetectInterval.Duration != 250*time.Millisecond {
		t.Errorf("DetectInterval = %v", cfg.Engine.DetectInterval.Duration)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRIARB_MODE", "replay")
	t.Setenv("TRIARB_TRIANGLE_PAIR3_SYMBOL", "ETH-EUR")
	t.Setenv("TRIARB_TRIANGLE_PAIR3_SCALE_FACTOR", "1000")
	t.Setenv("TRIARB_TRIANGLE_FEE_RATE_PER_LEG", "0.0025")
	t.Setenv("TRIARB_FEED_HEARTBEAT_TIMEOUT", "3s")
	t.Setenv("TRIARB_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("TRIARB_REDIS_ENABLED", "true")
	t.Setenv("TRIARB_ENGINE_VIEW_DEPTH", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "replay" {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.Triangle.Pair3.Symbol != "ETH-EUR" || cfg.Triangle.Pair3.ScaleFactor != 1000 {
		t.Errorf("Pair3 = %+v", cfg.Triangle.Pair3)
	}
	if cfg.Triangle.FeeRatePerLeg != 0.0025 {
		t.Errorf("FeeRatePerLeg = %v", cfg.Triangle.FeeRatePerLeg)
	}
	if cfg.Feed.HeartbeatTimeout.Duration != 3*time.Second {
		t.Errorf("HeartbeatTimeout = %v", cfg.Feed.HeartbeatTimeout.Duration)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled should be true")
	}
	if cfg.Engine.ViewDepth != 10 {
		t.Errorf("unparseable override should be ignored, ViewDepth = %d", cfg.Engine.ViewDepth)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "hunter2"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.S3.SecretKey = "secret"
	cfg.Server.APIKey = "key"
	cfg.Notify.TelegramToken = ""

	out := RedactedConfig(&cfg)
	for name, got := range map[string]string{
		"redis.password": out.Redis.Password,
		"postgres.dsn":   out.Postgres.DSN,
		"s3.secret_key":  out.S3.SecretKey,
		"server.api_key": out.Server.APIKey,
	} {
		if got != redacted {
			t.Errorf("%s = %q, want redacted", name, got)
		}
	}
	if out.Notify.TelegramToken != "" {
		t.Error("empty secrets should stay empty")
	}
	if cfg.Redis.Password != "hunter2" {
		t.Error("original config was mutated")
	}

	out.Server.CORSOrigins[0] = "mutated"
	if cfg.Server.CORSOrigins[0] == "mutated" {
		t.Error("CORS origins slice shared with original")
	}
}
