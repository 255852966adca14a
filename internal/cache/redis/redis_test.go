package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func TestTopRoundTripThroughScriptArgs(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 123_456_000, time.UTC)
	top := domain.TopOfBook{Symbol: "ETH-BTC", BestBid: 0.03519046, HasBid: true, UpdatedAt: at}

	args := topArgs(top, 1500*time.Millisecond)
	if len(args) != 6 || args[5] != int64(1500) || args[2] != "1" || args[3] != "0" {
		t.Fatalf("args = %v", args)
	}
	fields := map[string]string{
		"bid":     args[0].(string),
		"ask":     args[1].(string),
		"has_bid": args[2].(string),
		"has_ask": args[3].(string),
		"ts":      "1704067200123456",
	}
	got, err := parseTop("ETH-BTC", fields)
	if err != nil {
		t.Fatal(err)
	}
	if got.Symbol != top.Symbol || got.BestBid != top.BestBid || got.BestAsk != 0 ||
		!got.HasBid || got.HasAsk || !got.UpdatedAt.Equal(at) {
		t.Fatalf("parseTop = %+v, want %+v", got, top)
	}
}

func TestParseTopRejectsCorruptEntry(t *testing.T) {
	_, err := parseTop("X", map[string]string{"bid": "nan?", "ask": "1", "ts": "x"})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatal("corrupt entry is not a missing entry")
	}
}

func TestHelpers(t *testing.T) {
	if topKey("ETH-USD") != "book:ETH-USD:top" {
		t.Fatal(topKey("ETH-USD"))
	}
	for ch, want := range map[string]bool{"arb": false, "arb:*": true, "a?b": true, "[ab]": true} {
		if hasPattern(ch) != want {
			t.Errorf("hasPattern(%q) = %v", ch, !want)
		}
	}
	if b, ok := payloadBytes("x"); !ok || string(b) != "x" {
		t.Error("string payload")
	}
	if _, ok := payloadBytes(42); ok {
		t.Error("int payload should be skipped")
	}
}

func TestWindowKey(t *testing.T) {
	at := time.UnixMilli(10_500)
	if got := windowKey("api:1.2.3.4", at, time.Second); got != "ratelimit:api:1.2.3.4:10" {
		t.Fatalf("windowKey = %q", got)
	}
	if got := windowKey("k", at.Add(600*time.Millisecond), time.Second); got != "ratelimit:k:11" {
		t.Fatalf("windowKey after rollover = %q", got)
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name       string
		cfg        ClientConfig
		wantAddr   string
		wantServer string
	}{
		{"defaults", ClientConfig{}, "localhost:6379", ""},
		{"plain", ClientConfig{Addr: "cache:6380", DB: 2, PoolSize: 8}, "cache:6380", ""},
		{"tls host", ClientConfig{Addr: "redis.example.com:6380", TLSEnabled: true}, "redis.example.com:6380", "redis.example.com"},
		{"tls no port", ClientConfig{Addr: "redis.example.com", TLSEnabled: true}, "redis.example.com", "redis.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := options(tt.cfg)
			if opts.Addr != tt.wantAddr {
				t.Errorf("Addr = %q, want %q", opts.Addr, tt.wantAddr)
			}
			if opts.DB != tt.cfg.DB || opts.PoolSize != tt.cfg.PoolSize {
				t.Errorf("DB/PoolSize = %d/%d, want %d/%d", opts.DB, opts.PoolSize, tt.cfg.DB, tt.cfg.PoolSize)
			}
			if opts.DialTimeout != dialTimeout || opts.ReadTimeout != ioTimeout {
				t.Errorf("timeouts = %v/%v", opts.DialTimeout, opts.ReadTimeout)
			}
			switch {
			case tt.wantServer == "" && opts.TLSConfig != nil:
				t.Error("TLS configured without TLSEnabled")
			case tt.wantServer != "" && (opts.TLSConfig == nil || opts.TLSConfig.ServerName != tt.wantServer):
				t.Errorf("TLSConfig = %+v, want ServerName %q", opts.TLSConfig, tt.wantServer)
			}
		})
	}
}
