// Package redis mirrors book state and fans out opportunities through
// go-redis/v9: a top-of-book hash per pair, pub/sub channels and streams.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultAddr = "localhost:6379"
	dialTimeout = 5 * time.Second
	ioTimeout   = 3 * time.Second
)

// ClientConfig mirrors the [redis] config section.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client is the connection shared by BookCache, SignalBus and RateLimiter.
type Client struct {
	rdb  *redis.Client
	addr string
}

// options maps cfg onto driver options. Zero pool size and retries keep the
// driver defaults; TLS verifies against the host part of Addr.
func options(cfg ClientConfig) *redis.Options {
	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	opts := &redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	}
	if cfg.TLSEnabled {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	return opts
}

// New dials Redis and verifies the connection before returning.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := options(cfg)
	c := &Client{rdb: redis.NewClient(opts), addr: opts.Addr}
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// Ping is the /api/health check for Redis.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) Close() error { return c.rdb.Close() }

// Underlying exposes the driver client to the cache and bus types.
func (c *Client) Underlying() *redis.Client { return c.rdb }
