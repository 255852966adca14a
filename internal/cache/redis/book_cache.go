package redis

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/triarb/internal/domain"
)

//go:embed scripts/top_update.lua
var topUpdateLua string

// BookCache implements domain.BookCache with one hash per pair:
//
//	book:{symbol}:top  bid, ask, has_bid, has_ask, ts (unix micros)
//
// Writes go through a script that refuses to overwrite a newer entry, so
// several instances can mirror the same pair.
type BookCache struct {
	rdb       *redis.Client
	topUpdate *redis.Script
	ttl       time.Duration
}

// NewBookCache creates a BookCache. Entries expire after ttl; zero keeps them.
func NewBookCache(c *Client, ttl time.Duration) *BookCache {
	return &BookCache{
		rdb:       c.Underlying(),
		topUpdate: redis.NewScript(topUpdateLua),
		ttl:       ttl,
	}
}

func topKey(symbol string) string { return "book:" + symbol + ":top" }

// topArgs encodes top in the script's ARGV order.
func topArgs(top domain.TopOfBook, ttl time.Duration) []any {
	return []any{
		strconv.FormatFloat(top.BestBid, 'f', -1, 64),
		strconv.FormatFloat(top.BestAsk, 'f', -1, 64),
		boolFlag(top.HasBid),
		boolFlag(top.HasAsk),
		top.UpdatedAt.UnixMicro(),
		ttl.Milliseconds(),
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// SetTop stores top unless a newer entry is already present.
func (bc *BookCache) SetTop(ctx context.Context, top domain.TopOfBook) error {
	err := bc.topUpdate.Run(ctx, bc.rdb, []string{topKey(top.Symbol)}, topArgs(top, bc.ttl)...).Err()
	if err != nil {
		return fmt.Errorf("redis: set top %s: %w", top.Symbol, err)
	}
	return nil
}

// GetTop reads the mirrored top of book. A missing or expired entry returns
// domain.ErrNotFound.
func (bc *BookCache) GetTop(ctx context.Context, symbol string) (domain.TopOfBook, error) {
	fields, err := bc.rdb.HGetAll(ctx, topKey(symbol)).Result()
	if err != nil {
		return domain.TopOfBook{}, fmt.Errorf("redis: get top %s: %w", symbol, err)
	}
	if len(fields) == 0 {
		return domain.TopOfBook{}, fmt.Errorf("redis: get top %s: %w", symbol, domain.ErrNotFound)
	}
	return parseTop(symbol, fields)
}

func parseTop(symbol string, fields map[string]string) (domain.TopOfBook, error) {
	top := domain.TopOfBook{
		Symbol: symbol,
		HasBid: fields["has_bid"] == "1",
		HasAsk: fields["has_ask"] == "1",
	}
	var errs []error
	var err error
	if top.BestBid, err = strconv.ParseFloat(fields["bid"], 64); err != nil {
		errs = append(errs, fmt.Errorf("bid: %w", err))
	}
	if top.BestAsk, err = strconv.ParseFloat(fields["ask"], 64); err != nil {
		errs = append(errs, fmt.Errorf("ask: %w", err))
	}
	ts, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("ts: %w", err))
	}
	top.UpdatedAt = time.UnixMicro(ts).UTC()
	if len(errs) > 0 {
		return domain.TopOfBook{}, fmt.Errorf("redis: decode top %s: %w", symbol, errors.Join(errs...))
	}
	return top, nil
}

var _ domain.BookCache = (*BookCache)(nil)
