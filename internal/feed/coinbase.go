// Package feed turns venue market data into book updates. CoinbaseFeed
// streams one product from the Coinbase Exchange websocket; the CSV loader
// and synthetic generator feed replay and benchmark runs.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sugawarayuuta/sonnet"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/scale"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pingPeriod is how often a ping is sent; a pong extends the read deadline.
	pingPeriod = 20 * time.Second
)

// Sink receives decoded updates for one pair. All calls for a pair come from
// that pair's feed goroutine, which makes the sink's book owner the single
// writer. Update slices are reused once a call returns.
type Sink interface {
	// Snapshot replaces the pair's book: reset, then apply every level.
	Snapshot(pair int, levels []domain.Update, at time.Time)
	// Apply applies one incremental batch.
	Apply(pair int, updates []domain.Update, at time.Time)
	// Desync marks the pair's book as stale until the next snapshot.
	Desync(pair int)
}

// CoinbaseConfig holds the connection parameters shared by every pair feed.
type CoinbaseConfig struct {
	URL              string
	Channel          string
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
	HeartbeatTimeout time.Duration
	HandshakeTimeout time.Duration
}

// CoinbaseFeed keeps one product's book in sync with the venue. It
// resubscribes after any disconnect, error message or heartbeat silence and
// rebuilds the book from the fresh snapshot.
type CoinbaseFeed struct {
	cfg     CoinbaseConfig
	pair    int
	scale   scale.Pair
	sink    Sink
	metrics *metrics.Metrics
	logger  *slog.Logger

	synced bool
	buf    []domain.Update
}

// NewCoinbaseFeed creates a feed for pair index pair, decoded through sp.
func NewCoinbaseFeed(cfg CoinbaseConfig, pair int, sp scale.Pair, sink Sink, m *metrics.Metrics, logger *slog.Logger) *CoinbaseFeed {
	if cfg.Channel == "" {
		cfg.Channel = "level2_batch"
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 500 * time.Millisecond
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 10 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}
	return &CoinbaseFeed{
		cfg:     cfg,
		pair:    pair,
		scale:   sp,
		sink:    sink,
		metrics: m,
		logger: logger.With(
			slog.String("component", "coinbase_feed"),
			slog.String("symbol", sp.Symbol),
		),
	}
}

// Run connects and streams until ctx is cancelled. Disconnects are retried
// with jittered exponential backoff, reset once a connection delivers a
// snapshot.
func (f *CoinbaseFeed) Run(ctx context.Context) error {
	delay := f.cfg.ReconnectMin
	for {
		synced, err := f.runConnection(ctx)
		if synced {
			f.sink.Desync(f.pair)
		}
		f.synced = false
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if synced {
			delay = f.cfg.ReconnectMin
		}

		wait := delay + rand.N(delay/5+1)
		f.logger.Warn("coinbase ws disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("backoff", wait),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = min(delay*2, f.cfg.ReconnectMax)
	}
}

// runConnection serves a single websocket session. It reports whether a
// snapshot was applied before the session ended.
func (f *CoinbaseFeed) runConnection(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("feed: coinbase: connect: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := f.subscribe(conn); err != nil {
		return false, err
	}
	f.metrics.SetFeedConnected(true)
	defer f.metrics.SetFeedConnected(false)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.cfg.HeartbeatTimeout))
	})
	done := make(chan struct{})
	defer close(done)
	go f.pingLoop(conn, done)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(f.cfg.HeartbeatTimeout)); err != nil {
			return f.synced, err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				err = fmt.Errorf("feed: coinbase: no data for %s: %w", f.cfg.HeartbeatTimeout, domain.ErrFeedStale)
			}
			return f.synced, err
		}
		if err := f.handle(data); err != nil {
			return f.synced, err
		}
	}
}

type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

func (f *CoinbaseFeed) subscribe(conn *websocket.Conn) error {
	data, err := sonnet.Marshal(subscribeMessage{
		Type:       "subscribe",
		ProductIDs: []string{f.scale.Symbol},
		Channels:   []string{f.cfg.Channel, "heartbeat"},
	})
	if err != nil {
		return fmt.Errorf("feed: coinbase: marshal subscribe: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("feed: coinbase: subscribe: %w", err)
	}
	return nil
}

func (f *CoinbaseFeed) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// wireMessage covers every message type the level2 and heartbeat channels
// send.
type wireMessage struct {
	Type      string     `json:"type"`
	ProductID string     `json:"product_id"`
	Time      string     `json:"time"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
	Changes   [][]string `json:"changes"`
	Message   string     `json:"message"`
	Reason    string     `json:"reason"`
}

// handle decodes one frame. A returned error ends the session.
func (f *CoinbaseFeed) handle(data []byte) error {
	var msg wireMessage
	if err := sonnet.Unmarshal(data, &msg); err != nil {
		f.logger.Debug("undecodable frame", slog.String("error", err.Error()))
		return nil
	}

	switch msg.Type {
	case "error":
		return fmt.Errorf("feed: coinbase: %s (%s): %w", msg.Message, msg.Reason, domain.ErrWSDisconnect)
	case "subscriptions":
		f.logger.Info("coinbase ws subscribed", slog.String("channel", f.cfg.Channel))
		return nil
	}
	if msg.ProductID != f.scale.Symbol {
		return nil
	}

	switch msg.Type {
	case "snapshot":
		f.buf = f.buf[:0]
		f.appendLevels(domain.Bid, msg.Bids)
		f.appendLevels(domain.Ask, msg.Asks)
		f.sink.Snapshot(f.pair, f.buf, parseTime(msg.Time))
		f.synced = true
		f.metrics.ObserveResync(f.scale.Symbol)
		f.logger.Info("book snapshot applied",
			slog.Int("bids", len(msg.Bids)),
			slog.Int("asks", len(msg.Asks)),
		)
	case "l2update":
		if !f.synced {
			for range msg.Changes {
				f.metrics.ObserveUpdate(f.scale.Symbol, metrics.ResultDropped)
			}
			return nil
		}
		f.buf = f.buf[:0]
		for _, c := range msg.Changes {
			if len(c) < 3 {
				f.reject("short change")
				continue
			}
			side, ok := domain.ParseSide(c[0])
			if !ok {
				f.reject("unknown side " + c[0])
				continue
			}
			f.appendLevel(side, c[1], c[2])
		}
		if len(f.buf) > 0 {
			f.sink.Apply(f.pair, f.buf, parseTime(msg.Time))
		}
	}
	return nil
}

func (f *CoinbaseFeed) appendLevels(side domain.Side, levels [][]string) {
	for _, l := range levels {
		if len(l) < 2 {
			f.reject("short level")
			continue
		}
		f.appendLevel(side, l[0], l[1])
	}
}

func (f *CoinbaseFeed) appendLevel(side domain.Side, price, size string) {
	p, err := f.scale.ParsePrice(price)
	if err != nil {
		f.reject(err.Error())
		return
	}
	q, err := f.scale.ParseQuantity(size)
	if err != nil {
		f.reject(err.Error())
		return
	}
	if q == 0 {
		if !isZeroSize(size) {
			f.reject("size " + size + " below one lot")
			return
		}
		f.buf = append(f.buf, domain.RemoveLevel(side, p))
		return
	}
	f.buf = append(f.buf, domain.SetLevel(side, p, q))
}

func (f *CoinbaseFeed) reject(reason string) {
	f.metrics.ObserveUpdate(f.scale.Symbol, metrics.ResultRejected)
	f.logger.Debug("level skipped", slog.String("reason", reason))
}

// isZeroSize reports whether the venue size is exactly zero rather than a
// positive size that rounded to no lots.
func isZeroSize(size string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(size))
	return err == nil && d.IsZero()
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Now()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
