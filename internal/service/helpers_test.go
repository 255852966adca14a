package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/orderbook"
	"github.com/alanyoungcy/triarb/internal/scale"
)

// Prices that make the forward path ETH-USD ask -> ETH-BTC bid -> BTC-USD bid
// clear roughly 24.6 bps after fees.
const (
	ethAsk   domain.Price    = 31_465_200
	btcBid   domain.Price    = 899_036_200
	crossBid domain.Price    = 3_519_046
	lot      domain.Quantity = 100_000_000
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBooks(t testing.TB) [3]*orderbook.Book {
	t.Helper()
	pairs := [3]scale.Pair{
		{Symbol: "ETH-USD", Factor: 10_000, MinPrice: 20_000_000, MaxPrice: 50_000_000},
		{Symbol: "BTC-USD", Factor: 10_000, MinPrice: 700_000_000, MaxPrice: 1_200_000_000},
		{Symbol: "ETH-BTC", Factor: 100_000_000, MinPrice: 2_000_000, MaxPrice: 6_000_000},
	}
	var books [3]*orderbook.Book
	for i, p := range pairs {
		p.LotFactor = 100_000_000
		p.MaxQuantity = 1 << 50
		b, err := orderbook.New(p)
		if err != nil {
			t.Fatalf("orderbook.New(%s): %v", p.Symbol, err)
		}
		books[i] = b
	}
	return books
}

func testTriangle(t testing.TB, books [3]*orderbook.Book) *arbitrage.Triangle {
	t.Helper()
	tri, err := arbitrage.NewTriangle(books[0], books[1], books[2], arbitrage.TriangleConfig{
		Name:            "ETH/BTC/USD",
		FeeRatePerLeg:   0.001,
		MinProfitBps:    2,
		StartingCapital: 1_000,
	})
	if err != nil {
		t.Fatalf("NewTriangle: %v", err)
	}
	return tri
}

// profitableSnapshots returns the per-pair snapshot levels of the forward
// opportunity.
func profitableSnapshots() [3][]domain.Update {
	return [3][]domain.Update{
		{domain.SetLevel(domain.Ask, ethAsk, lot)},
		{domain.SetLevel(domain.Bid, btcBid, lot)},
		{domain.SetLevel(domain.Bid, crossBid, lot)},
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type fakeStore struct {
	mu       sync.Mutex
	inserted []domain.OpportunityRecord
	err      error
}

func (f *fakeStore) Insert(_ context.Context, rec domain.OpportunityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeStore) ListRecent(_ context.Context, limit int) ([]domain.OpportunityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.OpportunityRecord, 0, limit)
	for i := len(f.inserted) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.inserted[i])
	}
	return out, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (f *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamed[stream] = append(f.streamed[stream], payload)
	return nil
}

func (f *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeCache struct {
	mu  sync.Mutex
	top map[string]domain.TopOfBook
}

func (f *fakeCache) SetTop(_ context.Context, top domain.TopOfBook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.top == nil {
		f.top = map[string]domain.TopOfBook{}
	}
	f.top[top.Symbol] = top
	return nil
}

func (f *fakeCache) GetTop(_ context.Context, symbol string) (domain.TopOfBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	top, ok := f.top[symbol]
	if !ok {
		return domain.TopOfBook{}, domain.ErrNotFound
	}
	return top, nil
}

type chanSender struct {
	sent chan string
}

func (c *chanSender) Send(_ context.Context, title, _ string) error {
	c.sent <- title
	return nil
}

func (c *chanSender) Name() string { return "chan" }
