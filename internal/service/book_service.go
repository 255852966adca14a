package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/feed"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/orderbook"
)

var _ feed.Sink = (*BookService)(nil)

// BookConfig tunes the monitoring views BookService publishes.
type BookConfig struct {
	ViewDepth    int
	ViewInterval time.Duration
}

type pairState struct {
	synced   atomic.Bool
	view     atomic.Pointer[domain.BookView]
	lastView time.Time
	levels   []domain.PriceLevel
}

// BookService owns the triangle's three books. Each pair's feed goroutine is
// that book's only writer; readers on other goroutines use the atomically
// published views and the books' lock-free best prices.
type BookService struct {
	books   [3]*orderbook.Book
	pairs   [3]*pairState
	wake    chan struct{}
	cfg     BookConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBookService wraps books, ordered pair1..pair3.
func NewBookService(books [3]*orderbook.Book, cfg BookConfig, m *metrics.Metrics, logger *slog.Logger) *BookService {
	if cfg.ViewDepth <= 0 {
		cfg.ViewDepth = 10
	}
	s := &BookService{
		books:   books,
		wake:    make(chan struct{}, 1),
		cfg:     cfg,
		metrics: m,
		logger:  logger.With(slog.String("component", "book_service")),
	}
	for i := range s.pairs {
		s.pairs[i] = &pairState{}
		s.publishView(i, time.Time{}, true)
	}
	return s
}

// Books returns the owned books.
func (s *BookService) Books() [3]*orderbook.Book { return s.books }

// Wake fires after any batch changed a book. Signals coalesce.
func (s *BookService) Wake() <-chan struct{} { return s.wake }

// Synced reports whether every book has been rebuilt from a snapshot on its
// current connection.
func (s *BookService) Synced() bool {
	for _, p := range s.pairs {
		if !p.synced.Load() {
			return false
		}
	}
	return true
}

// Snapshot resets the pair's book and applies levels.
func (s *BookService) Snapshot(pair int, levels []domain.Update, at time.Time) {
	b := s.books[pair]
	b.Reset()
	applied, rejected := s.applyBatch(pair, levels)
	s.pairs[pair].synced.Store(true)
	s.publishView(pair, at, true)
	s.signal()

	s.logger.Info("book rebuilt from snapshot",
		slog.String("symbol", b.Symbol()),
		slog.Int("applied", applied),
		slog.Int("rejected", rejected),
	)
}

// Apply applies an incremental batch. Batches for an unsynced book are
// dropped; rejected updates are logged and skipped.
func (s *BookService) Apply(pair int, updates []domain.Update, at time.Time) {
	st := s.pairs[pair]
	if !st.synced.Load() {
		for range updates {
			s.metrics.ObserveUpdate(s.books[pair].Symbol(), metrics.ResultDropped)
		}
		return
	}
	if applied, _ := s.applyBatch(pair, updates); applied > 0 {
		s.publishView(pair, at, false)
		s.signal()
	}
}

// Desync clears the pair's book until the next snapshot so the detector
// never prices against stale levels.
func (s *BookService) Desync(pair int) {
	st := s.pairs[pair]
	st.synced.Store(false)
	s.books[pair].Reset()
	s.publishView(pair, time.Now(), true)
	s.signal()
	s.logger.Warn("book desynchronised", slog.String("symbol", s.books[pair].Symbol()))
}

func (s *BookService) applyBatch(pair int, updates []domain.Update) (applied, rejected int) {
	b := s.books[pair]
	sym := b.Symbol()
	for _, u := range updates {
		if err := b.Apply(u); err != nil {
			rejected++
			s.metrics.ObserveUpdate(sym, metrics.ResultRejected)
			s.logger.Debug("update rejected",
				slog.String("symbol", sym),
				slog.String("side", u.Side.String()),
				slog.Int64("price", int64(u.Price)),
				slog.String("error", err.Error()),
			)
			continue
		}
		applied++
		s.metrics.ObserveUpdate(sym, metrics.ResultApplied)
	}
	return applied, rejected
}

func (s *BookService) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// publishView copies the top of the pair's book for readers. Without force,
// views are throttled to one per ViewInterval. Owner goroutine only.
func (s *BookService) publishView(pair int, at time.Time, force bool) {
	st := s.pairs[pair]
	now := time.Now()
	if !force && now.Sub(st.lastView) < s.cfg.ViewInterval {
		return
	}
	st.lastView = now

	b := s.books[pair]
	sp := b.Pair()
	v := &domain.BookView{
		Symbol:     b.Symbol(),
		BidTotal:   b.TotalQuantity(domain.Bid),
		AskTotal:   b.TotalQuantity(domain.Ask),
		BidLevels:  b.Levels(domain.Bid),
		AskLevels:  b.Levels(domain.Ask),
		Generation: b.Generation(),
		Synced:     st.synced.Load(),
		UpdatedAt:  at,
	}
	if p, ok := b.BestBid(); ok {
		v.BestBid = &p
	}
	if p, ok := b.BestAsk(); ok {
		v.BestAsk = &p
	}
	if p, ok := b.Spread(); ok {
		v.Spread = &p
	}
	for _, side := range []domain.Side{domain.Bid, domain.Ask} {
		st.levels = b.AppendTopLevels(st.levels[:0], side, s.cfg.ViewDepth)
		out := make([]domain.BookLevel, len(st.levels))
		for i, l := range st.levels {
			out[i] = domain.BookLevel{Price: l.Price, Quantity: l.Quantity, PriceDecimal: sp.ToDecimal(l.Price)}
		}
		if side == domain.Bid {
			v.Bids = out
		} else {
			v.Asks = out
		}
		best, ok := b.Best(side)
		s.metrics.SetBest(b.Symbol(), side, sp.ToDecimal(best), ok)
	}
	st.view.Store(v)
}

// Views returns the latest view of every book, pair1 first.
func (s *BookService) Views() []domain.BookView {
	out := make([]domain.BookView, 0, len(s.pairs))
	for _, p := range s.pairs {
		if v := p.view.Load(); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// View returns the latest view of the book for symbol.
func (s *BookService) View(symbol string) (domain.BookView, bool) {
	for i, b := range s.books {
		if b.Symbol() == symbol {
			if v := s.pairs[i].view.Load(); v != nil {
				return *v, true
			}
		}
	}
	return domain.BookView{}, false
}

// RunMirror copies each book's top of book to cache every interval until ctx
// is cancelled. Write failures are logged and retried on the next tick.
func (s *BookService) RunMirror(ctx context.Context, cache domain.BookCache, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("top-of-book mirror started", slog.Duration("interval", interval))

	var lastGen [3]uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		for i, p := range s.pairs {
			v := p.view.Load()
			if v == nil || (v.Generation == lastGen[i] && v.Generation != 0) {
				continue
			}
			if err := cache.SetTop(ctx, topOfBook(s.books[i], v)); err != nil {
				s.logger.WarnContext(ctx, "mirror top of book failed",
					slog.String("symbol", v.Symbol),
					slog.String("error", err.Error()),
				)
				continue
			}
			lastGen[i] = v.Generation
		}
	}
}

func topOfBook(b *orderbook.Book, v *domain.BookView) domain.TopOfBook {
	sp := b.Pair()
	top := domain.TopOfBook{Symbol: v.Symbol, UpdatedAt: v.UpdatedAt}
	if v.BestBid != nil {
		top.BestBid, top.HasBid = sp.ToDecimal(*v.BestBid), true
	}
	if v.BestAsk != nil {
		top.BestAsk, top.HasAsk = sp.ToDecimal(*v.BestAsk), true
	}
	if top.UpdatedAt.IsZero() {
		top.UpdatedAt = time.Now()
	}
	return top
}
