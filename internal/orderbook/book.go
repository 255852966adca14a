// Package orderbook keeps the live price-level state of one trading pair.
//
// A Book is written by exactly one goroutine (its ingestion path). The best
// prices, running totals and the mutation generation are published through
// atomics so a detector on another goroutine can read them without locking.
// QuantityAt, TopLevels and Levels walk the ladders directly and must be
// called from the owning goroutine.
package orderbook

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/scale"
)

// MaxLevels bounds the configured price range of a single book.
const MaxLevels = 1 << 32

const noPrice = math.MinInt64

type bookSide struct {
	ladder ladder
	best   atomic.Int64
	total  atomic.Int64
}

// Book is the price ladder of one pair on both sides.
type Book struct {
	pair  scale.Pair
	sides [2]bookSide
	gen   atomic.Uint64
}

// New creates an empty book for pair.
func New(pair scale.Pair) (*Book, error) {
	if err := pair.Validate(); err != nil {
		return nil, fmt.Errorf("orderbook: %w", err)
	}
	levels := pair.Levels()
	if levels > MaxLevels {
		return nil, fmt.Errorf("orderbook: pair %q spans %d levels (limit %d): %w",
			pair.Symbol, levels, int64(MaxLevels), domain.ErrInvalidPair)
	}
	b := &Book{pair: pair}
	for s := range b.sides {
		b.sides[s].ladder = newLadder(levels)
		b.sides[s].best.Store(noPrice)
	}
	return b, nil
}

// Pair returns the scale configuration the book was built with.
func (b *Book) Pair() scale.Pair { return b.pair }

// Symbol returns the pair symbol.
func (b *Book) Symbol() string { return b.pair.Symbol }

// Generation increases after every change to the book's contents.
func (b *Book) Generation() uint64 { return b.gen.Load() }

// Apply executes a single update.
func (b *Book) Apply(u domain.Update) error {
	switch u.Kind {
	case domain.UpdateSet:
		return b.Set(u.Price, u.Quantity, u.Side)
	case domain.UpdateRemove:
		return b.Remove(u.Price, u.Side)
	default:
		return fmt.Errorf("orderbook: %s: update kind %d: %w", b.pair.Symbol, u.Kind, domain.ErrInvalidUpdate)
	}
}

// Set writes qty at price on side, overwriting any existing level. A zero
// quantity removes the level.
func (b *Book) Set(price domain.Price, qty domain.Quantity, side domain.Side) error {
	if side > domain.Ask {
		return fmt.Errorf("orderbook: %s: side %d: %w", b.pair.Symbol, side, domain.ErrInvalidUpdate)
	}
	if !b.pair.Contains(price) {
		return fmt.Errorf("orderbook: %s %s %d: %w", b.pair.Symbol, side, price, domain.ErrOutOfRange)
	}
	if qty < 0 || qty > b.pair.MaxQuantity {
		return fmt.Errorf("orderbook: %s %s %d qty %d: %w", b.pair.Symbol, side, price, qty, domain.ErrInvalidQuantity)
	}
	if qty == 0 {
		b.remove(price, side)
		return nil
	}

	s := &b.sides[side]
	prev := s.ladder.set(int64(price-b.pair.MinPrice), qty)
	if prev == qty {
		return nil
	}
	s.total.Store(int64(s.ladder.total.quantity()))
	if prev == 0 {
		best := s.best.Load()
		if best == noPrice || (side == domain.Bid && int64(price) > best) || (side == domain.Ask && int64(price) < best) {
			s.best.Store(int64(price))
		}
	}
	b.gen.Add(1)
	return nil
}

// Remove clears the level at price on side. Removing an absent level is a
// no-op.
func (b *Book) Remove(price domain.Price, side domain.Side) error {
	if side > domain.Ask {
		return fmt.Errorf("orderbook: %s: side %d: %w", b.pair.Symbol, side, domain.ErrInvalidUpdate)
	}
	if !b.pair.Contains(price) {
		return fmt.Errorf("orderbook: %s %s %d: %w", b.pair.Symbol, side, price, domain.ErrOutOfRange)
	}
	b.remove(price, side)
	return nil
}

func (b *Book) remove(price domain.Price, side domain.Side) {
	s := &b.sides[side]
	i := int64(price - b.pair.MinPrice)
	if s.ladder.clear(i) == 0 {
		return
	}
	s.total.Store(int64(s.ladder.total.quantity()))
	if int64(price) == s.best.Load() {
		var (
			next int64
			ok   bool
		)
		if side == domain.Bid {
			next, ok = s.ladder.highestAtOrBelow(i - 1)
		} else {
			next, ok = s.ladder.lowestAtOrAbove(i + 1)
		}
		if ok {
			s.best.Store(next + int64(b.pair.MinPrice))
		} else {
			s.best.Store(noPrice)
		}
	}
	b.gen.Add(1)
}

// Reset empties both sides. Callers replay a fresh snapshot afterwards.
func (b *Book) Reset() {
	for s := range b.sides {
		side := &b.sides[s]
		side.ladder.reset()
		side.best.Store(noPrice)
		side.total.Store(0)
	}
	b.gen.Add(1)
}

// BestBid returns the highest bid price, if any.
func (b *Book) BestBid() (domain.Price, bool) {
	return b.best(domain.Bid)
}

// BestAsk returns the lowest ask price, if any.
func (b *Book) BestAsk() (domain.Price, bool) {
	return b.best(domain.Ask)
}

// Best returns the best price on side.
func (b *Book) Best(side domain.Side) (domain.Price, bool) {
	return b.best(side)
}

func (b *Book) best(side domain.Side) (domain.Price, bool) {
	v := b.sides[side].best.Load()
	if v == noPrice {
		return 0, false
	}
	return domain.Price(v), true
}

// Spread returns ask - bid when both sides are present. A crossed book
// yields a zero or negative spread.
func (b *Book) Spread() (domain.Price, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return 0, false
	}
	return ask - bid, true
}

// TotalQuantity is the sum of all level quantities on side, capped at
// math.MaxInt64.
func (b *Book) TotalQuantity(side domain.Side) domain.Quantity {
	return domain.Quantity(b.sides[side].total.Load())
}

// QuantityAt returns the quantity at price on side. Out-of-range prices and
// empty levels report false.
func (b *Book) QuantityAt(price domain.Price, side domain.Side) (domain.Quantity, bool) {
	if side > domain.Ask || !b.pair.Contains(price) {
		return 0, false
	}
	q := b.sides[side].ladder.get(int64(price - b.pair.MinPrice))
	return q, q != 0
}

// Levels is the number of occupied levels on side.
func (b *Book) Levels(side domain.Side) int {
	return b.sides[side].ladder.count
}

// TopLevels returns up to n levels on side, best first.
func (b *Book) TopLevels(side domain.Side, n int) []domain.PriceLevel {
	if n <= 0 {
		return nil
	}
	return b.AppendTopLevels(make([]domain.PriceLevel, 0, min(n, b.Levels(side))), side, n)
}

// AppendTopLevels appends up to n levels on side to dst, best first.
func (b *Book) AppendTopLevels(dst []domain.PriceLevel, side domain.Side, n int) []domain.PriceLevel {
	best, ok := b.best(side)
	if !ok || n <= 0 {
		return dst
	}
	l := &b.sides[side].ladder
	i := int64(best - b.pair.MinPrice)
	for k := 0; k < n; k++ {
		dst = append(dst, domain.PriceLevel{
			Price:    domain.Price(i) + b.pair.MinPrice,
			Quantity: l.get(i),
		})
		if side == domain.Bid {
			i, ok = l.highestAtOrBelow(i - 1)
		} else {
			i, ok = l.lowestAtOrAbove(i + 1)
		}
		if !ok {
			break
		}
	}
	return dst
}
