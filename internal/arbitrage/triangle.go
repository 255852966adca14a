// Package arbitrage evaluates a fixed three-leg conversion cycle across three
// order books and reports the profitable direction, if any.
package arbitrage

import (
	"fmt"
	"math"
	"strings"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/orderbook"
)

// CrossDirection says how the third pair quotes the two non-quote assets.
type CrossDirection uint8

const (
	// CrossBaseA: pair3 prices A in units of B (ETH-BTC for A=ETH, B=BTC).
	CrossBaseA CrossDirection = iota
	// CrossBaseB: pair3 prices B in units of A (BTC-ETH).
	CrossBaseB
)

func (c CrossDirection) String() string {
	if c == CrossBaseB {
		return "base_b"
	}
	return "base_a"
}

// ParseCrossDirection accepts "base_a" (or empty) and "base_b".
func ParseCrossDirection(s string) (CrossDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "base_a":
		return CrossBaseA, nil
	case "base_b":
		return CrossBaseB, nil
	default:
		return 0, fmt.Errorf("arbitrage: cross direction %q: %w", s, domain.ErrInvalidTriangle)
	}
}

// TriangleConfig holds the static parameters of a triangle.
type TriangleConfig struct {
	Name            string
	FeeRatePerLeg   float64
	MinProfitBps    float64
	StartingCapital float64
	Cross           CrossDirection
}

// Triangle binds three books into one conversion cycle:
// pair1 = A/quote, pair2 = B/quote, pair3 = the A/B cross.
type Triangle struct {
	name    string
	books   [3]*orderbook.Book
	factors [3]float64
	keep    float64
	cfg     TriangleConfig
}

// NewTriangle validates cfg and the three books.
func NewTriangle(pair1, pair2, pair3 *orderbook.Book, cfg TriangleConfig) (*Triangle, error) {
	books := [3]*orderbook.Book{pair1, pair2, pair3}
	for i, b := range books {
		if b == nil {
			return nil, fmt.Errorf("arbitrage: pair%d book is nil: %w", i+1, domain.ErrInvalidTriangle)
		}
	}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if books[i] == books[j] || books[i].Symbol() == books[j].Symbol() {
				return nil, fmt.Errorf("arbitrage: pair%d and pair%d are the same book (%s): %w",
					i+1, j+1, books[i].Symbol(), domain.ErrInvalidTriangle)
			}
		}
	}
	if math.IsNaN(cfg.FeeRatePerLeg) || cfg.FeeRatePerLeg < 0 || cfg.FeeRatePerLeg >= 1 {
		return nil, fmt.Errorf("arbitrage: fee rate %v outside [0,1): %w", cfg.FeeRatePerLeg, domain.ErrInvalidTriangle)
	}
	if math.IsNaN(cfg.StartingCapital) || math.IsInf(cfg.StartingCapital, 0) || cfg.StartingCapital <= 0 {
		return nil, fmt.Errorf("arbitrage: starting capital %v must be positive: %w", cfg.StartingCapital, domain.ErrInvalidTriangle)
	}
	if math.IsNaN(cfg.MinProfitBps) {
		return nil, fmt.Errorf("arbitrage: min profit bps is NaN: %w", domain.ErrInvalidTriangle)
	}
	if cfg.Cross > CrossBaseB {
		return nil, fmt.Errorf("arbitrage: cross direction %d: %w", cfg.Cross, domain.ErrInvalidTriangle)
	}

	name := cfg.Name
	if name == "" {
		name = pair1.Symbol() + "/" + pair2.Symbol() + "/" + pair3.Symbol()
	}
	t := &Triangle{
		name:  name,
		books: books,
		keep:  1 - cfg.FeeRatePerLeg,
		cfg:   cfg,
	}
	for i, b := range books {
		t.factors[i] = float64(b.Pair().Factor)
	}
	return t, nil
}

// Name identifies the triangle in logs and records.
func (t *Triangle) Name() string { return t.name }

// Books returns pair1, pair2 and pair3 in order.
func (t *Triangle) Books() [3]*orderbook.Book { return t.books }

// Config returns the static parameters.
func (t *Triangle) Config() TriangleConfig { return t.cfg }

func (t *Triangle) generations() [3]uint64 {
	return [3]uint64{
		t.books[0].Generation(),
		t.books[1].Generation(),
		t.books[2].Generation(),
	}
}

// quote reads the best price of leg i on side as a decimal. A zero price
// counts as missing.
func (t *Triangle) quote(i int, side domain.Side) (domain.LegQuote, bool) {
	p, ok := t.books[i].Best(side)
	if !ok || p <= 0 {
		return domain.LegQuote{}, false
	}
	return domain.LegQuote{
		Symbol: t.books[i].Symbol(),
		Side:   side,
		Price:  float64(p) / t.factors[i],
	}, true
}
