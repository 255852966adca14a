// Package scale converts between decimal venue prices and the fixed-point
// integers the order books store. Everything here is pure; a Pair is plain
// configuration shared by the ingestion path, the books and the detector.
package scale

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Pair describes the representable price range of one trading pair. The tick
// size is exactly one scaled unit.
type Pair struct {
	Symbol      string
	Factor      int64
	MinPrice    domain.Price
	MaxPrice    domain.Price
	LotFactor   int64
	MaxQuantity domain.Quantity
}

// Validate reports every problem with the pair in a single error wrapping
// domain.ErrInvalidPair.
func (p Pair) Validate() error {
	var errs []string
	if strings.TrimSpace(p.Symbol) == "" {
		errs = append(errs, "symbol must not be empty")
	}
	if p.Factor <= 0 {
		errs = append(errs, fmt.Sprintf("scale factor must be > 0, got %d", p.Factor))
	}
	if p.MinPrice < 0 {
		errs = append(errs, fmt.Sprintf("min price must be >= 0, got %d", p.MinPrice))
	}
	if p.MinPrice > p.MaxPrice {
		errs = append(errs, fmt.Sprintf("min price %d exceeds max price %d", p.MinPrice, p.MaxPrice))
	}
	if p.LotFactor <= 0 {
		errs = append(errs, fmt.Sprintf("lot factor must be > 0, got %d", p.LotFactor))
	}
	if p.MaxQuantity <= 0 {
		errs = append(errs, fmt.Sprintf("max quantity must be > 0, got %d", p.MaxQuantity))
	}
	if len(errs) > 0 {
		return fmt.Errorf("scale: pair %q: %s: %w", p.Symbol, strings.Join(errs, "; "), domain.ErrInvalidPair)
	}
	return nil
}

// Contains reports whether price lies within [MinPrice, MaxPrice].
func (p Pair) Contains(price domain.Price) bool {
	return price >= p.MinPrice && price <= p.MaxPrice
}

// Levels is the number of ticks in the configured range.
func (p Pair) Levels() int64 {
	return int64(p.MaxPrice-p.MinPrice) + 1
}

// ToDecimal converts a scaled price back to its decimal value.
func (p Pair) ToDecimal(price domain.Price) float64 {
	return float64(price) / float64(p.Factor)
}

// FromDecimal scales a decimal price, rounding half away from zero.
func (p Pair) FromDecimal(f float64) domain.Price {
	return domain.Price(math.Round(f * float64(p.Factor)))
}

// QuantityToDecimal converts lot units back to a decimal size.
func (p Pair) QuantityToDecimal(q domain.Quantity) float64 {
	return float64(q) / float64(p.LotFactor)
}

// ParsePrice converts a venue price string to a scaled price without going
// through binary floating point. Range checks are left to the book.
func (p Pair) ParsePrice(s string) (domain.Price, error) {
	n, err := scaleString(s, p.Factor)
	if err != nil {
		return 0, fmt.Errorf("scale: parse price %q: %w", s, err)
	}
	return domain.Price(n), nil
}

// ParseQuantity converts a venue size string to lot units. Negative sizes
// fail with domain.ErrInvalidQuantity.
func (p Pair) ParseQuantity(s string) (domain.Quantity, error) {
	n, err := scaleString(s, p.LotFactor)
	if err != nil {
		return 0, fmt.Errorf("scale: parse quantity %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("scale: parse quantity %q: %w", s, domain.ErrInvalidQuantity)
	}
	return domain.Quantity(n), nil
}

func scaleString(s string, factor int64) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	scaled := d.Mul(decimal.NewFromInt(factor)).Round(0)
	if !scaled.BigInt().IsInt64() {
		return 0, domain.ErrOutOfRange
	}
	return scaled.IntPart(), nil
}
