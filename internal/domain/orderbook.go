package domain

import (
	"fmt"
	"strings"
	"time"
)

// Price is a fixed-point price: the decimal price multiplied by the pair's
// scale factor and rounded to the nearest integer.
type Price int64

// Quantity is a level size in the venue's native lot units.
type Quantity int64

// Side selects one half of an order book.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// MarshalText renders the side name in JSON payloads.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any spelling ParseSide does.
func (s *Side) UnmarshalText(text []byte) error {
	v, ok := ParseSide(string(text))
	if !ok {
		return fmt.Errorf("domain: unknown side %q: %w", text, ErrInvalidUpdate)
	}
	*s = v
	return nil
}

// ParseSide accepts the spellings venues and CSV exports use for each side.
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bid", "bids", "buy", "b":
		return Bid, true
	case "ask", "asks", "sell", "offer", "a", "s":
		return Ask, true
	default:
		return 0, false
	}
}

// PriceLevel is one occupied price on one side. A zero quantity means the
// level is absent.
type PriceLevel struct {
	Price    Price    `json:"price"`
	Quantity Quantity `json:"quantity"`
}

// UpdateKind distinguishes a level write from a level removal.
type UpdateKind uint8

const (
	UpdateSet UpdateKind = iota
	UpdateRemove
)

// Update is a single incremental change for one pair's book. Quantity is
// ignored for removals.
type Update struct {
	Kind     UpdateKind
	Side     Side
	Price    Price
	Quantity Quantity
}

// SetLevel builds a Set update. A zero quantity is applied as a removal.
func SetLevel(side Side, price Price, qty Quantity) Update {
	return Update{Kind: UpdateSet, Side: side, Price: price, Quantity: qty}
}

// RemoveLevel builds a Remove update.
func RemoveLevel(side Side, price Price) Update {
	return Update{Kind: UpdateRemove, Side: side, Price: price}
}

// TimedUpdate is an Update tagged with the pair it belongs to and its venue
// timestamp. Replay merges streams of these by time.
type TimedUpdate struct {
	Pair   int
	Time   time.Time
	Update Update
}

// BookLevel is a monitoring view of a level with decimal values attached.
type BookLevel struct {
	Price        Price    `json:"price"`
	Quantity     Quantity `json:"quantity"`
	PriceDecimal float64  `json:"price_decimal"`
}

// BookView is a point-in-time copy of one book, built by its owner for
// readers on other goroutines.
type BookView struct {
	Symbol     string      `json:"symbol"`
	BestBid    *Price      `json:"best_bid,omitempty"`
	BestAsk    *Price      `json:"best_ask,omitempty"`
	Spread     *Price      `json:"spread,omitempty"`
	BidTotal   Quantity    `json:"bid_total"`
	AskTotal   Quantity    `json:"ask_total"`
	BidLevels  int         `json:"bid_levels"`
	AskLevels  int         `json:"ask_levels"`
	Bids       []BookLevel `json:"bids"`
	Asks       []BookLevel `json:"asks"`
	Generation uint64      `json:"generation"`
	Synced     bool        `json:"synced"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
