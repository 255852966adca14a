package domain

import (
	"context"
	"time"
)

// TopOfBook is the mirrored best prices of one book in decimal form.
type TopOfBook struct {
	Symbol    string
	BestBid   float64
	BestAsk   float64
	HasBid    bool
	HasAsk    bool
	UpdatedAt time.Time
}

// BookCache mirrors top-of-book state for consumers outside the process.
type BookCache interface {
	SetTop(ctx context.Context, top TopOfBook) error
	GetTop(ctx context.Context, symbol string) (TopOfBook, error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter admits or rejects one request for key within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
