package app

import (
	"fmt"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/orderbook"
)

// buildTriangle creates three empty books and binds them into a triangle.
func buildTriangle(cfg config.TriangleConfig) (*arbitrage.Triangle, error) {
	var books [3]*orderbook.Book
	for i, p := range cfg.Pairs() {
		b, err := orderbook.New(p.Scale())
		if err != nil {
			return nil, fmt.Errorf("app: pair%d %s: %w", i+1, p.Symbol, err)
		}
		books[i] = b
	}
	cross, err := arbitrage.ParseCrossDirection(cfg.CrossDirection)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	tri, err := arbitrage.NewTriangle(books[0], books[1], books[2], arbitrage.TriangleConfig{
		Name:            cfg.Name,
		FeeRatePerLeg:   cfg.FeeRatePerLeg,
		MinProfitBps:    cfg.MinProfitBps,
		StartingCapital: cfg.StartingCapital,
		Cross:           cross,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return tri, nil
}
