package feed

import (
	"math"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/scale"
)

// syntheticEpoch anchors generated timestamps so runs are reproducible.
var syntheticEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Synthetic generates n bid/ask pairs of updates oscillating around base
// (a decimal price) by up to volatility (a fraction of base). Prices are
// clamped to the pair's range and sizes to its quantity ceiling, so every
// update is valid for a book built from sp.
func Synthetic(pair int, sp scale.Pair, base, volatility float64, n int) []domain.TimedUpdate {
	out := make([]domain.TimedUpdate, 0, 2*n)
	ts := syntheticEpoch
	for i := range n {
		t := float64(i) / 100
		wave := math.Sin(t*0.1)*volatility + math.Cos(t*0.05)*volatility*0.5
		mid := sp.FromDecimal(base * (1 + wave))

		spread := domain.Price(20 + i%30)
		bid := clampPrice(sp, mid-spread)
		ask := clampPrice(sp, mid+spread)
		if ask <= bid && ask < sp.MaxPrice {
			ask = bid + 1
		}
		qty := min(domain.Quantity(sp.LotFactor/10*int64(1+i%50)), sp.MaxQuantity)
		if qty <= 0 {
			qty = 1
		}

		out = append(out,
			domain.TimedUpdate{Pair: pair, Time: ts, Update: domain.SetLevel(domain.Bid, bid, qty)},
			domain.TimedUpdate{Pair: pair, Time: ts, Update: domain.SetLevel(domain.Ask, ask, qty)},
		)
		ts = ts.Add(time.Duration(50+i%20) * time.Millisecond)
	}
	return out
}

func clampPrice(sp scale.Pair, p domain.Price) domain.Price {
	return min(max(p, sp.MinPrice), sp.MaxPrice)
}
