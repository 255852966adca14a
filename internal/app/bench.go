package app

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/feed"
)

// benchVolatility is the swing of the synthetic mid around the range centre.
const benchVolatility = 0.002

// benchResult summarises one operation's latency samples.
type benchResult struct {
	Op   string
	N    int
	Mean time.Duration
	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration
}

func (r benchResult) attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("op", r.Op),
		slog.Int("n", r.N),
		slog.Duration("mean", r.Mean),
		slog.Duration("p50", r.P50),
		slog.Duration("p95", r.P95),
		slog.Duration("p99", r.P99),
		slog.Duration("max", r.Max),
	}
}

// BenchMode times the hot-path operations against synthetic updates and
// logs their latency distribution.
func (a *App) BenchMode(ctx context.Context, _ *Dependencies) error {
	tri, err := buildTriangle(a.cfg.Triangle)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "bench starting",
		slog.Int("iterations", a.cfg.Bench.Iterations),
		slog.Int("warmup", a.cfg.Bench.Warmup),
	)
	for _, r := range runBench(tri, a.cfg.Bench.Iterations, a.cfg.Bench.Warmup) {
		a.logger.LogAttrs(ctx, slog.LevelInfo, "bench result", r.attrs()...)
	}
	return nil
}

// runBench applies warmup updates, then for every iteration applies one
// update and times Apply, BestBid, Spread, QuantityAt and Detect on it.
func runBench(tri *arbitrage.Triangle, iterations, warmup int) []benchResult {
	books := tri.Books()
	for _, b := range books {
		b.Reset()
	}
	perPair := (iterations+warmup)/len(books) + 1
	var streams [3][]domain.TimedUpdate
	for i, b := range books {
		sp := b.Pair()
		centre := sp.ToDecimal((sp.MinPrice + sp.MaxPrice) / 2)
		streams[i] = feed.Synthetic(i, sp, centre, benchVolatility, perPair)
	}
	updates := feed.Merge(streams[:]...)

	for i := range warmup {
		u := updates[i%len(updates)]
		_ = books[u.Pair].Apply(u.Update)
	}

	ops := []string{"apply", "best_bid", "spread", "quantity_at", "detect"}
	samples := make([][]time.Duration, len(ops))
	for i := range samples {
		samples[i] = make([]time.Duration, iterations)
	}
	det := arbitrage.NewDetector()

	for i := range iterations {
		u := updates[(warmup+i)%len(updates)]
		b := books[u.Pair]

		t0 := time.Now()
		_ = b.Apply(u.Update)
		t1 := time.Now()
		_, _ = b.BestBid()
		t2 := time.Now()
		_, _ = b.Spread()
		t3 := time.Now()
		_, _ = b.QuantityAt(u.Update.Price, u.Update.Side)
		t4 := time.Now()
		_, _ = det.Detect(tri)
		t5 := time.Now()

		samples[0][i] = t1.Sub(t0)
		samples[1][i] = t2.Sub(t1)
		samples[2][i] = t3.Sub(t2)
		samples[3][i] = t4.Sub(t3)
		samples[4][i] = t5.Sub(t4)
	}

	out := make([]benchResult, len(ops))
	for i, op := range ops {
		out[i] = summarise(op, samples[i])
	}
	return out
}

// summarise sorts s in place.
func summarise(op string, s []time.Duration) benchResult {
	r := benchResult{Op: op, N: len(s)}
	if len(s) == 0 {
		return r
	}
	slices.Sort(s)
	var total time.Duration
	for _, d := range s {
		total += d
	}
	r.Mean = total / time.Duration(len(s))
	r.P50 = percentile(s, 0.50)
	r.P95 = percentile(s, 0.95)
	r.P99 = percentile(s, 0.99)
	r.Max = s[len(s)-1]
	return r
}

// percentile uses nearest rank on sorted samples.
func percentile(sorted []time.Duration, q float64) time.Duration {
	return sorted[int(q*float64(len(sorted)-1)+0.5)]
}
