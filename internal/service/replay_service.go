package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
)

// cancelCheckEvery bounds how many updates run between context checks.
const cancelCheckEvery = 4096

// ReplayService drives a historical update stream through the triangle's
// books on the calling goroutine and evaluates after every applied update.
type ReplayService struct {
	tri     *arbitrage.Triangle
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewReplayService creates a replay over tri. The books are reset at the
// start of each run.
func NewReplayService(tri *arbitrage.Triangle, m *metrics.Metrics, logger *slog.Logger) *ReplayService {
	return &ReplayService{
		tri:     tri,
		metrics: m,
		logger:  logger.With(slog.String("component", "replay_service")),
	}
}

// Run applies updates in order. Rejected updates are counted and skipped.
// Every qualifying evaluation counts as one opportunity; the best is the
// highest ProfitBps, earliest on ties.
func (s *ReplayService) Run(ctx context.Context, updates []domain.TimedUpdate) (domain.ReplayReport, error) {
	books := s.tri.Books()
	for _, b := range books {
		b.Reset()
	}
	det := arbitrage.NewDetector()
	rep := domain.ReplayReport{Triangle: s.tri.Name()}
	if len(updates) > 0 {
		rep.FirstUpdate = updates[0].Time
		rep.LastUpdate = updates[len(updates)-1].Time
	}

	var sumBps float64
	start := time.Now()
	for i, tu := range updates {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
		}
		if tu.Pair < 0 || tu.Pair >= len(books) {
			return rep, fmt.Errorf("replay_service: update %d: pair index %d: %w", i, tu.Pair, domain.ErrInvalidUpdate)
		}
		b := books[tu.Pair]
		if err := b.Apply(tu.Update); err != nil {
			rep.UpdatesRejected++
			s.metrics.ObserveUpdate(b.Symbol(), metrics.ResultRejected)
			continue
		}
		rep.UpdatesApplied++
		s.metrics.ObserveUpdate(b.Symbol(), metrics.ResultApplied)

		rep.Detections++
		res, ok := det.DetectResult(s.tri)
		if !ok {
			continue
		}
		rep.Opportunities++
		if res.Path == domain.Forward {
			rep.ForwardCount++
		} else {
			rep.ReverseCount++
		}
		rep.TotalProfit += res.ProfitAmount
		sumBps += res.ProfitBps
		if rep.Best == nil || res.ProfitBps > rep.Best.Opportunity.ProfitBps {
			rep.Best = &domain.OpportunityRecord{
				ID:          fmt.Sprintf("replay-%d", i),
				Triangle:    s.tri.Name(),
				Opportunity: res.Opportunity(),
				Legs:        res.Legs,
				DetectedAt:  tu.Time,
			}
		}
	}
	rep.Elapsed = time.Since(start)
	if rep.Opportunities > 0 {
		rep.AvgProfitBps = sumBps / float64(rep.Opportunities)
	}

	s.logger.InfoContext(ctx, "replay finished",
		slog.Int64("applied", rep.UpdatesApplied),
		slog.Int64("rejected", rep.UpdatesRejected),
		slog.Int64("opportunities", rep.Opportunities),
		slog.Duration("elapsed", rep.Elapsed),
	)
	return rep, nil
}
