package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/metrics"
)

// DetectionService is the coordinating loop: it evaluates the triangle each
// time a book changes, or every interval when the books are quiet, and hands
// qualifying results to the ArbService.
type DetectionService struct {
	tri      *arbitrage.Triangle
	det      *arbitrage.Detector
	books    *BookService
	arb      *ArbService
	metrics  *metrics.Metrics
	interval time.Duration
	logger   *slog.Logger
}

// NewDetectionService creates the loop for tri, whose books must be the ones
// owned by books.
func NewDetectionService(tri *arbitrage.Triangle, books *BookService, arb *ArbService, m *metrics.Metrics, interval time.Duration, logger *slog.Logger) *DetectionService {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &DetectionService{
		tri:      tri,
		det:      arbitrage.NewDetector(),
		books:    books,
		arb:      arb,
		metrics:  m,
		interval: interval,
		logger:   logger.With(slog.String("component", "detection_service")),
	}
}

// Stats returns the detector's memo hit and miss counts.
func (s *DetectionService) Stats() (hits, misses uint64) { return s.det.Stats() }

// Run blocks until ctx is cancelled.
func (s *DetectionService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("detection loop started", slog.String("triangle", s.tri.Name()))
	defer func() {
		hits, misses := s.det.Stats()
		s.logger.Info("detection loop stopped",
			slog.Uint64("memo_hits", hits),
			slog.Uint64("memo_misses", misses),
		)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.books.Wake():
		case <-ticker.C:
		}
		s.detectOnce(ctx)
	}
}

// detectOnce runs one evaluation and reports whether an opportunity was
// recorded. Nothing is evaluated until every book is synced.
func (s *DetectionService) detectOnce(ctx context.Context) bool {
	if !s.books.Synced() {
		return false
	}
	start := time.Now()
	res, ok := s.det.DetectResult(s.tri)
	s.metrics.ObserveDetection(time.Since(start))
	if !ok {
		return false
	}
	_, recorded, err := s.arb.Record(ctx, s.tri.Name(), res)
	if err != nil {
		s.logger.WarnContext(ctx, "record opportunity failed", slog.String("error", err.Error()))
	}
	return recorded
}
