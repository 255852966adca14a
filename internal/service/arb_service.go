package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/notify"
)

// Bus destinations for detected opportunities.
const (
	ArbChannel = "arb"
	ArbStream  = "stream:arb"
)

// ArbConfig tunes how detections are deduplicated and announced.
type ArbConfig struct {
	// Cooldown suppresses repeats of the same path unless profit improves.
	Cooldown     time.Duration
	RecentSize   int
	NotifyPerMin float64
	NotifyBurst  int
}

type lastReport struct {
	at  time.Time
	bps float64
}

// ArbService turns detector output into OpportunityRecords and fans them out
// to the store, the signal bus and the notifier. Store, bus and notifier are
// optional.
type ArbService struct {
	store    domain.OpportunityStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	cfg      ArbConfig
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	last   map[domain.Path]lastReport
	recent []domain.OpportunityRecord
	next   int
	full   bool
}

// NewArbService creates an ArbService.
func NewArbService(
	store domain.OpportunityStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	cfg ArbConfig,
	logger *slog.Logger,
) *ArbService {
	if cfg.RecentSize <= 0 {
		cfg.RecentSize = 200
	}
	limit := rate.Inf
	if cfg.NotifyPerMin > 0 {
		limit = rate.Limit(cfg.NotifyPerMin / 60)
	}
	return &ArbService{
		store:    store,
		bus:      bus,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, max(cfg.NotifyBurst, 1)),
		logger:   logger.With(slog.String("component", "arb_service")),
		now:      time.Now,
		last:     make(map[domain.Path]lastReport, 2),
		recent:   make([]domain.OpportunityRecord, cfg.RecentSize),
	}
}

// Record reports r for triangle unless it repeats the last report of the same
// path within the cooldown without a higher profit. It returns the record and
// whether it was reported. Only a store failure is returned as an error; bus
// and notifier failures are logged.
func (s *ArbService) Record(ctx context.Context, triangle string, r arbitrage.PathResult) (domain.OpportunityRecord, bool, error) {
	now := s.now()

	s.mu.Lock()
	if prev, ok := s.last[r.Path]; ok && now.Sub(prev.at) < s.cfg.Cooldown && r.ProfitBps <= prev.bps {
		s.mu.Unlock()
		return domain.OpportunityRecord{}, false, nil
	}
	s.last[r.Path] = lastReport{at: now, bps: r.ProfitBps}
	rec := domain.OpportunityRecord{
		ID:          uuid.NewString(),
		Triangle:    triangle,
		Opportunity: r.Opportunity(),
		Legs:        r.Legs,
		DetectedAt:  now,
	}
	s.push(rec)
	s.mu.Unlock()

	s.metrics.ObserveOpportunity(rec.Opportunity)
	s.logger.InfoContext(ctx, "opportunity detected",
		slog.String("opp_id", rec.ID),
		slog.String("path", rec.Opportunity.Path.String()),
		slog.Float64("profit_bps", rec.Opportunity.ProfitBps),
		slog.Float64("profit", rec.Opportunity.ProfitAmount),
	)

	if s.store != nil {
		if err := s.store.Insert(ctx, rec); err != nil {
			return rec, true, fmt.Errorf("arb_service: insert opportunity: %w", err)
		}
	}
	s.publish(ctx, rec)
	s.announce(ctx, rec)
	return rec, true, nil
}

func (s *ArbService) publish(ctx context.Context, rec domain.OpportunityRecord) {
	if s.bus == nil {
		return
	}
	evt, err := json.Marshal(rec)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal opportunity failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, ArbChannel, evt); err != nil {
		s.logger.WarnContext(ctx, "publish opportunity failed",
			slog.String("opp_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, ArbStream, evt); err != nil {
		s.logger.WarnContext(ctx, "append opportunity to stream failed",
			slog.String("opp_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

// announce notifies in the background so a slow chat API never stalls
// detection. The limiter caps the alert rate.
func (s *ArbService) announce(ctx context.Context, rec domain.OpportunityRecord) {
	if !s.notifier.Enabled(notify.EventArbDetected) {
		return
	}
	if !s.limiter.Allow() {
		s.logger.DebugContext(ctx, "notification rate limited", slog.String("opp_id", rec.ID))
		return
	}
	title, body := notify.OpportunityMessage(rec)
	go func() {
		_ = s.notifier.Notify(context.WithoutCancel(ctx), notify.EventArbDetected, title, body)
	}()
}

// push stores rec in the recent ring. Caller holds s.mu.
func (s *ArbService) push(rec domain.OpportunityRecord) {
	s.recent[s.next] = rec
	s.next++
	if s.next == len(s.recent) {
		s.next = 0
		s.full = true
	}
}

// Recent returns up to limit in-memory records, newest first.
func (s *ArbService) Recent(limit int) []domain.OpportunityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next
	if s.full {
		n = len(s.recent)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.OpportunityRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.recent)) % len(s.recent)
		out = append(out, s.recent[idx])
	}
	return out
}

// ListRecent reads from the store when one is configured and falls back to
// the in-memory ring otherwise.
func (s *ArbService) ListRecent(ctx context.Context, limit int) ([]domain.OpportunityRecord, error) {
	if s.store == nil {
		return s.Recent(limit), nil
	}
	recs, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("arb_service: list recent: %w", err)
	}
	return recs, nil
}
