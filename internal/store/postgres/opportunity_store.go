package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OpportunityStore implements domain.OpportunityStore and domain.ReplayStore.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var (
	_ domain.OpportunityStore = (*OpportunityStore)(nil)
	_ domain.ReplayStore      = (*OpportunityStore)(nil)
)

// NewOpportunityStore creates an OpportunityStore backed by pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert writes one opportunity record. Legs are kept as JSONB.
func (s *OpportunityStore) Insert(ctx context.Context, rec domain.OpportunityRecord) error {
	legs, err := json.Marshal(rec.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal legs: %w", err)
	}
	const q = `
		INSERT INTO opportunities
			(id, triangle, path, profit_amount, profit_bps, input_amount, output_amount, legs, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	o := rec.Opportunity
	_, err = s.pool.Exec(ctx, q,
		rec.ID, rec.Triangle, o.Path.String(),
		o.ProfitAmount, o.ProfitBps, o.InputAmount, o.OutputAmount,
		legs, rec.DetectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns records newest first. limit <= 0 returns every row.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.OpportunityRecord, error) {
	q := `
		SELECT id::text, triangle, path, profit_amount, profit_bps,
		       input_amount, output_amount, legs, detected_at
		FROM opportunities
		ORDER BY detected_at DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanOpportunity)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan opportunities: %w", err)
	}
	return recs, nil
}

func scanOpportunity(row pgx.CollectableRow) (domain.OpportunityRecord, error) {
	var (
		rec  domain.OpportunityRecord
		path string
		legs []byte
	)
	o := &rec.Opportunity
	if err := row.Scan(&rec.ID, &rec.Triangle, &path,
		&o.ProfitAmount, &o.ProfitBps, &o.InputAmount, &o.OutputAmount,
		&legs, &rec.DetectedAt); err != nil {
		return rec, err
	}
	p, err := domain.ParsePath(path)
	if err != nil {
		return rec, err
	}
	o.Path = p
	if err := json.Unmarshal(legs, &rec.Legs); err != nil {
		return rec, fmt.Errorf("legs of %s: %w", rec.ID, err)
	}
	return rec, nil
}

// InsertReplay stores a finished replay report under id.
func (s *OpportunityStore) InsertReplay(ctx context.Context, id string, r domain.ReplayReport) error {
	var best []byte
	if r.Best != nil {
		b, err := json.Marshal(r.Best)
		if err != nil {
			return fmt.Errorf("postgres: marshal best: %w", err)
		}
		best = b
	}
	const q = `
		INSERT INTO replay_reports
			(id, triangle, updates_applied, updates_rejected, detections, opportunities,
			 forward_count, reverse_count, total_profit, avg_profit_bps, best,
			 first_update, last_update, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.pool.Exec(ctx, q,
		id, r.Triangle, r.UpdatesApplied, r.UpdatesRejected, r.Detections, r.Opportunities,
		r.ForwardCount, r.ReverseCount, r.TotalProfit, r.AvgProfitBps, best,
		nullTime(r.FirstUpdate), nullTime(r.LastUpdate), r.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert replay report %s: %w", id, err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
