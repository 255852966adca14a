package domain

import "context"

// OpportunityStore persists detected opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, rec OpportunityRecord) error
	ListRecent(ctx context.Context, limit int) ([]OpportunityRecord, error)
}

// ReplayStore keeps finished replay reports.
type ReplayStore interface {
	InsertReplay(ctx context.Context, id string, r ReplayReport) error
}
