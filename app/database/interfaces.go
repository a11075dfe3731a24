package database

import (
	"context"
	"errors"
)

// ErrConflict reports a write that violated the (source, source_id)
// uniqueness constraint. The caller should re-resolve and retry.
var ErrConflict = errors.New("opportunity already exists for source and source_id")

type OpportunityRepository interface {
	// FindBySourceID returns deleted records too, nil when nothing matches.
	FindBySourceID(ctx context.Context, source, sourceID string) (*Opportunity, error)
	// FindByFuzzyKey narrows by type only, ordered by most recently updated.
	FindByFuzzyKey(ctx context.Context, key FuzzyKey, includeDeleted bool) ([]Opportunity, error)
	Insert(ctx context.Context, opp *Opportunity) (int64, error)
	Update(ctx context.Context, opp *Opportunity) error
	SoftDelete(ctx context.Context, id int64) error

	ListActive(ctx context.Context, filter ListFilter) ([]Opportunity, error)
	GetStats(ctx context.Context) (*OpportunityStats, error)
}

type FetchRunRepository interface {
	RecordRun(ctx context.Context, run *FetchRun) error
	GetRecentRuns(ctx context.Context, limit int) ([]FetchRun, error)
}
