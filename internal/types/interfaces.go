package types

import "context"

// IndicatorRepository persists and retrieves per-neighborhood indicator
// records. Implementations live in internal/db; consumers depend only on
// this interface.
type IndicatorRepository interface {
	// BulkUpsert inserts or replaces records keyed by (neighborhood, period).
	BulkUpsert(ctx context.Context, records []IndicatorRecord) error

	// ListByNeighborhood returns the neighborhood's records ordered by period
	// ascending. Returns an empty slice, not an error, for an unknown ID.
	ListByNeighborhood(ctx context.Context, neighborhoodID string) ([]IndicatorRecord, error)

	// ListAll returns every stored record ordered by neighborhood then period.
	ListAll(ctx context.Context) ([]IndicatorRecord, error)

	// ListBefore returns records strictly older than the cutoff period,
	// ordered by neighborhood then period. Used by the archiver.
	ListBefore(ctx context.Context, cutoff Period) ([]IndicatorRecord, error)

	// DeleteBefore removes records strictly older than the cutoff period and
	// reports how many were removed.
	DeleteBefore(ctx context.Context, cutoff Period) (int64, error)

	// Neighborhoods returns the distinct neighborhood IDs with their latest
	// reporting period, ordered by ID.
	Neighborhoods(ctx context.Context) ([]NeighborhoodSummary, error)

	// MaxPeriod returns the most recent period across all neighborhoods.
	// ok is false when the table is empty.
	MaxPeriod(ctx context.Context) (p Period, ok bool, err error)
}

// ResultRepository persists engine evaluations for the presentation layer.
type ResultRepository interface {
	// InsertBatch stores one evaluation's results.
	InsertBatch(ctx context.Context, evaluationID string, results []*RiskResult) error

	// LatestByNeighborhood returns the most recent stored result for the
	// neighborhood, or a not_found_result AppError.
	LatestByNeighborhood(ctx context.Context, neighborhoodID string) (*RiskResult, error)
}

// RepositoryRegistry bundles the repositories the API server depends on.
type RepositoryRegistry interface {
	Indicators() IndicatorRepository
	Results() ResultRepository
}

// NeighborhoodSummary pairs a neighborhood with its most recent period.
type NeighborhoodSummary struct {
	NeighborhoodID string `json:"neighborhood_id" db:"neighborhood_id"`
	LatestPeriod   Period `json:"latest_period" db:"-"`
	RecordCount    int    `json:"record_count" db:"record_count"`
}

// EvaluationTrigger enqueues re-evaluation requests for the worker pipeline.
type EvaluationTrigger interface {
	TriggerEvaluation(ctx context.Context, neighborhoodIDs []string, reason string) error
}
