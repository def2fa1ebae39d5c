package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"riskwatch/internal/types"
)

// ResultRepository provides data access for the risk_results table, the
// persisted per-neighborhood engine evaluations served by the read API.
//
// Forecast and recommendations are JSONB columns; types.ForecastPoints and
// types.Recommendations implement Valuer/Scanner so rows round-trip without
// per-call marshalling here.
type ResultRepository struct {
	db DBTX
}

// NewResultRepository creates a new ResultRepository backed by the given
// database connection (pool or transaction).
func NewResultRepository(db DBTX) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `evaluation_id, neighborhood_id, evaluated_at,
	score, tier, dominant_indicator, effectiveness_ratio,
	trend, forecast, recommendations, periods`

// resultColumnCount tracks the placeholder arity of one VALUES tuple in
// InsertBatch. Keep in sync with resultColumns.
const resultColumnCount = 11

// InsertBatch stores one evaluation's results in a single multi-row insert.
func (r *ResultRepository) InsertBatch(ctx context.Context, evaluationID string, results []*types.RiskResult) error {
	if len(results) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO risk_results (` + resultColumns + `) VALUES `)

	args := make([]any, 0, len(results)*resultColumnCount)
	for i, res := range results {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * resultColumnCount
		sb.WriteByte('(')
		for j := 1; j <= resultColumnCount; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteByte(')')

		args = append(args,
			evaluationID,
			res.NeighborhoodID,
			res.EvaluatedAt,
			res.Score,
			string(res.Tier),
			string(res.DominantIndicator),
			res.EffectivenessRatio,
			string(res.Trend),
			res.Forecast,
			res.Recommendations,
			res.Periods,
		)
	}

	if _, err := r.db.Exec(ctx, sb.String(), args...); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to insert %d evaluation results", len(results)), err)
	}
	return nil
}

// LatestByNeighborhood returns the most recent stored result for the
// neighborhood. Returns a not_found_result AppError when no evaluation has
// covered it yet.
func (r *ResultRepository) LatestByNeighborhood(ctx context.Context, neighborhoodID string) (*types.RiskResult, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM risk_results
		 WHERE neighborhood_id = $1
		 ORDER BY evaluated_at DESC
		 LIMIT 1`,
		neighborhoodID)

	var res types.RiskResult
	var evaluationID, tier, dominant, trend string
	err := row.Scan(
		&evaluationID,
		&res.NeighborhoodID,
		&res.EvaluatedAt,
		&res.Score,
		&tier,
		&dominant,
		&res.EffectivenessRatio,
		&trend,
		&res.Forecast,
		&res.Recommendations,
		&res.Periods,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundResult,
				fmt.Sprintf("no stored evaluation for neighborhood %q", neighborhoodID), nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query latest result", err)
	}

	res.Tier = types.Tier(tier)
	res.DominantIndicator = types.DominantIndicator(dominant)
	res.Trend = types.TrendDirection(trend)
	return &res, nil
}
