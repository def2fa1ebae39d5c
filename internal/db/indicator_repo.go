package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"riskwatch/internal/types"
)

// IndicatorRepository provides data access for the indicators table, the
// per-neighborhood, per-period public-safety statistics the engine consumes.
//
// The period is stored as (period_year, period_index) so the composite
// primary key (neighborhood_id, period_year, period_index) gives natural
// upsert semantics: re-ingesting a period replaces the prior statistics.
type IndicatorRepository struct {
	db DBTX
}

// NewIndicatorRepository creates a new IndicatorRepository backed by the
// given database connection (pool or transaction).
func NewIndicatorRepository(db DBTX) *IndicatorRepository {
	return &IndicatorRepository{db: db}
}

// indicatorColumns is the standard column set for indicator queries. The
// scan helpers depend on this exact order.
const indicatorColumns = `neighborhood_id, period_year, period_index,
	crime_count, deaths_in_intervention, arrests,
	weapons_seized, drugs_seized_kg, officers_involved, operation_type`

// indicatorColumnCount tracks the placeholder arity of one VALUES tuple in
// BulkUpsert. Keep in sync with indicatorColumns.
const indicatorColumnCount = 10

// scanIndicatorFromRows scans one row in indicatorColumns order.
func scanIndicatorFromRows(rows pgx.Rows) (types.IndicatorRecord, error) {
	var rec types.IndicatorRecord
	var opType *string
	err := rows.Scan(
		&rec.NeighborhoodID,
		&rec.Period.Year,
		&rec.Period.Index,
		&rec.CrimeCount,
		&rec.DeathsInIntervention,
		&rec.Arrests,
		&rec.WeaponsSeized,
		&rec.DrugsSeizedKg,
		&rec.OfficersInvolved,
		&opType,
	)
	if err != nil {
		return types.IndicatorRecord{}, err
	}
	if opType != nil {
		rec.OperationType = types.OperationType(*opType)
	} else {
		rec.OperationType = types.OperationNone
	}
	return rec, nil
}

// collectIndicators drains a rows cursor into a slice, wrapping scan and
// iteration errors uniformly.
func collectIndicators(rows pgx.Rows) ([]types.IndicatorRecord, error) {
	defer rows.Close()

	records := make([]types.IndicatorRecord, 0)
	for rows.Next() {
		rec, err := scanIndicatorFromRows(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan indicator row", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating indicator rows", err)
	}
	return records, nil
}

// BulkUpsert inserts or replaces records keyed by (neighborhood, period) in a
// single multi-row statement. Callers validate records before storage; this
// method assumes the batch is well formed.
func (r *IndicatorRepository) BulkUpsert(ctx context.Context, records []types.IndicatorRecord) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO indicators (` + indicatorColumns + `) VALUES `)

	args := make([]any, 0, len(records)*indicatorColumnCount)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * indicatorColumnCount
		sb.WriteByte('(')
		for j := 1; j <= indicatorColumnCount; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteByte(')')

		opType := rec.OperationType
		if opType == "" {
			opType = types.OperationNone
		}
		args = append(args,
			rec.NeighborhoodID,
			rec.Period.Year,
			rec.Period.Index,
			rec.CrimeCount,
			rec.DeathsInIntervention,
			rec.Arrests,
			rec.WeaponsSeized,
			rec.DrugsSeizedKg,
			rec.OfficersInvolved,
			string(opType),
		)
	}

	sb.WriteString(` ON CONFLICT (neighborhood_id, period_year, period_index) DO UPDATE SET
		crime_count = EXCLUDED.crime_count,
		deaths_in_intervention = EXCLUDED.deaths_in_intervention,
		arrests = EXCLUDED.arrests,
		weapons_seized = EXCLUDED.weapons_seized,
		drugs_seized_kg = EXCLUDED.drugs_seized_kg,
		officers_involved = EXCLUDED.officers_involved,
		operation_type = EXCLUDED.operation_type,
		updated_at = NOW()`)

	if _, err := r.db.Exec(ctx, sb.String(), args...); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to upsert %d indicator records", len(records)), err)
	}
	return nil
}

// ListByNeighborhood returns the neighborhood's records ordered by period
// ascending. An unknown neighborhood yields an empty slice, not an error.
func (r *IndicatorRepository) ListByNeighborhood(ctx context.Context, neighborhoodID string) ([]types.IndicatorRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+indicatorColumns+`
		 FROM indicators
		 WHERE neighborhood_id = $1
		 ORDER BY period_year, period_index`,
		neighborhoodID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list indicators by neighborhood", err)
	}
	return collectIndicators(rows)
}

// ListAll returns every stored record ordered by neighborhood then period.
// The full table is the evaluation unit, so no pagination is offered here.
func (r *IndicatorRepository) ListAll(ctx context.Context) ([]types.IndicatorRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+indicatorColumns+`
		 FROM indicators
		 ORDER BY neighborhood_id, period_year, period_index`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list indicators", err)
	}
	return collectIndicators(rows)
}

// ListBefore returns records strictly older than the cutoff period, ordered
// by neighborhood then period. The archiver exports these before deletion.
func (r *IndicatorRepository) ListBefore(ctx context.Context, cutoff types.Period) ([]types.IndicatorRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+indicatorColumns+`
		 FROM indicators
		 WHERE (period_year * 12 + period_index - 1) < $1
		 ORDER BY neighborhood_id, period_year, period_index`,
		cutoff.Ordinal())
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list indicators before cutoff", err)
	}
	return collectIndicators(rows)
}

// DeleteBefore removes records strictly older than the cutoff period and
// reports how many were removed.
func (r *IndicatorRepository) DeleteBefore(ctx context.Context, cutoff types.Period) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM indicators
		 WHERE (period_year * 12 + period_index - 1) < $1`,
		cutoff.Ordinal())
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete indicators before cutoff", err)
	}
	return tag.RowsAffected(), nil
}

// Neighborhoods returns the distinct neighborhood IDs with their latest
// reporting period and record count, ordered by ID.
func (r *IndicatorRepository) Neighborhoods(ctx context.Context) ([]types.NeighborhoodSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT neighborhood_id,
		        MAX(period_year * 12 + period_index - 1) AS latest_ordinal,
		        COUNT(*) AS record_count
		 FROM indicators
		 GROUP BY neighborhood_id
		 ORDER BY neighborhood_id`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list neighborhoods", err)
	}
	defer rows.Close()

	summaries := make([]types.NeighborhoodSummary, 0)
	for rows.Next() {
		var s types.NeighborhoodSummary
		var latestOrdinal int
		if err := rows.Scan(&s.NeighborhoodID, &latestOrdinal, &s.RecordCount); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan neighborhood summary", err)
		}
		s.LatestPeriod = types.PeriodFromOrdinal(latestOrdinal)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating neighborhood summaries", err)
	}
	return summaries, nil
}

// MaxPeriod returns the most recent period across all neighborhoods.
// ok is false when the table is empty.
func (r *IndicatorRepository) MaxPeriod(ctx context.Context) (types.Period, bool, error) {
	var latestOrdinal *int
	err := r.db.QueryRow(ctx,
		`SELECT MAX(period_year * 12 + period_index - 1) FROM indicators`).
		Scan(&latestOrdinal)
	if err != nil {
		return types.Period{}, false, types.NewAppError(types.ErrCodeInternalDB, "failed to query max period", err)
	}
	if latestOrdinal == nil {
		return types.Period{}, false, nil
	}
	return types.PeriodFromOrdinal(*latestOrdinal), true, nil
}
