package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// periodsPerYear fixes the reporting cadence to monthly. The ordinal math in
// Period depends on this constant; changing it invalidates stored ordinals.
const periodsPerYear = 12

// Period identifies a reporting period as (year, index-within-year).
// Index is 1-based (1 = January for monthly cadence). Periods order totally
// via Ordinal, which is also the x-axis for trend fitting.
type Period struct {
	Year  int `json:"year"`
	Index int `json:"index"`
}

// Ordinal returns the absolute period number used as the regression
// predictor. Consecutive periods differ by exactly 1 across year boundaries.
func (p Period) Ordinal() int {
	return p.Year*periodsPerYear + (p.Index - 1)
}

// Next returns the period immediately following p.
func (p Period) Next() Period {
	return PeriodFromOrdinal(p.Ordinal() + 1)
}

// Before reports whether p orders strictly before other.
func (p Period) Before(other Period) bool {
	return p.Ordinal() < other.Ordinal()
}

// IsZero reports whether p is the zero value.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Index == 0
}

// String renders the canonical "YYYY-NN" form, e.g. "2026-03".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Index)
}

// PeriodFromOrdinal inverts Period.Ordinal.
func PeriodFromOrdinal(ord int) Period {
	return Period{Year: ord / periodsPerYear, Index: ord%periodsPerYear + 1}
}

// ParsePeriod parses the canonical "YYYY-NN" form produced by Period.String.
func ParsePeriod(s string) (Period, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("period %q: want YYYY-NN", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("period %q: bad year: %w", s, err)
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("period %q: bad index: %w", s, err)
	}
	p := Period{Year: year, Index: idx}
	if !p.Valid() {
		return Period{}, fmt.Errorf("period %q: out of range", s)
	}
	return p, nil
}

// Valid reports whether the period fields are in range.
func (p Period) Valid() bool {
	return p.Year >= 1900 && p.Year <= 9999 && p.Index >= 1 && p.Index <= periodsPerYear
}

// IndicatorRecord is one neighborhood's public-safety statistics for one
// reporting period. Records are supplied by the ingest collaborator and are
// never mutated by the engine.
type IndicatorRecord struct {
	NeighborhoodID       string        `json:"neighborhood_id" db:"neighborhood_id" validate:"required,max=120"`
	Period               Period        `json:"period" db:"-"`
	CrimeCount           int           `json:"crime_count" db:"crime_count" validate:"min=0"`
	DeathsInIntervention int           `json:"deaths_in_intervention" db:"deaths_in_intervention" validate:"min=0"`
	Arrests              int           `json:"arrests" db:"arrests" validate:"min=0"`
	WeaponsSeized        int           `json:"weapons_seized" db:"weapons_seized" validate:"min=0"`
	DrugsSeizedKg        float64       `json:"drugs_seized_kg" db:"drugs_seized_kg" validate:"min=0"`
	OfficersInvolved     int           `json:"officers_involved" db:"officers_involved" validate:"min=0"`
	OperationType        OperationType `json:"operation_type" db:"operation_type"`
}

// HasActiveOperation reports whether any police operation was recorded for
// the period. OperationNone is the sentinel for "no active operation".
func (r IndicatorRecord) HasActiveOperation() bool {
	return r.OperationType != "" && r.OperationType != OperationNone
}

// SeriesPoint is one observation of the crime-count time series handed to the
// trend forecaster. PeriodIndex is Period.Ordinal for stored records, but any
// strictly increasing integer axis is accepted.
type SeriesPoint struct {
	PeriodIndex int     `json:"period_index"`
	CrimeCount  float64 `json:"crime_count"`
}

// ForecastPoint is one projected period of the trend forecast.
type ForecastPoint struct {
	Period         Period  `json:"period"`
	PredictedCount float64 `json:"predicted_count"`
}

// RiskResult is the engine's per-neighborhood output. Instances are created
// fresh per evaluation and owned by the caller.
type RiskResult struct {
	NeighborhoodID string    `json:"neighborhood_id" db:"neighborhood_id"`
	EvaluatedAt    time.Time `json:"evaluated_at" db:"evaluated_at"`

	Score             float64           `json:"score" db:"score"`
	Tier              Tier              `json:"tier" db:"tier"`
	DominantIndicator DominantIndicator `json:"dominant_indicator" db:"dominant_indicator"`

	// EffectivenessRatio is nil when effectiveness is undefined (no operation
	// and no enforcement outcomes). A nil here must never be flattened to 0.
	EffectivenessRatio *float64 `json:"effectiveness_ratio,omitempty" db:"effectiveness_ratio"`

	Trend TrendDirection `json:"trend" db:"trend"`

	// Forecast is absent (nil) when fewer than 2 historical points exist.
	Forecast ForecastPoints `json:"forecast,omitempty" db:"forecast"`

	Recommendations Recommendations `json:"recommendations" db:"recommendations"`

	// Periods is the number of historical periods the evaluation covered.
	Periods int `json:"periods" db:"periods"`
}

// Alert is a table-level advisory produced by comparing recent periods.
type Alert struct {
	Kind           AlertKind     `json:"kind"`
	NeighborhoodID string        `json:"neighborhood_id"`
	Priority       AlertPriority `json:"priority"`
	Message        string        `json:"message"`
}

// RejectedRecord identifies an input record excluded from an evaluation,
// with the offending neighborhood and period per the partial-failure contract.
type RejectedRecord struct {
	NeighborhoodID string      `json:"neighborhood_id"`
	Period         string      `json:"period"`
	Error          ErrorDetail `json:"error"`
}

// ErrorDetail is the lightweight error shape used in batch error maps and
// rejection lists, mirroring the API error envelope.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// EvaluationResult is the full output of evaluating one indicator table.
type EvaluationResult struct {
	EvaluationID string                 `json:"evaluation_id"`
	EvaluatedAt  time.Time              `json:"evaluated_at"`
	Results      map[string]*RiskResult `json:"results"`
	Alerts       []Alert                `json:"alerts,omitempty"`

	// Rejected lists per-record validation failures. A rejected record never
	// aborts the rest of the table.
	Rejected []RejectedRecord `json:"rejected,omitempty"`

	// Errors maps neighborhood ID to a neighborhood-level failure (e.g. every
	// record for it was rejected). Keys never overlap with Results.
	Errors map[string]ErrorDetail `json:"errors,omitempty"`
}

// EvalMessage is the SQS payload that asks the evaluation pipeline to
// re-evaluate stored data, typically after an ingest run.
type EvalMessage struct {
	MessageID       string    `json:"message_id"`
	NeighborhoodIDs []string  `json:"neighborhood_ids,omitempty"` // empty = all
	Reason          string    `json:"reason"`
	TriggeredAt     time.Time `json:"triggered_at"`
}
