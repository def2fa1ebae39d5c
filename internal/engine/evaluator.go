package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"riskwatch/internal/types"
)

// Evaluator orchestrates a full table evaluation: validation, grouping,
// scoring, classification, forecasting, recommendations, and alerts.
// It is safe for concurrent use; each call reads only its own inputs and
// allocates fresh outputs.
type Evaluator struct {
	opts  Options
	cache *ResultCache
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

// EvaluatorOption customizes Evaluator construction.
type EvaluatorOption func(*Evaluator)

// WithCache enables fingerprint memoization of table evaluations.
// Recomputation is always safe; the cache only avoids repeated work for
// identical input tables.
func WithCache(cache *ResultCache) EvaluatorOption {
	return func(e *Evaluator) { e.cache = cache }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates an Evaluator with the given options. The options are
// copied; later mutation by the caller does not affect the evaluator.
func NewEvaluator(opts Options, log *slog.Logger, evalOpts ...EvaluatorOption) (*Evaluator, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid options: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	e := &Evaluator{
		opts:  opts,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range evalOpts {
		o(e)
	}
	return e, nil
}

// Options returns a copy of the evaluator's option set.
func (e *Evaluator) Options() Options {
	return e.opts
}

// EvaluateTable evaluates every neighborhood present in the record set.
//
// Failure isolation: an invalid record is rejected with its neighborhood and
// period identified, and the rest of the table still evaluates. A
// neighborhood whose records were all rejected appears in Errors, never in
// Results. No input error aborts the call.
func (e *Evaluator) EvaluateTable(ctx context.Context, records []types.IndicatorRecord) *types.EvaluationResult {
	if e.cache != nil {
		key := Fingerprint(records, e.opts)
		cached, hit := e.cache.Do(key, func() *types.EvaluationResult {
			return e.evaluateTable(ctx, records)
		})
		if hit {
			e.log.DebugContext(ctx, "evaluation served from cache", "fingerprint", key)
		}
		// Cached results follow compute-once, share-result semantics: hits
		// return the same result pointers, which callers must treat as
		// read-only.
		out := *cached
		out.EvaluationID = e.newID()
		return &out
	}
	return e.evaluateTable(ctx, records)
}

func (e *Evaluator) evaluateTable(ctx context.Context, records []types.IndicatorRecord) *types.EvaluationResult {
	evaluatedAt := e.now().UTC()
	out := &types.EvaluationResult{
		EvaluationID: e.newID(),
		EvaluatedAt:  evaluatedAt,
		Results:      make(map[string]*types.RiskResult),
		Errors:       make(map[string]types.ErrorDetail),
	}

	groups, rejected, seen := groupRecords(records)
	out.Rejected = rejected

	// Neighborhoods that appeared in the input but kept no valid records.
	for id := range seen {
		if _, ok := groups[id]; !ok {
			out.Errors[id] = types.ErrorDetail{
				Code:    types.ErrCodeEmptyTable,
				Message: "every record for this neighborhood was rejected",
			}
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for id, group := range groups {
		id, group := id, group
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := e.evaluateNeighborhood(id, group, evaluatedAt)
			mu.Lock()
			out.Results[id] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Only context cancellation reaches here; per-neighborhood evaluation
		// cannot fail. Report the neighborhoods that were not evaluated.
		for id := range groups {
			if _, ok := out.Results[id]; !ok {
				out.Errors[id] = types.ErrorDetail{
					Code:    types.ErrCodeInternalUnexpected,
					Message: fmt.Sprintf("evaluation aborted: %v", err),
				}
			}
		}
	}

	out.Alerts = GenerateAlerts(groups, e.opts.Alerts)
	return out
}

// evaluateNeighborhood computes one RiskResult from a neighborhood's valid,
// period-ordered records.
func (e *Evaluator) evaluateNeighborhood(id string, records []types.IndicatorRecord, evaluatedAt time.Time) *types.RiskResult {
	agg := AggregateIndicators(records)
	score, dominant := Score(agg, e.opts.Weights)
	tier := Classify(score, e.opts.Breakpoints)
	effectiveness := Effectiveness(agg, e.opts.Effectiveness)

	result := &types.RiskResult{
		NeighborhoodID:     id,
		EvaluatedAt:        evaluatedAt,
		Score:              score,
		Tier:               tier,
		DominantIndicator:  dominant,
		EffectivenessRatio: effectiveness,
		Trend:              types.TrendStable,
		Recommendations:    Recommend(tier, effectiveness, dominant, e.opts.LowEffectiveness),
		Periods:            len(records),
	}

	series := make([]types.SeriesPoint, len(records))
	var total float64
	for i, r := range records {
		series[i] = types.SeriesPoint{
			PeriodIndex: r.Period.Ordinal(),
			CrimeCount:  float64(r.CrimeCount),
		}
		total += float64(r.CrimeCount)
	}

	slope, _, err := FitTrend(series)
	if err == nil {
		result.Trend = TrendLabel(slope, total/float64(len(series)), e.opts.StableBand)
	}

	projection, err := Forecast(series, e.opts.Horizon)
	if err != nil {
		// Insufficient history: omit the forecast, keep score and tier.
		return result
	}
	result.Forecast = make(types.ForecastPoints, len(projection))
	for i, pt := range projection {
		result.Forecast[i] = types.ForecastPoint{
			Period:         types.PeriodFromOrdinal(pt.PeriodIndex),
			PredictedCount: pt.CrimeCount,
		}
	}
	return result
}

// groupRecords validates records, groups the valid ones by neighborhood in
// period order, and reports rejects. Duplicate periods within a neighborhood
// violate the series invariant; the later occurrence is rejected.
func groupRecords(records []types.IndicatorRecord) (
	groups map[string][]types.IndicatorRecord,
	rejected []types.RejectedRecord,
	seen map[string]struct{},
) {
	groups = make(map[string][]types.IndicatorRecord)
	seen = make(map[string]struct{})
	periods := make(map[string]map[int]struct{})

	for _, rec := range records {
		if rec.NeighborhoodID != "" {
			seen[rec.NeighborhoodID] = struct{}{}
		}
		if err := rec.Validate(); err != nil {
			appErr := err.(*types.AppError)
			rejected = append(rejected, types.RejectedRecord{
				NeighborhoodID: rec.NeighborhoodID,
				Period:         rec.Period.String(),
				Error:          appErr.Detail(),
			})
			continue
		}
		ordinals, ok := periods[rec.NeighborhoodID]
		if !ok {
			ordinals = make(map[int]struct{})
			periods[rec.NeighborhoodID] = ordinals
		}
		if _, dup := ordinals[rec.Period.Ordinal()]; dup {
			rejected = append(rejected, types.RejectedRecord{
				NeighborhoodID: rec.NeighborhoodID,
				Period:         rec.Period.String(),
				Error: types.ErrorDetail{
					Code:    types.ErrCodeValidationDuplicatePeriod,
					Message: fmt.Sprintf("duplicate period %s for neighborhood %s", rec.Period, rec.NeighborhoodID),
				},
			})
			continue
		}
		ordinals[rec.Period.Ordinal()] = struct{}{}
		groups[rec.NeighborhoodID] = append(groups[rec.NeighborhoodID], rec)
	}

	for id := range groups {
		sort.Slice(groups[id], func(i, j int) bool {
			return groups[id][i].Period.Before(groups[id][j].Period)
		})
	}
	return groups, rejected, seen
}
