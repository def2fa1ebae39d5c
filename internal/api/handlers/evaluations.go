package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"riskwatch/internal/core"
	"riskwatch/internal/types"
)

// EvalIndicatorSource fetches stored indicator records for evaluation.
type EvalIndicatorSource interface {
	ListAll(ctx context.Context) ([]types.IndicatorRecord, error)
	ListByNeighborhood(ctx context.Context, neighborhoodID string) ([]types.IndicatorRecord, error)
}

// ResultStore persists and serves evaluation results.
type ResultStore interface {
	InsertBatch(ctx context.Context, evaluationID string, results []*types.RiskResult) error
	LatestByNeighborhood(ctx context.Context, neighborhoodID string) (*types.RiskResult, error)
}

// EvalObserver records evaluation telemetry. Optional.
type EvalObserver interface {
	RecordEvaluation(neighborhoods int, duration time.Duration)
	RecordCacheStats(hits, misses int64)
}

// sourceStored forces evaluation of stored data via ?source=stored, even
// though that is already the default when the body carries no records.
const sourceStored = "stored"

// EvaluateRequest is the optional request body for POST /v1/evaluations.
// An empty body (or empty ID list) evaluates the full stored indicator
// table. A body carrying records evaluates that supplied table instead,
// without touching storage reads; supplying both records and a
// neighborhood scope is rejected.
type EvaluateRequest struct {
	NeighborhoodIDs []string                `json:"neighborhood_ids,omitempty" validate:"excluded_with=Records,max=500,dive,required,max=120"`
	Records         []types.IndicatorRecord `json:"records,omitempty" validate:"omitempty,max=5000"`
}

// EvaluationHandler runs risk evaluations and serves stored results.
type EvaluationHandler struct {
	indicators EvalIndicatorSource
	results    ResultStore
	runtime    *EngineRuntime
	observer   EvalObserver
	validator  *core.Validator
	logger     *slog.Logger
}

// NewEvaluationHandler creates an EvaluationHandler. observer may be nil.
func NewEvaluationHandler(
	indicators EvalIndicatorSource,
	results ResultStore,
	runtime *EngineRuntime,
	observer EvalObserver,
	v *core.Validator,
	l *slog.Logger,
) *EvaluationHandler {
	if l == nil {
		l = slog.Default()
	}
	return &EvaluationHandler{
		indicators: indicators,
		results:    results,
		runtime:    runtime,
		observer:   observer,
		validator:  v,
		logger:     l,
	}
}

// RegisterRoutes mounts evaluation routes on the provided chi.Router.
func (h *EvaluationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/evaluations", h.Evaluate)
	r.Get("/neighborhoods/{id}/risk", h.GetRisk)
}

// Evaluate handles POST /v1/evaluations.
//
//  1. Decode the optional body: a neighborhood scope, or an inline table.
//  2. Resolve the records to evaluate (inline, or loaded from storage).
//  3. Run the table evaluation (partial failure stays inside the result).
//  4. Persist per-neighborhood results.
//  5. Return the full evaluation, including rejects and alerts.
func (h *EvaluationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
		if err := h.validator.ValidateStruct(req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	records, err := h.resolveRecords(r, &req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if len(records) == 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeEmptyTable,
			"no indicator records to evaluate", nil))
		return
	}

	start := time.Now()
	evaluation := h.runtime.Evaluator().EvaluateTable(r.Context(), records)
	duration := time.Since(start)

	if err := h.persistResults(r.Context(), evaluation); err != nil {
		core.Error(w, r, err)
		return
	}

	if h.observer != nil {
		h.observer.RecordEvaluation(len(evaluation.Results), duration)
		if stats, ok := h.runtime.CacheStats(); ok {
			h.observer.RecordCacheStats(stats.Hits, stats.Misses)
		}
	}

	h.logger.InfoContext(r.Context(), "evaluation completed",
		"evaluation_id", evaluation.EvaluationID,
		"neighborhoods", len(evaluation.Results),
		"rejected", len(evaluation.Rejected),
		"alerts", len(evaluation.Alerts),
		"duration", duration,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: evaluation})
}

// GetRisk handles GET /v1/neighborhoods/{id}/risk, serving the most recent
// stored result for the neighborhood.
func (h *EvaluationHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.results.LatestByNeighborhood(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// resolveRecords picks the indicator table for the request: the records
// supplied inline, unless ?source=stored (or an empty body) selects stored
// data.
func (h *EvaluationHandler) resolveRecords(r *http.Request, req *EvaluateRequest) ([]types.IndicatorRecord, error) {
	source := r.URL.Query().Get("source")
	if source != "" && source != sourceStored {
		return nil, types.NewAppError(types.ErrCodeValidationSource,
			"unknown source "+source+", only \"stored\" is recognized", nil)
	}
	if len(req.Records) > 0 {
		if source == sourceStored {
			return nil, types.NewAppError(types.ErrCodeValidationSource,
				"inline records conflict with source=stored", nil)
		}
		return req.Records, nil
	}
	return h.loadRecords(r.Context(), req.NeighborhoodIDs)
}

// loadRecords fetches the evaluation scope: the whole table, or the listed
// neighborhoods.
func (h *EvaluationHandler) loadRecords(ctx context.Context, ids []string) ([]types.IndicatorRecord, error) {
	if len(ids) == 0 {
		return h.indicators.ListAll(ctx)
	}

	var records []types.IndicatorRecord
	for _, id := range ids {
		recs, err := h.indicators.ListByNeighborhood(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// persistResults stores the evaluation's per-neighborhood results in stable
// order.
func (h *EvaluationHandler) persistResults(ctx context.Context, evaluation *types.EvaluationResult) error {
	if len(evaluation.Results) == 0 {
		return nil
	}
	batch := make([]*types.RiskResult, 0, len(evaluation.Results))
	for _, res := range evaluation.Results {
		batch = append(batch, res)
	}
	return h.results.InsertBatch(ctx, evaluation.EvaluationID, batch)
}
