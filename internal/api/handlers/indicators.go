// Package handlers contains the HTTP handler implementations for the
// riskwatch API: indicator ingest, neighborhood browsing, risk evaluation,
// and engine settings.
//
// Handlers depend on locally defined interfaces mirroring the concrete
// repository and queue types, following the injection pattern used across
// the package for testability.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"riskwatch/internal/core"
	"riskwatch/internal/types"
)

// defaultMaxBatchRecords caps one ingest request when no limit is configured.
const defaultMaxBatchRecords = 5000

// IndicatorStore is the data access contract for the indicator handler.
// Mirrors the db.IndicatorRepository methods used here.
type IndicatorStore interface {
	BulkUpsert(ctx context.Context, records []types.IndicatorRecord) error
	ListByNeighborhood(ctx context.Context, neighborhoodID string) ([]types.IndicatorRecord, error)
	Neighborhoods(ctx context.Context) ([]types.NeighborhoodSummary, error)
}

// EvalTrigger enqueues an asynchronous re-evaluation after ingest. Soft
// dependency: a trigger failure never fails the ingest.
type EvalTrigger interface {
	TriggerEvaluation(ctx context.Context, neighborhoodIDs []string, reason string) error
}

// IngestMetrics records ingest outcome counts. Optional.
type IngestMetrics interface {
	RecordIngest(accepted, rejected int)
}

// IngestRequest is the request body for POST /v1/indicators.
type IngestRequest struct {
	Records []types.IndicatorRecord `json:"records" validate:"required,min=1"`
}

// IngestResponse reports the partial-failure outcome of a bulk ingest.
type IngestResponse struct {
	Accepted int                    `json:"accepted"`
	Rejected []types.RejectedRecord `json:"rejected,omitempty"`
}

// IndicatorHandler manages indicator ingest and neighborhood browsing.
type IndicatorHandler struct {
	store     IndicatorStore
	trigger   EvalTrigger
	metrics   IngestMetrics
	validator *core.Validator
	logger    *slog.Logger
	maxBatch  int
}

// NewIndicatorHandler creates an IndicatorHandler. trigger and metrics may be
// nil. maxBatch < 1 falls back to the default cap.
func NewIndicatorHandler(
	store IndicatorStore,
	trigger EvalTrigger,
	metrics IngestMetrics,
	v *core.Validator,
	l *slog.Logger,
	maxBatch int,
) *IndicatorHandler {
	if l == nil {
		l = slog.Default()
	}
	if maxBatch < 1 {
		maxBatch = defaultMaxBatchRecords
	}
	return &IndicatorHandler{
		store:     store,
		trigger:   trigger,
		metrics:   metrics,
		validator: v,
		logger:    l,
		maxBatch:  maxBatch,
	}
}

// RegisterRoutes mounts indicator routes on the provided chi.Router.
func (h *IndicatorHandler) RegisterRoutes(r chi.Router) {
	r.Post("/indicators", h.Ingest)
	r.Route("/neighborhoods", func(r chi.Router) {
		r.Get("/", h.ListNeighborhoods)
		r.Get("/{id}/indicators", h.ListIndicators)
	})
}

// Ingest handles POST /v1/indicators.
//
// Partial-failure contract: each record is validated independently; invalid
// records are reported in the response with their neighborhood and period,
// and the valid remainder is still stored. Only a batch with zero valid
// records fails the request.
func (h *IndicatorHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if len(req.Records) > h.maxBatch {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationBatchSize,
			"too many records in one batch", nil,
			map[string]any{"max": h.maxBatch, "got": len(req.Records)}))
		return
	}

	accepted := make([]types.IndicatorRecord, 0, len(req.Records))
	var rejected []types.RejectedRecord
	for _, rec := range req.Records {
		if err := rec.Validate(); err != nil {
			appErr := err.(*types.AppError)
			rejected = append(rejected, types.RejectedRecord{
				NeighborhoodID: rec.NeighborhoodID,
				Period:         rec.Period.String(),
				Error:          appErr.Detail(),
			})
			continue
		}
		accepted = append(accepted, rec)
	}

	if len(accepted) == 0 {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeBulkPartialFailure,
			"every record in the batch failed validation", nil,
			map[string]any{"rejected": len(rejected)}))
		return
	}

	if err := h.store.BulkUpsert(r.Context(), accepted); err != nil {
		core.Error(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordIngest(len(accepted), len(rejected))
	}

	// Soft dependency: a queue failure is logged, never surfaced.
	if h.trigger != nil {
		ids := distinctNeighborhoods(accepted)
		if err := h.trigger.TriggerEvaluation(r.Context(), ids, "indicator_ingest"); err != nil {
			h.logger.WarnContext(r.Context(), "evaluation trigger failed after ingest",
				"neighborhoods", len(ids),
				"error", err,
			)
		}
	}

	h.logger.InfoContext(r.Context(), "indicator batch ingested",
		"accepted", len(accepted),
		"rejected", len(rejected),
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: IngestResponse{
		Accepted: len(accepted),
		Rejected: rejected,
	}})
}

// ListNeighborhoods handles GET /v1/neighborhoods.
func (h *IndicatorHandler) ListNeighborhoods(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.Neighborhoods(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: summaries})
}

// ListIndicators handles GET /v1/neighborhoods/{id}/indicators.
func (h *IndicatorHandler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	records, err := h.store.ListByNeighborhood(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if len(records) == 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundNeighborhood,
			"no indicator data for neighborhood "+id, nil))
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: records})
}

// distinctNeighborhoods returns the unique neighborhood IDs of a batch in
// first-seen order.
func distinctNeighborhoods(records []types.IndicatorRecord) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.NeighborhoodID]; ok {
			continue
		}
		seen[rec.NeighborhoodID] = struct{}{}
		ids = append(ids, rec.NeighborhoodID)
	}
	return ids
}
