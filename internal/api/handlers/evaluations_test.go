package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/core"
	"riskwatch/internal/engine"
	"riskwatch/internal/types"
)

// =============================================================================
// Mocks
// =============================================================================

type mockEvalSource struct {
	records map[string][]types.IndicatorRecord
	err     error
}

func (m *mockEvalSource) ListAll(ctx context.Context) ([]types.IndicatorRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var all []types.IndicatorRecord
	for _, recs := range m.records {
		all = append(all, recs...)
	}
	return all, nil
}

func (m *mockEvalSource) ListByNeighborhood(ctx context.Context, id string) ([]types.IndicatorRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records[id], nil
}

type mockResultStore struct {
	insertFn func(ctx context.Context, evaluationID string, results []*types.RiskResult) error
	latestFn func(ctx context.Context, id string) (*types.RiskResult, error)

	lastEvalID  string
	lastResults []*types.RiskResult
}

func (m *mockResultStore) InsertBatch(ctx context.Context, evaluationID string, results []*types.RiskResult) error {
	m.lastEvalID = evaluationID
	m.lastResults = results
	if m.insertFn != nil {
		return m.insertFn(ctx, evaluationID, results)
	}
	return nil
}

func (m *mockResultStore) LatestByNeighborhood(ctx context.Context, id string) (*types.RiskResult, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundResult, "no stored evaluation", nil)
}

type mockEvalObserver struct {
	evaluations  int
	lastCount    int
	cacheCalls   int
	hits, misses int64
}

func (m *mockEvalObserver) RecordEvaluation(neighborhoods int, _ time.Duration) {
	m.evaluations++
	m.lastCount = neighborhoods
}

func (m *mockEvalObserver) RecordCacheStats(hits, misses int64) {
	m.cacheCalls++
	m.hits, m.misses = hits, misses
}

func newEvalHandler(t *testing.T, source *mockEvalSource, store *mockResultStore) *EvaluationHandler {
	t.Helper()
	l := testLogger()
	runtime, err := NewEngineRuntime(engine.DefaultOptions(), l, nil)
	require.NoError(t, err)
	return NewEvaluationHandler(source, store, runtime, nil, core.NewValidator(l), l)
}

func mountEval(h *EvaluationHandler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// =============================================================================
// POST /evaluations
// =============================================================================

func TestEvaluate_FullTable(t *testing.T) {
	source := &mockEvalSource{records: map[string][]types.IndicatorRecord{
		"centro": {
			validRecord("centro", 2026, 1, 10),
			validRecord("centro", 2026, 2, 12),
			validRecord("centro", 2026, 3, 14),
		},
		"restinga": {
			validRecord("restinga", 2026, 3, 2),
		},
	}}
	store := &mockResultStore{}
	h := newEvalHandler(t, source, store)

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data types.EvaluationResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Data.EvaluationID)
	require.Len(t, resp.Data.Results, 2)
	assert.Contains(t, resp.Data.Results, "centro")
	assert.Contains(t, resp.Data.Results, "restinga")

	// Three points of rising history yield a forecast; one point does not.
	assert.NotEmpty(t, resp.Data.Results["centro"].Forecast)
	assert.Empty(t, resp.Data.Results["restinga"].Forecast)

	// Persistence received the same evaluation.
	assert.Equal(t, resp.Data.EvaluationID, store.lastEvalID)
	assert.Len(t, store.lastResults, 2)
}

func TestEvaluate_ScopedToNeighborhoods(t *testing.T) {
	source := &mockEvalSource{records: map[string][]types.IndicatorRecord{
		"centro":   {validRecord("centro", 2026, 1, 10)},
		"restinga": {validRecord("restinga", 2026, 1, 5)},
	}}
	store := &mockResultStore{}
	h := newEvalHandler(t, source, store)

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations",
		EvaluateRequest{NeighborhoodIDs: []string{"centro"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data types.EvaluationResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data.Results, 1)
	assert.Contains(t, resp.Data.Results, "centro")
}

func TestEvaluate_InlineRecords(t *testing.T) {
	// A storage read would surface this error; inline evaluation must not
	// touch the repository.
	source := &mockEvalSource{err: types.NewAppError(types.ErrCodeInternalDB, "storage must not be read", nil)}
	store := &mockResultStore{}
	h := newEvalHandler(t, source, store)

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations", EvaluateRequest{
		Records: []types.IndicatorRecord{
			validRecord("centro", 2026, 1, 10),
			validRecord("centro", 2026, 2, 12),
			validRecord("centro", 2026, 3, 14),
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data types.EvaluationResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Contains(t, resp.Data.Results, "centro")
	assert.NotEmpty(t, resp.Data.Results["centro"].Forecast)
	assert.Equal(t, resp.Data.EvaluationID, store.lastEvalID)
}

func TestEvaluate_InlineRecordsPartialFailure(t *testing.T) {
	bad := validRecord("centro", 2026, 2, 5)
	bad.Arrests = -1

	store := &mockResultStore{}
	h := newEvalHandler(t, &mockEvalSource{}, store)

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations", EvaluateRequest{
		Records: []types.IndicatorRecord{validRecord("centro", 2026, 1, 5), bad},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data types.EvaluationResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data.Rejected, 1)
	assert.Equal(t, "2026-02", resp.Data.Rejected[0].Period)
	assert.Contains(t, resp.Data.Results, "centro")
}

func TestEvaluate_SourceStoredExplicit(t *testing.T) {
	source := &mockEvalSource{records: map[string][]types.IndicatorRecord{
		"centro": {validRecord("centro", 2026, 1, 10)},
	}}
	h := newEvalHandler(t, source, &mockResultStore{})

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations?source=stored", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "centro")
}

func TestEvaluate_InlineConflictsWithStoredSource(t *testing.T) {
	h := newEvalHandler(t, &mockEvalSource{}, &mockResultStore{})

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations?source=stored", EvaluateRequest{
		Records: []types.IndicatorRecord{validRecord("centro", 2026, 1, 10)},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeValidationSource))
}

func TestEvaluate_UnknownSourceRejected(t *testing.T) {
	h := newEvalHandler(t, &mockEvalSource{}, &mockResultStore{})

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations?source=live", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeValidationSource))
}

func TestEvaluate_InlineConflictsWithScope(t *testing.T) {
	h := newEvalHandler(t, &mockEvalSource{}, &mockResultStore{})

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations", EvaluateRequest{
		NeighborhoodIDs: []string{"centro"},
		Records:         []types.IndicatorRecord{validRecord("centro", 2026, 1, 10)},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeValidationMissingField))
}

func TestEvaluate_ReportsCacheStats(t *testing.T) {
	source := &mockEvalSource{records: map[string][]types.IndicatorRecord{
		"centro": {validRecord("centro", 2026, 1, 10)},
	}}
	obs := &mockEvalObserver{}

	l := testLogger()
	runtime, err := NewEngineRuntime(engine.DefaultOptions(), l, engine.NewResultCache())
	require.NoError(t, err)
	h := NewEvaluationHandler(source, &mockResultStore{}, runtime, obs, core.NewValidator(l), l)

	// Identical inputs: first run misses, second reuses the stored result.
	for i := 0; i < 2; i++ {
		w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	assert.Equal(t, 2, obs.evaluations)
	assert.Equal(t, 1, obs.lastCount)
	assert.Equal(t, 2, obs.cacheCalls)
	assert.Equal(t, int64(1), obs.misses)
	assert.Equal(t, int64(1), obs.hits)
}

func TestEvaluate_EmptyTable422(t *testing.T) {
	h := newEvalHandler(t, &mockEvalSource{}, &mockResultStore{})

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeEmptyTable))
}

func TestEvaluate_RejectedRecordsReported(t *testing.T) {
	bad := validRecord("centro", 2026, 2, 5)
	bad.Arrests = -1

	source := &mockEvalSource{records: map[string][]types.IndicatorRecord{
		"centro": {validRecord("centro", 2026, 1, 5), bad},
	}}
	store := &mockResultStore{}
	h := newEvalHandler(t, source, store)

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data types.EvaluationResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data.Rejected, 1)
	assert.Equal(t, "2026-02", resp.Data.Rejected[0].Period)
	// The valid record still evaluates.
	assert.Contains(t, resp.Data.Results, "centro")
}

func TestEvaluate_PersistFailureSurfaces(t *testing.T) {
	source := &mockEvalSource{records: map[string][]types.IndicatorRecord{
		"centro": {validRecord("centro", 2026, 1, 5)},
	}}
	store := &mockResultStore{
		insertFn: func(ctx context.Context, evaluationID string, results []*types.RiskResult) error {
			return types.NewAppError(types.ErrCodeInternalDB, "insert failed", nil)
		},
	}
	h := newEvalHandler(t, source, store)

	w := doJSON(t, mountEval(h), http.MethodPost, "/evaluations", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

// =============================================================================
// GET /neighborhoods/{id}/risk
// =============================================================================

func TestGetRisk_Found(t *testing.T) {
	store := &mockResultStore{
		latestFn: func(ctx context.Context, id string) (*types.RiskResult, error) {
			return &types.RiskResult{
				NeighborhoodID: id,
				Score:          42,
				Tier:           types.TierMediumHigh,
				Trend:          types.TrendRising,
			}, nil
		},
	}
	h := newEvalHandler(t, &mockEvalSource{}, store)

	w := doJSON(t, mountEval(h), http.MethodGet, "/neighborhoods/centro/risk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"score":42`)
	assert.Contains(t, w.Body.String(), string(types.TierMediumHigh))
}

func TestGetRisk_NotFound(t *testing.T) {
	h := newEvalHandler(t, &mockEvalSource{}, &mockResultStore{})

	w := doJSON(t, mountEval(h), http.MethodGet, "/neighborhoods/nowhere/risk", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeNotFoundResult))
}
