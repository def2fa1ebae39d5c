package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/types"
)

func cacheRecords() []types.IndicatorRecord {
	return []types.IndicatorRecord{
		{
			NeighborhoodID: "centro",
			Period:         types.Period{Year: 2026, Index: 1},
			CrimeCount:     25,
			OperationType:  types.OperationNone,
		},
		{
			NeighborhoodID: "centro",
			Period:         types.Period{Year: 2026, Index: 2},
			CrimeCount:     30,
			OperationType:  types.OperationNone,
		},
	}
}

func TestFingerprintOrderIndependent(t *testing.T) {
	opts := DefaultOptions()
	records := cacheRecords()
	reversed := []types.IndicatorRecord{records[1], records[0]}

	assert.Equal(t, Fingerprint(records, opts), Fingerprint(reversed, opts))
}

func TestFingerprintSensitivity(t *testing.T) {
	opts := DefaultOptions()
	records := cacheRecords()
	base := Fingerprint(records, opts)

	changed := cacheRecords()
	changed[0].CrimeCount++
	assert.NotEqual(t, base, Fingerprint(changed, opts))

	altOpts := DefaultOptions()
	altOpts.Weights.Arrest = 4
	assert.NotEqual(t, base, Fingerprint(records, altOpts))

	altOpts = DefaultOptions()
	altOpts.Horizon = 3
	assert.NotEqual(t, base, Fingerprint(records, altOpts))
}

func TestResultCacheComputeOnce(t *testing.T) {
	cache := NewResultCache()
	computations := 0

	compute := func() *types.EvaluationResult {
		computations++
		return &types.EvaluationResult{EvaluationID: "computed"}
	}

	first, hit := cache.Do("k", compute)
	assert.False(t, hit)
	second, hit := cache.Do("k", compute)
	assert.True(t, hit)
	assert.Same(t, first, second, "hits share the stored result")
	assert.Equal(t, 1, computations)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestResultCacheConcurrentCallersSingleComputation(t *testing.T) {
	cache := NewResultCache()
	var mu sync.Mutex
	computations := 0

	compute := func() *types.EvaluationResult {
		mu.Lock()
		computations++
		mu.Unlock()
		return &types.EvaluationResult{}
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Do("shared", compute)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, computations, "at most one computation per fingerprint")
}

func TestResultCachePurge(t *testing.T) {
	cache := NewResultCache()
	cache.Do("k", func() *types.EvaluationResult { return &types.EvaluationResult{} })
	cache.Purge()
	assert.Zero(t, cache.Stats().Entries)

	_, hit := cache.Do("k", func() *types.EvaluationResult { return &types.EvaluationResult{} })
	assert.False(t, hit)
}

func TestEvaluatorWithCacheReusesResults(t *testing.T) {
	cache := NewResultCache()
	e, err := NewEvaluator(DefaultOptions(), slog.Default(), WithCache(cache))
	require.NoError(t, err)

	records := cacheRecords()
	first := e.EvaluateTable(context.Background(), records)
	second := e.EvaluateTable(context.Background(), records)

	// Shared-result semantics: the per-neighborhood results are the same
	// objects, while each call gets a fresh evaluation ID.
	assert.Same(t, first.Results["centro"], second.Results["centro"])
	assert.NotEqual(t, first.EvaluationID, second.EvaluationID)
	assert.Equal(t, int64(1), cache.Stats().Misses)
	assert.GreaterOrEqual(t, cache.Stats().Hits, int64(1))
}
