package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"riskwatch/internal/types"
)

// ResultCache memoizes table evaluations keyed by a content fingerprint of
// the input. Concurrent callers with the same fingerprint trigger at most one
// computation (singleflight); later callers share the stored result.
//
// The cache is an optimization, never a correctness requirement: a miss just
// recomputes, and identical inputs always yield identical outputs.
type ResultCache struct {
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*types.EvaluationResult

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates an empty ResultCache.
func NewResultCache() *ResultCache {
	return &ResultCache{entries: make(map[string]*types.EvaluationResult)}
}

// Do returns the cached evaluation for key, computing and storing it on a
// miss. hit reports whether a stored result was reused. Results returned from
// the cache are shared; callers must treat them as read-only.
func (c *ResultCache) Do(key string, compute func() *types.EvaluationResult) (result *types.EvaluationResult, hit bool) {
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return cached, true
	}

	computed := false
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the group: another caller may have stored the entry
		// between the read above and entering the flight.
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
		computed = true
		out := compute()
		c.mu.Lock()
		c.entries[key] = out
		c.mu.Unlock()
		return out, nil
	})

	if computed {
		c.misses.Add(1)
	} else {
		c.hits.Add(1)
	}
	return v.(*types.EvaluationResult), !computed
}

// CacheStats is a point-in-time snapshot of cache effectiveness, consumed by
// the metrics collaborator.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// Stats returns the current hit/miss counters and entry count.
func (c *ResultCache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}

// Purge drops every stored entry. Counters are preserved.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*types.EvaluationResult)
	c.mu.Unlock()
}

// Fingerprint produces a deterministic content hash of an indicator table and
// the option set that will evaluate it. Record order in the input does not
// affect the fingerprint; any field or option change does.
func Fingerprint(records []types.IndicatorRecord, opts Options) string {
	sorted := make([]types.IndicatorRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].NeighborhoodID != sorted[j].NeighborhoodID {
			return sorted[i].NeighborhoodID < sorted[j].NeighborhoodID
		}
		return sorted[i].Period.Ordinal() < sorted[j].Period.Ordinal()
	})

	h := sha256.New()
	enc := json.NewEncoder(h)
	// Encoding failures cannot happen for these plain structs; the hash of
	// whatever was written so far still yields a usable key.
	_ = enc.Encode(sorted)
	_ = enc.Encode(opts)
	_, _ = fmt.Fprintf(h, "v1")
	return hex.EncodeToString(h.Sum(nil))
}
