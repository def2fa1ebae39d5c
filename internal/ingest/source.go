// Package ingest pulls public-safety indicator data into the system: the
// SourceClient fetches the upstream feed, and the Worker consumes evaluation
// queue messages to refresh, store and re-evaluate indicator tables.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"riskwatch/internal/types"

	"golang.org/x/sync/singleflight"
)

// maxFeedBytes caps the upstream response body. A monthly per-neighborhood
// feed is small; anything larger indicates a broken upstream.
const maxFeedBytes = 32 << 20

// sourceName is the Source dimension value reported on upstream failures.
const sourceName = "public_safety_feed"

// HTTPDoer is the outbound HTTP contract, satisfied by external.BaseClient.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SourceMetrics records upstream fetch failures. Optional.
type SourceMetrics interface {
	RecordUpstreamFailure(source string)
}

// feedEnvelope is the wire shape of the upstream indicator feed.
type feedEnvelope struct {
	Records []types.IndicatorRecord `json:"records"`
}

// SourceClient fetches indicator records from the upstream public-safety
// feed. Concurrent fetches are collapsed through singleflight so a burst of
// refresh messages produces a single upstream call.
type SourceClient struct {
	client  HTTPDoer
	url     string
	logger  *slog.Logger
	metrics SourceMetrics

	group singleflight.Group
}

// NewSourceClient creates a SourceClient. metrics may be nil.
func NewSourceClient(client HTTPDoer, url string, logger *slog.Logger, metrics SourceMetrics) *SourceClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceClient{
		client:  client,
		url:     url,
		logger:  logger,
		metrics: metrics,
	}
}

// FetchIndicators downloads and decodes the upstream feed.
func (c *SourceClient) FetchIndicators(ctx context.Context) ([]types.IndicatorRecord, error) {
	v, err, shared := c.group.Do("feed", func() (any, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "upstream fetch shared with concurrent caller")
	}
	return v.([]types.IndicatorRecord), nil
}

func (c *SourceClient) fetch(ctx context.Context) ([]types.IndicatorRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build upstream feed request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordFailure()
		return nil, types.NewAppError(types.ErrCodeUpstreamSource,
			fmt.Sprintf("upstream feed returned %d", resp.StatusCode), nil)
	}

	var envelope feedEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&envelope); err != nil {
		c.recordFailure()
		return nil, types.NewAppError(types.ErrCodeUpstreamSource,
			"failed to decode upstream feed", err)
	}

	c.logger.InfoContext(ctx, "upstream feed fetched",
		"url", c.url,
		"records", len(envelope.Records),
	)
	return envelope.Records, nil
}

func (c *SourceClient) recordFailure() {
	if c.metrics != nil {
		c.metrics.RecordUpstreamFailure(sourceName)
	}
}
